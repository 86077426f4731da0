package locker

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// RedisLocker serializes access per key across processes with a redsync mutex.
type RedisLocker struct {
	rs      *redsync.Redsync
	options redisLockerOptions
}

var _ Locker = (*RedisLocker)(nil)

type redisLockerOptions struct {
	keyPrefix  string
	expiry     time.Duration
	retryDelay time.Duration
	wait       time.Duration
}

type RedisLockerOption func(*redisLockerOptions)

// WithKeyPrefix namespaces lock keys, e.g. "prod:"
func WithKeyPrefix(prefix string) RedisLockerOption {
	return func(o *redisLockerOptions) {
		o.keyPrefix = prefix
	}
}

// WithExpiry sets how long a lock survives a crashed holder
func WithExpiry(d time.Duration) RedisLockerOption {
	return func(o *redisLockerOptions) {
		o.expiry = d
	}
}

// WithRetryDelay sets the pause between acquisition attempts
func WithRetryDelay(d time.Duration) RedisLockerOption {
	return func(o *redisLockerOptions) {
		o.retryDelay = d
	}
}

// WithWaitTimeout bounds the total time spent acquiring
func WithWaitTimeout(d time.Duration) RedisLockerOption {
	return func(o *redisLockerOptions) {
		o.wait = d
	}
}

const (
	defaultRedisExpiry     = 8 * time.Second
	defaultRedisRetryDelay = 50 * time.Millisecond
)

// NewRedisLocker builds a locker on top of an existing redis client.
// Non-positive durations fall back to the defaults.
func NewRedisLocker(client *redis.Client, opts ...RedisLockerOption) *RedisLocker {
	options := redisLockerOptions{
		expiry:     defaultRedisExpiry,
		retryDelay: defaultRedisRetryDelay,
		wait:       DefaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.expiry <= 0 {
		options.expiry = defaultRedisExpiry
	}
	if options.retryDelay <= 0 {
		options.retryDelay = defaultRedisRetryDelay
	}
	if options.wait <= 0 {
		options.wait = DefaultWaitTimeout
	}

	return &RedisLocker{
		rs:      redsync.New(goredis.NewPool(client)),
		options: options,
	}
}

// LockKey returns the redis key guarding an item
func (l *RedisLocker) LockKey(key string) string {
	return fmt.Sprintf("%sauction:%s:lock", l.options.keyPrefix, key)
}

// Acquire retries until the mutex is taken or the wait bound elapses.
// Redis communication failures are returned as-is; contention is transient.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := l.LockKey(key)
	mutex := l.rs.NewMutex(
		lockKey,
		redsync.WithExpiry(l.options.expiry),
		redsync.WithTries(1),
		redsync.WithRetryDelay(l.options.retryDelay),
	)

	waitCtx, cancel := context.WithTimeout(ctx, l.options.wait)
	defer cancel()

	timer := time.NewTimer(1)
	defer timer.Stop()

	for {
		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("locker: acquire %s: %w: %w", lockKey, biddingerrors.ErrTransientConflict, waitCtx.Err())
		case <-timer.C:
			err := mutex.LockContext(waitCtx)
			if err == nil {
				return func() {
					if _, err := mutex.Unlock(); err != nil {
						utils.Warn("RedisLocker: failed to release lock", map[string]any{
							"key":   lockKey,
							"error": err.Error(),
						})
					}
				}, nil
			}

			if waitCtx.Err() != nil {
				return nil, fmt.Errorf("locker: acquire %s: %w: %w", lockKey, biddingerrors.ErrTransientConflict, waitCtx.Err())
			}
			var commErr *redsync.RedisError
			if errors.As(err, &commErr) {
				return nil, fmt.Errorf("locker: acquire %s: %w", lockKey, err)
			}
			timer.Reset(l.options.retryDelay)
		}
	}
}
