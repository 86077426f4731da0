package locker

import (
	"auction-engine/internal/biddingerrors"
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultWaitTimeout bounds how long Acquire waits for a busy key
const DefaultWaitTimeout = 2 * time.Second

// Locker grants exclusive access to a key (an auction item id).
// Acquire never blocks longer than the locker's wait bound; running out of
// time yields an error wrapping biddingerrors.ErrTransientConflict.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type slot struct {
	ch   chan struct{}
	refs int
}

// LocalLocker serializes access per key inside a single process.
// Keys with no holder and no waiter are dropped from the table.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

var _ Locker = (*LocalLocker)(nil)

// NewLocalLocker creates an in-process locker. A non-positive wait uses DefaultWaitTimeout.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	if wait <= 0 {
		wait = DefaultWaitTimeout
	}
	return &LocalLocker{
		slots: make(map[string]*slot),
		wait:  wait,
	}
}

// Acquire blocks until key is free, the wait bound elapses, or ctx is done
func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	s := l.ref(key)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.unref(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, s)
		return nil, fmt.Errorf("locker: acquire %s: %w: %w", key, biddingerrors.ErrTransientConflict, ctx.Err())
	case <-timer.C:
		l.unref(key, s)
		return nil, fmt.Errorf("locker: acquire %s: %w - waited %s", key, biddingerrors.ErrTransientConflict, l.wait)
	}
}

// Len returns the number of keys currently held or waited on
func (l *LocalLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *LocalLocker) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
