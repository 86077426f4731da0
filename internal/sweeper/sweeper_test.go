package sweeper

import (
	"auction-engine/utils"
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	utils.SetLogOutput(io.Discard)
	goleak.VerifyTestMain(m)
}

func TestSweeper_RunsUntilCancelled(t *testing.T) {
	var calls int32
	s := New(func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 1, nil
	}, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 3
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_KeepsGoingAfterErrors(t *testing.T) {
	var calls int32
	s := New(func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, errors.New("store unavailable")
	}, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 2
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestSweeper_CancelledBeforeStart(t *testing.T) {
	var calls int32
	s := New(func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, nil
	}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Run(ctx))
	require.Zero(t, atomic.LoadInt32(&calls))
}

func TestNew_DefaultInterval(t *testing.T) {
	s := New(func(context.Context) (int, error) { return 0, nil }, 0)
	require.Equal(t, DefaultInterval, s.interval)
}
