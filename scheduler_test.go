package acceptor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCountingScheduler(interval time.Duration, runOnce bool, runs *atomic.Int64, runErr error) *runScheduler {
	return newRunScheduler(interval, runOnce, func() error {
		runs.Add(1)
		return runErr
	}, log.New())
}

func TestSchedulerRunOnceExecutesExactlyOnce(t *testing.T) {
	var runs atomic.Int64
	s := newCountingScheduler(5*time.Millisecond, true, &runs, nil)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, int64(1), runs.Load())

	// No interval loop exists in run-once mode, so the count stays put.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int64(1), runs.Load())
}

func TestSchedulerRunOncePropagatesRunError(t *testing.T) {
	var runs atomic.Int64
	runErr := errors.New("policy service unreachable")
	s := newCountingScheduler(5*time.Millisecond, true, &runs, runErr)

	err := s.Start(context.Background())
	require.ErrorIs(t, err, runErr)
	assert.Equal(t, int64(1), runs.Load())
}

func TestSchedulerContinuousRepeatsAtInterval(t *testing.T) {
	ran := make(chan struct{}, 16)
	s := newRunScheduler(5*time.Millisecond, false, func() error {
		ran <- struct{}{}
		return nil
	}, log.New())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	// The first run happens inside Start; wait for three more from the loop.
	for i := 0; i < 4; i++ {
		select {
		case <-ran:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for run %d", i+1)
		}
	}

	require.NoError(t, s.Stop())
	require.NoError(t, s.WaitForShutdown(ctx))

	// Drain anything in flight, then confirm the loop is silent.
	for {
		select {
		case <-ran:
			continue
		case <-time.After(30 * time.Millisecond):
		}
		break
	}
	select {
	case <-ran:
		t.Fatal("run executed after Stop")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestSchedulerContinuousAbortsOnFirstRunFailure(t *testing.T) {
	var runs atomic.Int64
	runErr := errors.New("invalid policy case")
	s := newCountingScheduler(5*time.Millisecond, false, &runs, runErr)

	ctx := context.Background()
	err := s.Start(ctx)
	require.ErrorIs(t, err, runErr)

	// Startup failed, so no interval loop was spawned.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int64(1), runs.Load())
	require.NoError(t, s.WaitForShutdown(ctx))
}

func TestSchedulerContinuousKeepsGoingAfterRunFailure(t *testing.T) {
	var runs atomic.Int64
	ran := make(chan struct{}, 16)
	s := newRunScheduler(5*time.Millisecond, false, func() error {
		if runs.Add(1) == 2 {
			// A failed scheduled run is logged, not fatal.
			ran <- struct{}{}
			return errors.New("transient decision mismatch")
		}
		ran <- struct{}{}
		return nil
	}, log.New())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	for i := 0; i < 3; i++ {
		select {
		case <-ran:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for run %d", i+1)
		}
	}

	require.NoError(t, s.Stop())
	require.NoError(t, s.WaitForShutdown(ctx))
	assert.GreaterOrEqual(t, runs.Load(), int64(3))
}

func TestSchedulerStartWithoutCallback(t *testing.T) {
	s := newRunScheduler(5*time.Millisecond, true, nil, log.New())
	require.Error(t, s.Start(context.Background()))
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	var runs atomic.Int64
	s := newCountingScheduler(5*time.Millisecond, true, &runs, nil)

	assert.False(t, s.Stopped())
	require.NoError(t, s.Stop())
	assert.True(t, s.Stopped())
	require.NoError(t, s.Stop())
	assert.True(t, s.Stopped())
}

func TestSchedulerContextCancelStopsLoop(t *testing.T) {
	var runs atomic.Int64
	s := newCountingScheduler(5*time.Millisecond, false, &runs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	cancel()
	require.NoError(t, s.WaitForShutdown(context.Background()))
	assert.True(t, s.Stopped())
}

func TestSchedulerWaitForShutdownHonorsDeadline(t *testing.T) {
	var runs atomic.Int64
	s := newCountingScheduler(time.Hour, false, &runs, nil)

	// The loop is still alive, so a bounded wait must expire.
	require.NoError(t, s.Start(context.Background()))

	waitCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.WaitForShutdown(waitCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, s.Stop())
	require.NoError(t, s.WaitForShutdown(context.Background()))
}
