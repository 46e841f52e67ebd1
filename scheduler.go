package acceptor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// runScheduler triggers acceptance runs, once or repeatedly at a fixed
// interval. The run callback is bound at construction and is never invoked
// concurrently with itself.
type runScheduler struct {
	interval time.Duration
	runOnce  bool
	run      func() error
	logger   log.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newRunScheduler(interval time.Duration, runOnce bool, run func() error, logger log.Logger) *runScheduler {
	return &runScheduler{
		interval: interval,
		runOnce:  runOnce,
		run:      run,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start executes the first acceptance run synchronously. In run-once mode it
// returns that run's error and schedules nothing further. In continuous mode
// a failed first run aborts startup; afterwards the interval loop owns all
// runs and failures are logged rather than returned.
func (s *runScheduler) Start(ctx context.Context) error {
	if s.run == nil {
		return errors.New("run scheduler has no run callback")
	}

	if s.runOnce {
		s.logger.Info("Executing single acceptance run")
		return s.run()
	}

	s.logger.Info("Executing initial acceptance run before interval loop", "interval", s.interval)
	if err := s.run(); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

func (s *runScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.logger.Info("Executing scheduled acceptance run")
			if err := s.run(); err != nil {
				s.logger.Error("Scheduled acceptance run failed", "error", err)
			}
		case <-s.stop:
			s.logger.Debug("Run scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Debug("Run scheduler context canceled")
			s.markStopped()
			return
		}
	}
}

func (s *runScheduler) markStopped() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Stop ends the interval loop. Safe to call more than once and before Start.
func (s *runScheduler) Stop() error {
	s.markStopped()
	return nil
}

// Stopped reports whether the scheduler has been stopped, either explicitly
// or by context cancellation.
func (s *runScheduler) Stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// WaitForShutdown blocks until the interval loop has exited or ctx expires.
func (s *runScheduler) WaitForShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for run scheduler to exit", "error", ctx.Err())
		return ctx.Err()
	}
}
