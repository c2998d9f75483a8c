package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotiseek/internal/shared"
)

// Loop runs due tasks in the background.
//
// Each sweep walks the tasks in dependency order and runs those that are due and whose
// dependencies are met. Between sweeps the loop waits for the poll interval, or the backoff
// interval after a sweep error. Stop only prevents further sweeps: a task already running is
// allowed to finish.
type Loop struct {
	registry *Registry
	poll     time.Duration
	backoff  time.Duration
	logger   *log.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewLoop creates a stopped loop over registry.
func NewLoop(registry *Registry, cfg shared.SchedulerConfig, logger *log.Logger) *Loop {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Loop{
		registry: registry,
		poll:     cfg.Poll(),
		backoff:  cfg.Backoff(),
		logger:   shared.WithLogger(logger, "component", "loop"),
	}
}

// Start seeds next run times and starts sweeping in a new goroutine. Task runs receive ctx,
// so cancelling it reaches running task functions; [Loop.Stop] does not.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		return shared.ErrSchedulerRunning
	}

	if err := l.registry.SeedNextRuns(ctx); err != nil {
		return fmt.Errorf("failed to seed task schedule: %w", err)
	}

	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(ctx, l.stop, l.done)

	l.logger.Info("scheduler started", "poll", l.poll, "backoff", l.backoff, "tasks", len(l.registry.Names()))
	return nil
}

// Stop signals the loop and waits up to timeout for the current sweep to finish.
func (l *Loop) Stop(timeout time.Duration) error {
	l.mu.Lock()
	stop, done := l.stop, l.done
	l.stop, l.done = nil, nil
	l.mu.Unlock()

	if stop == nil {
		return shared.ErrSchedulerStopped
	}
	close(stop)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		l.logger.Info("scheduler stopped")
		return nil
	case <-timer.C:
		l.logger.Warn("scheduler did not stop in time", "timeout", timeout)
		return shared.ErrShutdownTimeout
	}
}

// Running reports whether the loop has been started and not stopped.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stop != nil
}

func (l *Loop) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		wait := l.poll
		if err := l.safeSweep(ctx, stop); err != nil {
			l.logger.Error("scheduler sweep failed", "err", err, "backoff", l.backoff)
			wait = l.backoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (l *Loop) safeSweep(ctx context.Context, stop <-chan struct{}) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in sweep: %v", p)
		}
	}()
	return l.Sweep(ctx, stop)
}

// Sweep runs every due task once, in dependency order. It returns early when stop is closed.
func (l *Loop) Sweep(ctx context.Context, stop <-chan struct{}) error {
	order, err := l.registry.DependencyOrder()
	if err != nil {
		l.logger.Warn("task graph has a cycle", "err", err)
	}

	for _, name := range order {
		select {
		case <-stop:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		due, err := l.registry.ShouldRun(ctx, name)
		if err != nil {
			return err
		}
		if !due {
			continue
		}

		met, unmet, err := l.registry.CheckDependencies(ctx, name)
		if err != nil {
			return err
		}
		if !met {
			l.logger.Debug("waiting on dependencies", "task", name, "unmet", unmet)
			continue
		}

		_, err = l.registry.RunTask(ctx, name, false)
		switch {
		case err == nil, errors.Is(err, shared.ErrTaskFailed):
		case errors.Is(err, shared.ErrAlreadyRunning), errors.Is(err, shared.ErrDependenciesUnmet):
			l.logger.Debug("task not started", "task", name, "reason", err)
		default:
			return err
		}
	}
	return nil
}
