// Package scheduler runs a periodic background task, used for the
// stale-claim sweep.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of periodic work. The context it receives is bounded
// so a hung task cannot overlap the next tick.
type Task func(context.Context) error

// Scheduler runs a Task once at start and then on every interval tick
// until stopped.
type Scheduler struct {
	logger    *zap.Logger
	interval  time.Duration
	task      Task
	stopCh    chan struct{}
	doneCh    chan struct{}
	isRunning bool
	mu        sync.RWMutex
}

func NewScheduler(logger *zap.Logger, interval time.Duration, task Task) *Scheduler {
	return &Scheduler{
		logger:   logger,
		interval: interval,
		task:     task,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the scheduler loop. The first run happens immediately,
// not after the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return ErrSchedulerAlreadyRunning
	}

	s.isRunning = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("Scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop signals the loop and waits for the in-flight run to finish.
// isRunning flips inside the same critical section that snapshots the
// channels, so a concurrent Stop cannot close stopCh twice.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.isRunning = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh

	s.logger.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)
	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	if err := s.runTask(ctx); err != nil {
		s.logger.Error("Initial task run failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context canceled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.runTask(ctx); err != nil {
				s.logger.Error("Scheduled task run failed", zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context) error {
	taskCtx, cancel := context.WithTimeout(ctx, s.taskTimeout())
	defer cancel()

	return s.task(taskCtx)
}

// taskTimeout leaves a gap before the next tick so runs never overlap.
func (s *Scheduler) taskTimeout() time.Duration {
	if s.interval > 2*time.Second {
		return s.interval - time.Second
	}
	return s.interval
}
