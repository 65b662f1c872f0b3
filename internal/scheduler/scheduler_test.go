package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expensabot/expensa/internal/scheduler"
)

func noopTask(context.Context) error { return nil }

func TestScheduler_Lifecycle(t *testing.T) {
	s := scheduler.NewScheduler(zap.NewNop(), 100*time.Millisecond, noopTask)

	assert.False(t, s.IsRunning())
	assert.Equal(t, scheduler.ErrSchedulerNotRunning, s.Stop())

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.Equal(t, scheduler.ErrSchedulerAlreadyRunning, s.Start(context.Background()))

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func TestScheduler_RunsImmediatelyAndOnTicks(t *testing.T) {
	var runs int32
	s := scheduler.NewScheduler(zap.NewNop(), 50*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	// The first run does not wait for the first tick.
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 1
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 3
	}, time.Second, 10*time.Millisecond)
}

func TestScheduler_StopHaltsRuns(t *testing.T) {
	var runs int32
	s := scheduler.NewScheduler(zap.NewNop(), 30*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())

	after := atomic.LoadInt32(&runs)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&runs))
}

func TestScheduler_TaskErrorsDoNotStopTheLoop(t *testing.T) {
	var runs int32
	s := scheduler.NewScheduler(zap.NewNop(), 30*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return errors.New("sweep failed")
	})

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestScheduler_ContextCancelStopsTheLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var runs int32
	s := scheduler.NewScheduler(zap.NewNop(), 30*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	require.NoError(t, s.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool {
		return !s.IsRunning()
	}, time.Second, 10*time.Millisecond)
}

func TestScheduler_ConcurrentStopsExactlyOneWins(t *testing.T) {
	s := scheduler.NewScheduler(zap.NewNop(), 50*time.Millisecond, noopTask)
	require.NoError(t, s.Start(context.Background()))

	const stoppers = 8
	results := make([]error, stoppers)

	var wg sync.WaitGroup
	for i := 0; i < stoppers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Stop()
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			assert.Equal(t, scheduler.ErrSchedulerNotRunning, err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent stop should win")
	assert.False(t, s.IsRunning())
}

func TestScheduler_RestartAfterStop(t *testing.T) {
	s := scheduler.NewScheduler(zap.NewNop(), 50*time.Millisecond, noopTask)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Stop())
}
