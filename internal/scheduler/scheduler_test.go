package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/carebook-server/internal/testutil"
)

func TestScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	s := New(testutil.MakeNoopLogger())

	var runs atomic.Int32
	s.Add(Job{Name: "count", Interval: 10 * time.Millisecond, Run: func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}})

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestScheduler_FailingAndPanickingJobsKeepRunning(t *testing.T) {
	s := New(testutil.MakeNoopLogger())

	var failing, panicking atomic.Int32
	s.Add(Job{Name: "fail", Interval: 5 * time.Millisecond, Run: func(ctx context.Context) error {
		failing.Add(1)
		return errors.New("boom")
	}})
	s.Add(Job{Name: "panic", Interval: 5 * time.Millisecond, Run: func(ctx context.Context) error {
		panicking.Add(1)
		panic("boom")
	}})

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool {
		return failing.Load() >= 2 && panicking.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestScheduler_SkipsInvalidJobs(t *testing.T) {
	s := New(testutil.MakeNoopLogger())
	s.Add(Job{Name: "no-interval", Run: func(ctx context.Context) error { return nil }})
	s.Add(Job{Name: "no-run", Interval: time.Second})

	assert.Empty(t, s.jobs)
}

func TestScheduler_StartTwice(t *testing.T) {
	s := New(testutil.MakeNoopLogger())
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
	s.Stop()
}

func TestScheduler_StopsWithParentContext(t *testing.T) {
	s := New(testutil.MakeNoopLogger())

	stopped := make(chan struct{})
	s.Add(Job{Name: "block", Interval: time.Hour, Run: func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("job did not observe cancellation")
	}
	s.Stop()
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := New(testutil.MakeNoopLogger())
	assert.NotPanics(t, s.Stop)
}
