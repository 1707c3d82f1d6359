// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dtroode/carebook-server/internal/logger"
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Job is a named task run every Interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs registered jobs on their own tickers until stopped.
type Scheduler struct {
	logger *logger.Logger
	jobs   []Job

	mu      sync.Mutex
	group   *errgroup.Group
	cancel  context.CancelFunc
	started bool
}

// New creates a Scheduler.
func New(logger *logger.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Add registers a job. Jobs with a non-positive interval or no Run func are ignored.
func (s *Scheduler) Add(job Job) {
	if job.Interval <= 0 || job.Run == nil {
		s.logger.Warn("Scheduler: skipping job", "job", job.Name)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

// Start launches every registered job. Each job runs once immediately and
// then on every tick until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.group, ctx = errgroup.WithContext(ctx)

	for _, job := range s.jobs {
		s.group.Go(func() error {
			s.loop(ctx, job)
			return nil
		})
	}

	s.logger.Info("Scheduler: started", "jobs", len(s.jobs))
	return nil
}

// Stop cancels all jobs and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, group := s.cancel, s.group
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	_ = group.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	s.run(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx, job)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduler: job panicked", "job", job.Name, "panic", r)
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("Scheduler: job failed",
			"job", job.Name,
			"error", err.Error())
		return
	}

	s.logger.Debug("Scheduler: job finished",
		"job", job.Name,
		"duration", time.Since(start))
}
