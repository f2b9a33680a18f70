package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"zapzap/internal/logging"
	"zapzap/internal/services"
)

// Job is a named periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// JobStatus reports the progress of one job.
type JobStatus struct {
	Name         string
	Interval     time.Duration
	Active       bool
	Runs         int
	Failures     int
	LastStart    time.Time
	LastDuration time.Duration
	LastError    string
	NextRun      time.Time
}

type jobState struct {
	job    Job
	status JobStatus
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the scheduler's time source and timer. Intended for tests.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
		if after != nil {
			s.after = after
		}
	}
}

// Scheduler coordinates periodic jobs.
type Scheduler struct {
	logger *slog.Logger
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time

	mu      sync.RWMutex
	jobs    []*jobState
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler constructs an idle scheduler.
func NewScheduler(logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger: logging.NewComponentLogger(logger, "scheduler"),
		now:    time.Now,
		after:  time.After,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a job. Jobs with a non-positive interval are ignored so
// callers can pass configured intervals straight through.
func (s *Scheduler) Add(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %q: run function is required", job.Name)
	}
	if job.Interval <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}
	for _, existing := range s.jobs {
		if existing.job.Name == job.Name {
			return fmt.Errorf("job %q already registered", job.Name)
		}
	}
	s.jobs = append(s.jobs, &jobState{job: job, status: JobStatus{Name: job.Name, Interval: job.Interval}})
	return nil
}

// Start begins running every registered job in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	jobs := slices.Clone(s.jobs)
	s.wg.Add(len(jobs))
	s.mu.Unlock()

	for _, state := range jobs {
		go s.loop(runCtx, state)
	}
	s.logger.Info("scheduler started",
		logging.String(logging.FieldEventType, "scheduler_started"),
		logging.Int("jobs", len(jobs)),
	)
	return nil
}

// Stop cancels all jobs and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Running reports whether the scheduler has been started and not stopped.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Status returns a snapshot of every job.
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, state := range s.jobs {
		out = append(out, state.status)
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, state *jobState) {
	defer s.wg.Done()

	deadline := s.now()
	for {
		if wait := deadline.Sub(s.now()); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-s.after(wait):
			}
		}
		if ctx.Err() != nil {
			return
		}

		s.runOnce(ctx, state)

		next := NextDeadline(deadline, s.now(), state.job.Interval)
		if skipped := int(next.Sub(deadline)/state.job.Interval) - 1; skipped > 0 {
			s.logger.Debug("skipped overrun deadlines",
				logging.String("job", state.job.Name),
				logging.Int("skipped", skipped),
			)
		}
		deadline = next
		s.mu.Lock()
		state.status.NextRun = deadline
		s.mu.Unlock()
	}
}

func (s *Scheduler) runOnce(ctx context.Context, state *jobState) {
	start := s.now()
	s.mu.Lock()
	state.status.Active = true
	state.status.LastStart = start
	s.mu.Unlock()

	runCtx := services.WithRequestID(ctx, uuid.NewString())
	err := state.job.Run(runCtx)
	duration := s.now().Sub(start)

	s.mu.Lock()
	state.status.Active = false
	state.status.Runs++
	state.status.LastDuration = duration
	state.status.LastError = ""
	if err != nil {
		state.status.Failures++
		state.status.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		logging.ErrorWithContext(logging.WithContext(runCtx, s.logger), "scheduled job failed", "job_failed",
			logging.String("job", state.job.Name),
			logging.Error(err),
			logging.Duration("duration", duration),
			logging.String(logging.FieldErrorHint, "check database access; the job runs again at its next deadline"),
		)
	}
}
