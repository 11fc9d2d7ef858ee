package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Job is a named operation run on demand or on a cron schedule.
type Job func(ctx context.Context) error

// UnknownJobError is returned when a job name is not registered.
type UnknownJobError struct {
	Name string
}

func (e *UnknownJobError) Error() string {
	return fmt.Sprintf("job %q not found", e.Name)
}

// Config holds the scheduler configuration.
type Config struct {
	// Jobs maps job names to their implementation.
	Jobs map[string]Job
	// Schedules maps a job name to a five-field cron expression. Jobs without
	// an entry only run through RunNow.
	Schedules      map[string]string
	Logger         *slog.Logger
	MaxConcurrency int
}

// Scheduler runs named jobs on demand and on cron schedules using gocron.
type Scheduler struct {
	cron      gocron.Scheduler
	cfg       Config
	scheduled map[string]uuid.UUID // job name → gocron job UUID
	mu        sync.Mutex
	semaphore chan struct{}
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(cfg Config) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}

	maxConc := cfg.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		cron:      cron,
		cfg:       cfg,
		scheduled: make(map[string]uuid.UUID),
		semaphore: make(chan struct{}, maxConc),
		logger:    logger,
	}, nil
}

// Start registers every configured schedule and starts the gocron scheduler.
// Scheduled runs use ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, expr := range s.cfg.Schedules {
		if _, ok := s.cfg.Jobs[name]; !ok {
			return &UnknownJobError{Name: name}
		}
		jobName := name
		job, err := s.cron.NewJob(
			gocron.CronJob(expr, false),
			gocron.NewTask(func() {
				if err := s.execute(ctx, jobName); err != nil {
					s.logger.Error("scheduled job failed", "job", jobName, "error", err)
				}
			}),
			gocron.WithName(jobName),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("scheduling job %q with %q: %w", name, expr, err)
		}
		s.scheduled[name] = job.ID()
		s.logger.Info("job scheduled", "job", name, "cron", expr)
	}

	s.cron.Start()
	s.logger.Info("job scheduler started", "scheduled_jobs", len(s.scheduled))
	return nil
}

// Stop shuts down the gocron scheduler.
func (s *Scheduler) Stop() error {
	return s.cron.Shutdown()
}

// Names returns the registered job names, sorted.
func (s *Scheduler) Names() []string {
	names := make([]string, 0, len(s.cfg.Jobs))
	for name := range s.cfg.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scheduled reports whether name has a cron schedule.
func (s *Scheduler) Scheduled(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.scheduled[name]
	return ok
}

// RunNow runs the named job synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	return s.execute(ctx, name)
}

// execute runs a job with concurrency limiting.
func (s *Scheduler) execute(ctx context.Context, name string) error {
	job, ok := s.cfg.Jobs[name]
	if !ok {
		return &UnknownJobError{Name: name}
	}

	select {
	case s.semaphore <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.semaphore }()

	started := time.Now()
	s.logger.Info("executing job", "job", name)
	if err := job(ctx); err != nil {
		return fmt.Errorf("job %q: %w", name, err)
	}
	s.logger.Info("job completed", "job", name, "duration", time.Since(started))
	return nil
}
