package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// runTimeout bounds a single job execution.
const runTimeout = 5 * time.Minute

// Job is a unit of periodic maintenance work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs registered jobs on cron specs.
// Implements cartridge.BackgroundWorker.
type Scheduler struct {
	cron      *cron.Cron
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool

	jobs map[string]Job

	// Prevents overlapping executions of the same job
	processingMutex sync.Mutex
	processing      map[string]bool
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:       cron.New(),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		jobs:       make(map[string]Job),
		processing: make(map[string]bool),
	}
}

// Register schedules job on spec, a standard cron expression or an
// "@every <duration>" descriptor.
func (s *Scheduler) Register(spec string, job Job) error {
	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %s already registered", job.Name())
	}
	_, err := s.cron.AddFunc(spec, func() {
		s.executeJobSafely(job)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, job.Name(), err)
	}
	s.jobs[job.Name()] = job
	s.logger.Info("Registered background job", slog.String("job", job.Name()), slog.String("schedule", spec))
	return nil
}

// RunNow executes a registered job immediately.
func (s *Scheduler) RunNow(name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job: %s", name)
	}
	s.executeJobSafely(job)
	return nil
}

// executeJobSafely runs a job unless a previous run of it is still going.
func (s *Scheduler) executeJobSafely(job Job) {
	name := job.Name()

	s.processingMutex.Lock()
	if s.processing[name] {
		s.logger.Debug("Skipping job execution - previous run still going", slog.String("job", name))
		s.processingMutex.Unlock()
		return
	}
	s.processing[name] = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", name),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.processing[name] = false
		s.processingMutex.Unlock()
	}()

	ctx, cancel := context.WithTimeout(s.ctx, runTimeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("Error executing job", slog.String("job", name), slog.Any("error", err))
		return
	}
	s.logger.Debug("Job finished", slog.String("job", name), slog.Duration("elapsed", time.Since(start)))
}

// Start begins running the registered jobs.
func (s *Scheduler) Start() error {
	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...", slog.Int("jobs", len(s.jobs)))
	s.cron.Start()
	s.isRunning = true
	return nil
}

// Stop halts the schedule and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.cancel()
	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently scheduled
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}
