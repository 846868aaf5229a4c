// Package jobs runs background work on cron schedules: the nightly
// streak-saver sweep and anything else the daemon registers.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/glow-labs/glow/internal/infra/metrics"
)

// Job is a named unit of scheduled work.
type Job struct {
	Name string
	Spec string // standard 5-field cron expression or @descriptor
	Run  func(ctx context.Context) error
}

// Scheduler runs jobs in a fixed timezone.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger

	mu   sync.RWMutex
	ctx  context.Context
	jobs map[string]Job
}

// NewScheduler creates a scheduler whose specs are read in loc.
func NewScheduler(loc *time.Location, log *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:  log,
		ctx:  context.Background(),
		jobs: make(map[string]Job),
	}
}

// Add registers a job. Jobs added after Start are picked up immediately.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job needs a name and a run func")
	}
	s.mu.Lock()
	if _, dup := s.jobs[job.Name]; dup {
		s.mu.Unlock()
		return fmt.Errorf("job %q already registered", job.Name)
	}
	s.jobs[job.Name] = job
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(job.Spec, func() { s.run(job) }); err != nil {
		s.mu.Lock()
		delete(s.jobs, job.Name)
		s.mu.Unlock()
		return fmt.Errorf("job %q spec %q: %w", job.Name, job.Spec, err)
	}
	return nil
}

// Start begins running jobs. ctx is handed to every run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	n := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", n))
}

// Stop halts the schedule and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunNow runs a registered job synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no job named %q", name)
	}
	return s.exec(ctx, job)
}

func (s *Scheduler) run(job Job) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	_ = s.exec(ctx, job)
}

func (s *Scheduler) exec(ctx context.Context, job Job) error {
	start := time.Now()
	err := job.Run(ctx)
	if err != nil {
		metrics.JobRuns.WithLabelValues(job.Name, "error").Inc()
		s.log.Error("job failed", zap.String("job", job.Name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return err
	}
	metrics.JobRuns.WithLabelValues(job.Name, "ok").Inc()
	s.log.Info("job finished", zap.String("job", job.Name), zap.Duration("took", time.Since(start)))
	return nil
}

// ─── Jobs ───────────────────────────────────────────────────────────────────

// StreakSaverJobName is the registered name of the nightly sweep.
const StreakSaverJobName = "streak_savers"

// StreakSaver is the part of the engagement service the sweep needs.
type StreakSaver interface {
	ApplyStreakSavers(ctx context.Context) (int, error)
}

// StreakSaverJob runs the streak-saver sweep on spec.
func StreakSaverJob(svc StreakSaver, spec string) Job {
	return Job{
		Name: StreakSaverJobName,
		Spec: spec,
		Run: func(ctx context.Context) error {
			_, err := svc.ApplyStreakSavers(ctx)
			return err
		},
	}
}
