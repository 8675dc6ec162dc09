// Package scheduler runs periodic jobs on robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"pivoine.art/gamification/pkg/logger"
)

// Job is a unit of periodic work. An empty Schedule registers the job for
// on-demand runs only.
type Job interface {
	Name() string
	Schedule() string
	Run(ctx context.Context) error
}

type Scheduler struct {
	cron *cron.Cron
	jobs map[string]Job
	log  logger.Logger
}

func New(log logger.Logger) *Scheduler {
	log = log.Named("scheduler")
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs: make(map[string]Job),
		log:  log,
	}
}

// Register adds job and schedules it when it carries a cron expression.
func (s *Scheduler) Register(job Job) error {
	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %q already registered", job.Name())
	}

	if spec := job.Schedule(); spec != "" {
		if _, err := s.cron.AddFunc(spec, func() { s.execute(context.Background(), job) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name(), err)
		}
		s.log.Info("job scheduled", logger.String("job", job.Name()), logger.String("schedule", spec))
	} else {
		s.log.Info("job registered on demand", logger.String("job", job.Name()))
	}

	s.jobs[job.Name()] = job
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", logger.Int("jobs", len(s.jobs)))
}

// Stop prevents new runs and waits for running ones until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunByName executes a registered job immediately on the caller's goroutine.
func (s *Scheduler) RunByName(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	return s.execute(ctx, job)
}

func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	start := time.Now()
	s.log.Info("job started", logger.String("job", job.Name()))

	if err := job.Run(ctx); err != nil {
		s.log.Error("job failed",
			logger.String("job", job.Name()),
			logger.Duration("elapsed", time.Since(start)),
			logger.Err(err))
		return err
	}

	s.log.Info("job finished", logger.String("job", job.Name()), logger.Duration("elapsed", time.Since(start)))
	return nil
}

// cronLogger routes cron's own messages into the service logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(fields(keysAndValues), logger.Err(err))...)
}

func fields(keysAndValues []interface{}) []logger.Field {
	out := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		out = append(out, logger.Any(key, keysAndValues[i+1]))
	}
	return out
}
