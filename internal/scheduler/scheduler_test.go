package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pivoine.art/gamification/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	runs     atomic.Int32
	err      error
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

type stubRecalculator struct {
	deadline time.Time
	hasDL    bool
	err      error
}

func (s *stubRecalculator) RecalculateAll(ctx context.Context) (int, error) {
	s.deadline, s.hasDL = ctx.Deadline()
	return 3, s.err
}

func TestRegister(t *testing.T) {
	s := New(logger.NewNop())

	require.NoError(t, s.Register(&countingJob{name: "b", schedule: "@every 1h"}))
	require.NoError(t, s.Register(&countingJob{name: "a"}))

	err := s.Register(&countingJob{name: "a"})
	assert.ErrorContains(t, err, `job "a" already registered`)

	err = s.Register(&countingJob{name: "c", schedule: "every tuesday"})
	assert.ErrorContains(t, err, "schedule c")

	assert.Equal(t, []string{"a", "b"}, s.Jobs())
}

func TestRunByName(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := New(logger.FromZap(zap.New(core)))

	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "failing", err: errors.New("boom")}
	require.NoError(t, s.Register(ok))
	require.NoError(t, s.Register(failing))

	require.NoError(t, s.RunByName(context.Background(), "ok"))
	assert.Equal(t, int32(1), ok.runs.Load())

	assert.EqualError(t, s.RunByName(context.Background(), "failing"), "boom")
	assert.Equal(t, 1, logs.FilterMessage("job failed").Len())

	assert.ErrorContains(t, s.RunByName(context.Background(), "missing"), "not registered")
}

func TestScheduledJobRuns(t *testing.T) {
	s := New(logger.NewNop())
	job := &countingJob{name: "tick", schedule: "@every 1s"}
	require.NoError(t, s.Register(job))

	s.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestRecalculateJob(t *testing.T) {
	svc := &stubRecalculator{}
	job := NewRecalculateJob(svc, "@every 1h", time.Minute)

	assert.Equal(t, RecalculateJobName, job.Name())
	assert.Equal(t, "@every 1h", job.Schedule())

	before := time.Now()
	require.NoError(t, job.Run(context.Background()))
	require.True(t, svc.hasDL)
	assert.WithinDuration(t, before.Add(time.Minute), svc.deadline, 5*time.Second)

	svc.err = context.DeadlineExceeded
	assert.ErrorIs(t, job.Run(context.Background()), context.DeadlineExceeded)
}

func TestRecalculateJobWithoutTimeout(t *testing.T) {
	svc := &stubRecalculator{}
	require.NoError(t, NewRecalculateJob(svc, "", 0).Run(context.Background()))
	assert.False(t, svc.hasDL)
}
