package scheduler

import (
	"context"
	"time"
)

const RecalculateJobName = "gamification.recalculate"

// Recalculator is the slice of the gamification service the job drives.
type Recalculator interface {
	RecalculateAll(ctx context.Context) (int, error)
}

// RecalculateJob refreshes every user's stats row, bounding each run by
// timeout.
type RecalculateJob struct {
	service  Recalculator
	schedule string
	timeout  time.Duration
}

func NewRecalculateJob(service Recalculator, schedule string, timeout time.Duration) *RecalculateJob {
	return &RecalculateJob{service: service, schedule: schedule, timeout: timeout}
}

func (j *RecalculateJob) Name() string     { return RecalculateJobName }
func (j *RecalculateJob) Schedule() string { return j.schedule }

func (j *RecalculateJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	_, err := j.service.RecalculateAll(ctx)
	return err
}
