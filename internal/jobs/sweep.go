package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper drops in-memory state idle for longer than maxIdle and reports how
// much went. modes.Manager and exam.Registry both implement it.
type Sweeper interface {
	Sweep(maxIdle time.Duration) int
}

// SweepJob periodically clears abandoned practice games or settled exam
// sessions, one job per target.
type SweepJob struct {
	name     string
	target   Sweeper
	maxIdle  time.Duration
	schedule string
	logger   *zap.Logger
	cron     *cron.Cron
}

func NewSweepJob(name string, target Sweeper, maxIdle time.Duration, schedule string, logger *zap.Logger) *SweepJob {
	return &SweepJob{
		name:     name,
		target:   target,
		maxIdle:  maxIdle,
		schedule: schedule,
		logger:   logger.With(zap.String("job", name)),
		cron:     cron.New(),
	}
}

func (j *SweepJob) Start() error {
	if j.schedule == "" {
		return nil
	}
	if _, err := j.cron.AddFunc(j.schedule, func() { j.RunSweep() }); err != nil {
		return fmt.Errorf("failed to schedule %s sweep: %w", j.name, err)
	}
	j.cron.Start()
	return nil
}

func (j *SweepJob) Stop() {
	<-j.cron.Stop().Done()
}

func (j *SweepJob) RunSweep() int {
	n := j.target.Sweep(j.maxIdle)
	j.logger.Debug("sweep finished", zap.Int("removed", n))
	return n
}
