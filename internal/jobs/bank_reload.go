package jobs

import (
	"context"
	"fmt"
	"time"

	"sprinklerprep/internal/repositories"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// BankReloader swaps in a freshly loaded question bank.
type BankReloader interface {
	Reload(ctx context.Context, l repositories.BankLoader) error
}

// BankReloadJob re-runs the question loader on a cron schedule. Exams already
// in progress keep the questions they sampled.
type BankReloadJob struct {
	repo     BankReloader
	loader   repositories.BankLoader
	schedule string
	timeout  time.Duration
	logger   *zap.Logger
	cron     *cron.Cron
}

func NewBankReloadJob(repo BankReloader, l repositories.BankLoader, schedule string, logger *zap.Logger) *BankReloadJob {
	return &BankReloadJob{
		repo:     repo,
		loader:   l,
		schedule: schedule,
		timeout:  5 * time.Minute,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start schedules the reload. An empty schedule disables the job.
func (j *BankReloadJob) Start() error {
	if j.schedule == "" {
		j.logger.Info("question bank reload disabled")
		return nil
	}
	if _, err := j.cron.AddFunc(j.schedule, func() { _ = j.RunReload() }); err != nil {
		return fmt.Errorf("failed to schedule bank reload: %w", err)
	}
	j.cron.Start()
	j.logger.Info("question bank reload scheduled", zap.String("schedule", j.schedule))
	return nil
}

// Stop waits for a running reload to finish.
func (j *BankReloadJob) Stop() {
	<-j.cron.Stop().Done()
}

// RunReload performs a single reload.
func (j *BankReloadJob) RunReload() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	if err := j.repo.Reload(ctx, j.loader); err != nil {
		j.logger.Error("question bank reload failed", zap.Error(err))
		return err
	}
	j.logger.Info("question bank reloaded", zap.Duration("took", time.Since(start)))
	return nil
}
