// internal/service/jobs/scheduler.go
package jobs

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const purgeSchedule = "@daily"

// Scheduler runs Jobs on cron schedules.
type Scheduler struct {
	cron     *cron.Cron
	jobs     *Jobs
	schedule string
	logger   *zap.Logger
}

func NewScheduler(jobs *Jobs, schedule string, logger *zap.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:     c,
		jobs:     jobs,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	entries := []struct {
		name     string
		schedule string
		fn       func()
	}{
		{"expire pending payments", s.schedule, s.jobs.ExpirePendingPayments},
		{"delete expired notifications", s.schedule, s.jobs.DeleteExpiredNotifications},
		{"purge outbox", purgeSchedule, s.jobs.PurgeOutbox},
	}

	for _, e := range entries {
		if _, err := s.cron.AddFunc(e.schedule, e.fn); err != nil {
			s.logger.Error("failed to schedule job", zap.String("job", e.name), zap.Error(err))
			return err
		}
		s.logger.Info("scheduled job", zap.String("job", e.name), zap.String("schedule", e.schedule))
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
