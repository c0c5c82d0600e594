// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"learnpath/internal/metrics"
)

const jobTimeout = time.Minute

type StreakResetter interface {
	ResetStaleStreaks(ctx context.Context) (int64, error)
}

// TokenPurger is implemented by refresh session stores that need expired
// rows removed explicitly.
type TokenPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron    *cron.Cron
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
}

// New builds a scheduler evaluating schedules in UTC. m may be nil.
func New(logger logrus.FieldLogger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		logger:  logger,
		metrics: m,
	}
}

func (s *Scheduler) ScheduleStreakReset(spec string, resetter StreakResetter) error {
	if _, err := s.cron.AddFunc(spec, func() { s.ResetStreaks(context.Background(), resetter) }); err != nil {
		return fmt.Errorf("schedule streak reset %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) ScheduleTokenPurge(spec string, purger TokenPurger) error {
	if _, err := s.cron.AddFunc(spec, func() { s.PurgeTokens(context.Background(), purger) }); err != nil {
		return fmt.Errorf("schedule token purge %q: %w", spec, err)
	}
	return nil
}

// ResetStreaks runs one streak maintenance pass.
func (s *Scheduler) ResetStreaks(ctx context.Context, resetter StreakResetter) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	n, err := resetter.ResetStaleStreaks(ctx)
	if err != nil {
		s.logger.WithError(err).Error("streak reset failed")
		if s.metrics != nil {
			s.metrics.StreakResetErrors.Inc()
		}
		return
	}
	if s.metrics != nil {
		s.metrics.StreakResetsTotal.Add(float64(n))
	}
	s.logger.WithField("reset", n).Info("streak reset completed")
}

// PurgeTokens runs one expired refresh session cleanup.
func (s *Scheduler) PurgeTokens(ctx context.Context, purger TokenPurger) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	n, err := purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.WithError(err).Error("refresh token purge failed")
		return
	}
	s.logger.WithField("purged", n).Debug("refresh token purge completed")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
