package cache

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/interfaces"
)

// Scheduler purges expired cache entries on a cron schedule
type Scheduler struct {
	store  interfaces.CacheStore
	cron   *cron.Cron
	logger arbor.ILogger
}

// NewScheduler creates a purge scheduler
func NewScheduler(store interfaces.CacheStore, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		store:  store,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start begins scheduled purges
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		schedule = "@every 30m"
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.RunNow()
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Msg("Cache purge scheduler started")

	return nil
}

// Stop stops the scheduler and waits for a running purge
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Cache purge scheduler stopped")
}

// RunNow purges synchronously
func (s *Scheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	removed, err := s.store.Purge(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("Cache purge failed")
		return
	}

	s.logger.Debug().
		Int("removed", removed).
		Msg("Cache purge completed")
}
