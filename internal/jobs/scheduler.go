// Package jobs runs the background schedule: the minutely sweep that
// deactivates lines past their cutoff.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// LineCloser deactivates unresolved lines whose cutoff has passed.
type LineCloser interface {
	CloseExpired(ctx context.Context, now time.Time) (int, error)
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron  *cron.Cron
	lines LineCloser
}

// NewScheduler creates a scheduler in UTC. Date keys and cutoffs are
// stored in UTC, so the sweep runs in the same frame.
func NewScheduler(lines LineCloser) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithLocation(time.UTC)),
		lines: lines,
	}
}

// Start registers the jobs and launches the runner.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc("* * * * *", func() {
		if _, err := s.lines.CloseExpired(ctx, time.Now().UTC()); err != nil {
			log.Error().Err(err).Msg("Cutoff sweep failed")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Info().Msg("Background scheduler started")
	return nil
}

// Stop halts the runner and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Background scheduler stopped")
}
