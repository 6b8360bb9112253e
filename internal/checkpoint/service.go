package checkpoint

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/RajibRobidas/memoirbox-reminders/internal/store"
)

// Service periodically advances the last-check marker while the process runs.
// Startup recovery treats everything after the marker as potentially missed,
// so without checkpointing a crash would replay alerts that were already
// delivered during the session.
type Service struct {
	repo     store.Repository
	schedule cron.Schedule
	stop     chan struct{}
	interval time.Duration
}

func NewService(repo store.Repository, cronExpr string, checkInterval time.Duration) (*Service, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:     repo,
		schedule: schedule,
		stop:     make(chan struct{}),
		interval: checkInterval,
	}, nil
}

func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	next := s.schedule.Next(time.Now())
	log.Info().Time("next", next).Msg("checkpoint service started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case now := <-ticker.C:
			if now.Before(next) {
				continue
			}
			if err := s.repo.SetLastCheck(ctx, now); err != nil {
				log.Error().Err(err).Msg("failed to write check marker")
				continue
			}
			next = s.schedule.Next(now)
			log.Debug().Time("next", next).Msg("check marker advanced")
		}
	}
}

func (s *Service) Stop() {
	close(s.stop)
}
