package booking

import (
	"context"
	"time"
)

// RunNoShowSweeper periodically marks overdue confirmed reservations as
// no-show until ctx is cancelled. Blocks; run it on its own goroutine.
func (s *Service) RunNoShowSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("no-show sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("no-show sweeper stopped")
			return
		case <-ticker.C:
			swept, err := s.MarkOverdueNoShows(ctx)
			if err != nil {
				s.logger.Error().Err(err).Msg("no-show sweep failed")
				continue
			}
			if swept > 0 {
				s.logger.Info().Int("count", swept).Msg("no-show sweep done")
			}
		}
	}
}
