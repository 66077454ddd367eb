package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"copilot-salud-backend/internal/dataset"
	"copilot-salud-backend/internal/ratelimit"
)

// janitorSchedule runs the sweep every five minutes.
const janitorSchedule = "0 */5 * * * *"

// NewScheduler wires the periodic janitor: expired rate-limit windows,
// blocks and cached dataset bundles are dropped on a cron cadence.
func NewScheduler(lc fx.Lifecycle, limiter *ratelimit.Limiter, loader dataset.Loader) *cron.Cron {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.DowOptional | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))

	_, err := c.AddFunc(janitorSchedule, func() {
		limiter.Sweep()
		loader.Sweep()
		log.Debug().Msg("Janitor sweep completed")
	})
	if err != nil {
		log.Fatal().Err(err).Str("schedule", janitorSchedule).Msg("Failed to add cron job")
		return nil
	}
	log.Info().Str("schedule", janitorSchedule).Msg("Scheduled janitor sweep")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msg("Starting cron scheduler")
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Stopping cron scheduler...")
			stopCtx := c.Stop()
			select {
			case <-stopCtx.Done():
				log.Info().Msg("Cron scheduler stopped gracefully.")
				return nil
			case <-ctx.Done():
				log.Error().Msg("Context cancelled while waiting for cron scheduler to stop.")
				return ctx.Err()
			}
		},
	})

	return c
}
