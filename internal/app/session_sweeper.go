package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SessionSweeper purge périodiquement les sessions et jetons expirés.
type SessionSweeper struct {
	logger   zerolog.Logger
	accounts *AccountService

	Interval time.Duration
}

func NewSessionSweeper(logger zerolog.Logger, accounts *AccountService, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SessionSweeper{logger: logger, accounts: accounts, Interval: interval}
}

func (sw *SessionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info().Msg("session sweeper stopped")
			return
		case <-ticker.C:
			sw.sweep(ctx)
		}
	}
}

func (sw *SessionSweeper) sweep(ctx context.Context) {
	if sw.accounts == nil {
		return
	}
	n, err := sw.accounts.SweepExpired(ctx)
	if err != nil {
		sw.logger.Error().Err(err).Msg("session sweep failed")
		return
	}
	if n > 0 {
		sw.logger.Debug().Int64("removed", n).Msg("expired sessions swept")
	}
}
