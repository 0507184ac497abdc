package mailer

import (
	"context"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/rs/zerolog"
)

// Log n'envoie rien : le lien est écrit dans les logs, pour un déploiement
// local sans relais SMTP.
type Log struct {
	logger zerolog.Logger
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "mailer").Logger()}
}

func (m *Log) Send(ctx context.Context, to string, purpose domain.TokenPurpose, link string) error {
	m.logger.Info().
		Str("to", to).
		Str("purpose", string(purpose)).
		Str("link", link).
		Msg("mail queued")
	return nil
}
