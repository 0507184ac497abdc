package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
)

// ViewStateRepository conserve le filtre et la recherche de chaque utilisateur.
type ViewStateRepository struct {
	db *sql.DB
}

func NewViewStateRepository(db *sql.DB) *ViewStateRepository {
	return &ViewStateRepository{db: db}
}

func defaultViewState() domain.Filter {
	return domain.Filter{Status: domain.StatusAll}
}

func (r *ViewStateRepository) Get(ctx context.Context, userID string) (domain.Filter, error) {
	var b []byte
	err := r.db.QueryRowContext(ctx, `SELECT value_json FROM view_state WHERE user_id = ?`, userID).Scan(&b)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Pas encore initialisé → valeurs par défaut.
			return defaultViewState(), nil
		}
		return domain.Filter{}, err
	}
	var f domain.Filter
	if err := json.Unmarshal(b, &f); err != nil {
		// Si corrompu : fallback safe.
		return defaultViewState(), nil
	}
	return f.Normalized(), nil
}

func (r *ViewStateRepository) Put(ctx context.Context, userID string, state domain.Filter) (domain.Filter, error) {
	b, err := json.Marshal(state.Normalized())
	if err != nil {
		return domain.Filter{}, err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO view_state(user_id, value_json, updated_at)
		VALUES(?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at
	`, userID, b, formatTime(time.Now()))
	if err != nil {
		return domain.Filter{}, err
	}
	return r.Get(ctx, userID)
}
