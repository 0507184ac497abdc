package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/ports"
)

type TitlesRepository struct {
	db *sql.DB
}

func NewTitlesRepository(db *sql.DB) *TitlesRepository {
	return &TitlesRepository{db: db}
}

const titleColumns = `id, owner_id, name, kind, status, poster_url, watched, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTitle(row rowScanner) (domain.Title, error) {
	var t domain.Title
	var kind, created, updated string
	var watched int
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &kind, &t.Status, &t.PosterURL, &watched, &created, &updated); err != nil {
		return domain.Title{}, err
	}
	t.Kind = domain.Kind(kind)
	t.Watched = watched != 0
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r *TitlesRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Title, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+titleColumns+`
		FROM titles
		WHERE owner_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Title, 0)
	index := map[string]int{}
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, err
		}
		index[t.ID] = len(out)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	seasonRows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.title_id, s.season_number, s.total_episodes, s.last_watched
		FROM seasons s
		JOIN titles t ON t.id = s.title_id
		WHERE t.owner_id = ?
		ORDER BY s.title_id, s.season_number ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer seasonRows.Close()
	for seasonRows.Next() {
		s, err := scanSeason(seasonRows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[s.TitleID]; ok {
			out[i].Seasons = append(out[i].Seasons, s)
		}
	}
	return out, seasonRows.Err()
}

func scanSeason(row rowScanner) (domain.Season, error) {
	var s domain.Season
	err := row.Scan(&s.ID, &s.TitleID, &s.Number, &s.TotalEpisodes, &s.LastWatched)
	return s, err
}

func (r *TitlesRepository) Get(ctx context.Context, id string) (domain.Title, error) {
	return getTitle(ctx, r.db, id)
}

func getTitle(ctx context.Context, q querier, id string) (domain.Title, error) {
	t, err := scanTitle(q.QueryRowContext(ctx, `SELECT `+titleColumns+` FROM titles WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Title{}, ports.ErrNotFound
		}
		return domain.Title{}, err
	}
	seasons, err := listSeasons(ctx, q, id)
	if err != nil {
		return domain.Title{}, err
	}
	t.Seasons = seasons
	return t, nil
}

func listSeasons(ctx context.Context, q querier, titleID string) ([]domain.Season, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, title_id, season_number, total_episodes, last_watched
		FROM seasons
		WHERE title_id = ?
		ORDER BY season_number ASC
	`, titleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Season
	for rows.Next() {
		s, err := scanSeason(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func insertSeasons(ctx context.Context, q querier, titleID string, seasons []domain.Season) error {
	for _, s := range seasons {
		s = domain.ClampSeason(s)
		_, err := q.ExecContext(ctx, `
			INSERT INTO seasons(id, title_id, season_number, total_episodes, last_watched)
			VALUES(?, ?, ?, ?, ?)
		`, s.ID, titleID, s.Number, s.TotalEpisodes, s.LastWatched)
		if err != nil {
			if isUniqueViolation(err, "seasons.") {
				return ports.ErrConflict
			}
			return err
		}
	}
	return nil
}

func (r *TitlesRepository) Create(ctx context.Context, title domain.Title) (domain.Title, error) {
	var created domain.Title
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO titles(`+titleColumns+`)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			title.ID, title.OwnerID, title.Name, string(title.Kind), title.Status, title.PosterURL,
			boolInt(title.Watched), formatTime(title.CreatedAt), formatTime(title.UpdatedAt),
		)
		if err != nil {
			if isUniqueViolation(err, "titles.id") {
				return ports.ErrConflict
			}
			return err
		}
		if err := insertSeasons(ctx, tx, title.ID, title.Seasons); err != nil {
			return err
		}
		created, err = getTitle(ctx, tx, title.ID)
		return err
	})
	if err != nil {
		return domain.Title{}, err
	}
	return created, nil
}

func (r *TitlesRepository) Update(ctx context.Context, title domain.Title, replaceSeasons bool) (domain.Title, error) {
	var updated domain.Title
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE titles
			SET name = ?, kind = ?, status = ?, poster_url = ?, watched = ?, updated_at = ?
			WHERE id = ?
		`,
			title.Name, string(title.Kind), title.Status, title.PosterURL, boolInt(title.Watched),
			formatTime(title.UpdatedAt), title.ID,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ports.ErrNotFound
		}
		if replaceSeasons {
			if _, err := tx.ExecContext(ctx, `DELETE FROM seasons WHERE title_id = ?`, title.ID); err != nil {
				return err
			}
			if err := insertSeasons(ctx, tx, title.ID, title.Seasons); err != nil {
				return err
			}
		}
		updated, err = getTitle(ctx, tx, title.ID)
		return err
	})
	if err != nil {
		return domain.Title{}, err
	}
	return updated, nil
}

func (r *TitlesRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM seasons WHERE title_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM titles WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ports.ErrNotFound
		}
		return nil
	})
}

func (r *TitlesRepository) InsertSeason(ctx context.Context, season domain.Season) (domain.Season, error) {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertSeasons(ctx, tx, season.TitleID, []domain.Season{season}); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "foreign key") {
				return ports.ErrNotFound
			}
			return err
		}
		return touchTitle(ctx, tx, season.TitleID)
	})
	if err != nil {
		return domain.Season{}, err
	}
	return domain.ClampSeason(season), nil
}

func touchTitle(ctx context.Context, q querier, titleID string) error {
	res, err := q.ExecContext(ctx, `UPDATE titles SET updated_at = ? WHERE id = ?`, formatTime(time.Now()), titleID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *TitlesRepository) ApplySeasonProgress(ctx context.Context, titleID string, seasons []domain.Season) error {
	if len(seasons) == 0 {
		return nil
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, s := range seasons {
			res, err := tx.ExecContext(ctx, `
				UPDATE seasons
				SET last_watched = MAX(0, MIN(?, total_episodes))
				WHERE id = ? AND title_id = ?
			`, s.LastWatched, s.ID, titleID)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return ports.ErrNotFound
			}
		}
		return touchTitle(ctx, tx, titleID)
	})
}

func (r *TitlesRepository) SetWatched(ctx context.Context, id string, watched bool) (domain.Title, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE titles SET watched = ?, updated_at = ? WHERE id = ?
	`, boolInt(watched), formatTime(time.Now()), id)
	if err != nil {
		return domain.Title{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Title{}, ports.ErrNotFound
	}
	return r.Get(ctx, id)
}
