package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/ports"
)

type UsersRepository struct {
	db *sql.DB
}

func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

func (r *UsersRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users(id, email, password_hash, confirmed, created_at, last_login_at)
		VALUES(?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.PasswordHash, boolInt(user.Confirmed), formatTime(user.CreatedAt), formatTime(user.LastLoginAt))
	if err != nil {
		if isUniqueViolation(err, "users.email") {
			return domain.User{}, ports.ErrConflict
		}
		return domain.User{}, err
	}
	return r.Get(ctx, user.ID)
}

func (r *UsersRepository) get(ctx context.Context, where string, arg any) (domain.User, error) {
	var u domain.User
	var confirmed int
	var created, lastLogin string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, confirmed, created_at, last_login_at
		FROM users
		WHERE `+where+` = ?
	`, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &confirmed, &created, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, ports.ErrNotFound
		}
		return domain.User{}, err
	}
	u.Confirmed = confirmed != 0
	u.CreatedAt = parseTime(created)
	u.LastLoginAt = parseTime(lastLogin)
	return u, nil
}

func (r *UsersRepository) Get(ctx context.Context, id string) (domain.User, error) {
	return r.get(ctx, "id", id)
}

func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.get(ctx, "email", email)
}

func (r *UsersRepository) Update(ctx context.Context, user domain.User) (domain.User, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email = ?, password_hash = ?, confirmed = ?, last_login_at = ?
		WHERE id = ?
	`, user.Email, user.PasswordHash, boolInt(user.Confirmed), formatTime(user.LastLoginAt), user.ID)
	if err != nil {
		if isUniqueViolation(err, "users.email") {
			return domain.User{}, ports.ErrConflict
		}
		return domain.User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.User{}, ports.ErrNotFound
	}
	return r.Get(ctx, user.ID)
}

func (r *UsersRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

type SessionsRepository struct {
	db *sql.DB
}

func NewSessionsRepository(db *sql.DB) *SessionsRepository {
	return &SessionsRepository{db: db}
}

func (r *SessionsRepository) Create(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions(token, user_id, created_at, expires_at) VALUES(?, ?, ?, ?)
	`, s.Token, s.UserID, formatTime(s.CreatedAt), formatTime(s.ExpiresAt))
	return err
}

func (r *SessionsRepository) Get(ctx context.Context, token string) (domain.Session, error) {
	var s domain.Session
	var created, expires string
	err := r.db.QueryRowContext(ctx, `
		SELECT s.token, s.user_id, u.email, s.created_at, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = ?
	`, token).Scan(&s.Token, &s.UserID, &s.Email, &created, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, ports.ErrNotFound
		}
		return domain.Session{}, err
	}
	s.CreatedAt = parseTime(created)
	s.ExpiresAt = parseTime(expires)
	return s, nil
}

func (r *SessionsRepository) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return err
}

func (r *SessionsRepository) DeleteForUser(ctx context.Context, userID string, keepToken string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ? AND token <> ?`, userID, keepToken)
	return err
}

func (r *SessionsRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type TokensRepository struct {
	db *sql.DB
}

func NewTokensRepository(db *sql.DB) *TokensRepository {
	return &TokensRepository{db: db}
}

func (r *TokensRepository) Create(ctx context.Context, t domain.OneTimeToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO one_time_tokens(hash, user_id, purpose, expires_at) VALUES(?, ?, ?, ?)
	`, t.Hash, t.UserID, string(t.Purpose), formatTime(t.ExpiresAt))
	return err
}

func (r *TokensRepository) Consume(ctx context.Context, hash string, purpose domain.TokenPurpose, now time.Time) (domain.OneTimeToken, error) {
	var t domain.OneTimeToken
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var p, expires string
		err := tx.QueryRowContext(ctx, `
			SELECT hash, user_id, purpose, expires_at FROM one_time_tokens WHERE hash = ? AND purpose = ?
		`, hash, string(purpose)).Scan(&t.Hash, &t.UserID, &p, &expires)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ports.ErrNotFound
			}
			return err
		}
		t.Purpose = domain.TokenPurpose(p)
		t.ExpiresAt = parseTime(expires)
		_, err = tx.ExecContext(ctx, `DELETE FROM one_time_tokens WHERE hash = ?`, hash)
		return err
	})
	if err != nil {
		return domain.OneTimeToken{}, err
	}
	if !now.Before(t.ExpiresAt) {
		return domain.OneTimeToken{}, ports.ErrNotFound
	}
	return t, nil
}

func (r *TokensRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM one_time_tokens WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
