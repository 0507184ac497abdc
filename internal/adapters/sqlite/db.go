package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const pingTimeout = 10 * time.Second

// DB porte l'unique connexion SQLite du processus.
type DB struct {
	SQL *sql.DB
}

// Open ouvre la base, active les clés étrangères et applique les migrations.
// ":memory:" fonctionne car le pool est limité à une connexion.
func Open(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	d := &DB{SQL: conn}
	if err := d.init(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) init(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := d.SQL.PingContext(pingCtx); err != nil {
		return err
	}
	if _, err := d.SQL.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return err
	}
	return d.Migrate(ctx)
}

func (d *DB) Close() error {
	return d.SQL.Close()
}

// Les horodatages sont stockés en texte UTC à largeur fixe, pour que l'ordre
// lexical corresponde à l'ordre chronologique.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueViolation(err error, column string) bool {
	// modernc.org/sqlite: "constraint failed: UNIQUE constraint failed: users.email (2067)"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") && strings.Contains(msg, column)
}

// querier est satisfait par *sql.DB et *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
