package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mfarzz/jobai/internal/errors"

	_ "modernc.org/sqlite"
)

// NewSQLite opens (creating if needed) a SQLite database file. Use
// ":memory:" for a throwaway database.
func NewSQLite(ctx context.Context, path string, logger *errors.Logger) (Store, error) {
	if path == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "sqlite path is empty", nil)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.NewIOError(errors.ErrCodeStorageFailed, "cannot create database directory", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	if logger != nil {
		logger.Debug("Opened SQLite database", "path", path)
	}
	return newSQLStore(&sqliteBackend{sqliteQuerier{db: db}, db}, logger), nil
}

type sqlConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type sqliteQuerier struct {
	db sqlConn
}

type sqliteBackend struct {
	sqliteQuerier
	pool *sql.DB
}

// sqlRows adapts *sql.Rows, whose Close returns an error
type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }

func (q sqliteQuerier) exec(ctx context.Context, query string, args ...any) error {
	_, err := q.db.ExecContext(ctx, numberedPlaceholders(query), args...)
	return err
}

func (q sqliteQuerier) queryRow(ctx context.Context, query string, args ...any) row {
	return q.db.QueryRowContext(ctx, numberedPlaceholders(query), args...)
}

func (q sqliteQuerier) query(ctx context.Context, query string, args ...any) (rows, error) {
	r, err := q.db.QueryContext(ctx, numberedPlaceholders(query), args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{r}, nil
}

func (b *sqliteBackend) inTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := b.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(sqliteQuerier{db: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (b *sqliteBackend) ping(ctx context.Context) error { return b.pool.PingContext(ctx) }

func (b *sqliteBackend) close() error { return b.pool.Close() }

func (b *sqliteBackend) isNoRows(err error) bool { return stderrors.Is(err, sql.ErrNoRows) }

func (b *sqliteBackend) timeArg(t time.Time) any { return sqliteTime(t) }

func (b *sqliteBackend) dialect() string { return "sqlite" }
