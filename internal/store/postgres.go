package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/mfarzz/jobai/internal/config"
	"github.com/mfarzz/jobai/internal/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPostgres opens a pgx connection pool and verifies it with a ping
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig, logger *errors.Logger) (Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "invalid database url", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	if logger != nil {
		logger.Info("Connected to PostgreSQL", "max_conns", poolCfg.MaxConns)
	}
	return newSQLStore(&pgBackend{pool: pool}, logger), nil
}

type pgBackend struct {
	pool *pgxpool.Pool
}

type pgTx struct {
	tx pgx.Tx
}

func (b *pgBackend) exec(ctx context.Context, query string, args ...any) error {
	_, err := b.pool.Exec(ctx, query, args...)
	return err
}

func (b *pgBackend) queryRow(ctx context.Context, query string, args ...any) row {
	return b.pool.QueryRow(ctx, query, args...)
}

func (b *pgBackend) query(ctx context.Context, query string, args ...any) (rows, error) {
	return b.pool.Query(ctx, query, args...)
}

func (b *pgBackend) inTx(ctx context.Context, fn func(q querier) error) error {
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

func (b *pgBackend) ping(ctx context.Context) error { return b.pool.Ping(ctx) }

func (b *pgBackend) close() error {
	b.pool.Close()
	return nil
}

func (b *pgBackend) isNoRows(err error) bool { return stderrors.Is(err, pgx.ErrNoRows) }

func (b *pgBackend) timeArg(t time.Time) any { return t.UTC() }

func (b *pgBackend) dialect() string { return "postgres" }

func (t *pgTx) exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.Exec(ctx, query, args...)
	return err
}

func (t *pgTx) queryRow(ctx context.Context, query string, args ...any) row {
	return t.tx.QueryRow(ctx, query, args...)
}

func (t *pgTx) query(ctx context.Context, query string, args ...any) (rows, error) {
	return t.tx.Query(ctx, query, args...)
}
