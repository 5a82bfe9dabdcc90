package store

import (
	"context"
	"regexp"
	"time"
)

type row interface {
	Scan(dest ...any) error
}

type rows interface {
	row
	Next() bool
	Err() error
	Close()
}

// querier is the subset of pgx and database/sql used by sqlStore. Queries
// are written with $N placeholders; dialects rewrite them as needed.
type querier interface {
	exec(ctx context.Context, query string, args ...any) error
	queryRow(ctx context.Context, query string, args ...any) row
	query(ctx context.Context, query string, args ...any) (rows, error)
}

// backend is a connection pool that can open transactions
type backend interface {
	querier
	inTx(ctx context.Context, fn func(q querier) error) error
	ping(ctx context.Context) error
	close() error
	isNoRows(err error) bool
	timeArg(t time.Time) any
	dialect() string
}

var placeholderPattern = regexp.MustCompile(`\$(\d+)`)

// numberedPlaceholders rewrites $N as ?N for SQLite
func numberedPlaceholders(query string) string {
	return placeholderPattern.ReplaceAllString(query, "?${1}")
}
