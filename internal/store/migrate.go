package store

import (
	"context"
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY
)`

type migration struct {
	version    string
	statements []string
}

func loadMigrations(dialect string) ([]migration, error) {
	dir := path.Join("migrations", dialect)
	entries, err := migrationFS.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var migrations []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		content, err := migrationFS.ReadFile(path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, migration{
			version:    strings.TrimSuffix(entry.Name(), ".sql"),
			statements: splitStatements(string(content)),
		})
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })
	return migrations, nil
}

// splitStatements splits a migration file on statement-terminating semicolons
func splitStatements(content string) []string {
	var statements []string
	for _, part := range strings.Split(content, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

// Migrate applies pending schema migrations, each in its own transaction
func (s *sqlStore) Migrate(ctx context.Context) error {
	migrations, err := loadMigrations(s.db.dialect())
	if err != nil {
		return internal("load migrations", err)
	}
	if err := s.db.exec(ctx, createMigrationsTable); err != nil {
		return internal("create schema_migrations", err)
	}

	for _, m := range migrations {
		var applied int
		if err := s.db.queryRow(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = $1`, m.version).Scan(&applied); err != nil {
			return internal("check migration "+m.version, err)
		}
		if applied > 0 {
			continue
		}

		err := s.db.inTx(ctx, func(q querier) error {
			for _, stmt := range m.statements {
				if err := q.exec(ctx, stmt); err != nil {
					return err
				}
			}
			return q.exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version)
		})
		if err != nil {
			return internal("apply migration "+m.version, err)
		}
		if s.logger != nil {
			s.logger.Info("Applied migration", "version", m.version, "dialect", s.db.dialect())
		}
	}
	return nil
}
