// Package store persists jobs, profiles, match analyses, quests and quest
// submissions. PostgreSQL (pgx) and SQLite (modernc) share one set of queries.
package store

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/mfarzz/jobai/internal/config"
	"github.com/mfarzz/jobai/internal/errors"
	"github.com/mfarzz/jobai/internal/types"
)

// Store is the persistence boundary used by the services, the CLI and the
// HTTP server. Lookups that match nothing return errors.ErrRecordNotFound.
type Store interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	GetJobSummary(ctx context.Context, jobID int64) (*types.JobSummary, error)
	UpsertJob(ctx context.Context, job types.JobSummary) error

	GetProfileBundle(ctx context.Context, userID string) (*types.ProfileBundle, error)
	ReplaceProfile(ctx context.Context, userID string, profile types.ProfileBundle) error

	UpsertAnalysis(ctx context.Context, analysis types.MatchAnalysis) (*types.MatchAnalysis, error)
	GetAnalysis(ctx context.Context, userID string, jobID int64) (*types.MatchAnalysis, error)
	StaleAnalyses(ctx context.Context, before time.Time, limit int) ([]types.StalePair, error)

	InsertQuests(ctx context.Context, quests []QuestRecord) error
	ListQuestsByJob(ctx context.Context, jobID int64, limit int) ([]QuestRecord, error)
	GetQuest(ctx context.Context, questID string) (*QuestRecord, error)
	GetSubmissions(ctx context.Context, userID string, questIDs []string) ([]types.QuestSubmission, error)
	UpsertSubmission(ctx context.Context, submission types.QuestSubmission) (*types.QuestSubmission, error)

	Stats(ctx context.Context) (*Stats, error)
}

// QuestRecord is a quest as stored. Option texts carry their XP value in
// the serialized form produced by the quest service.
type QuestRecord struct {
	ID            string
	JobID         int64
	Title         string
	Scenario      string
	OptionA       string
	OptionB       string
	OptionC       string
	CorrectOption string
	Explanations  map[string]string
	XPReward      int
	GeneratedByAI bool
	CreatedAt     time.Time
}

// OptionText returns the stored text for a label, or "" for unknown labels
func (q *QuestRecord) OptionText(label string) string {
	switch strings.ToUpper(label) {
	case types.OptionA:
		return q.OptionA
	case types.OptionB:
		return q.OptionB
	case types.OptionC:
		return q.OptionC
	}
	return ""
}

// Stats summarizes stored rows for the /stats endpoint
type Stats struct {
	Jobs              int64            `json:"jobs"`
	Analyses          int64            `json:"analyses"`
	AnalysesBySource  map[string]int64 `json:"analysesBySource"`
	Quests            int64            `json:"quests"`
	Submissions       int64            `json:"submissions"`
	CorrectSubmission int64            `json:"correctSubmissions"`
}

// Open connects to the configured backend
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *errors.Logger) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg, logger)
	case "sqlite", "":
		return NewSQLite(ctx, cfg.SQLitePath, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported database driver: %s", cfg.Driver), nil)
	}
}

// dbTime scans timestamps from either backend: pgx yields time.Time,
// SQLite yields the fixed-width text written by encodeSQLiteTime.
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time, d.Valid = time.Time{}, false
		return nil
	case time.Time:
		d.Time, d.Valid = v.UTC(), true
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	}
	return fmt.Errorf("cannot scan %T into timestamp", src)
}

func (d *dbTime) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	d.Time, d.Valid = t.UTC(), true
	return nil
}

// Ptr returns nil for NULL timestamps
func (d dbTime) Ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// sqliteTimeLayout is fixed width so text comparison orders chronologically
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type sqliteTime time.Time

func (t sqliteTime) Value() (driver.Value, error) {
	return time.Time(t).UTC().Format(sqliteTimeLayout), nil
}
