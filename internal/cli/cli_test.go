package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mfarzz/jobai/internal/config"
	"github.com/mfarzz/jobai/internal/errors"
	"github.com/mfarzz/jobai/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `jobs:
  - id: 1
    title: Backend Engineer
    description: Build and run Go services
    qualifications: Three years of backend work
    skills: [Go, Kubernetes, PostgreSQL]
profiles:
  - user_id: user-1
    skills:
      - {name: Go, level: 80}
      - {name: PostgreSQL}
    experiences:
      - title: Developer
        company: Acme
        start_date: 2021-03-01
        current: true
    projects:
      - name: jobai
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "jobai.db")},
		App: config.AppConfig{
			DefaultFormat:    "json",
			SupportedFormats: []string{"json", "text", "markdown"},
			MaxFileSize:      1 << 20,
		},
	}
}

// run executes the root command and returns what it wrote to -o
func run(t *testing.T, cfg *config.Config, args ...string) ([]byte, error) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out")

	rootCmd.SetArgs(append(args, "-o", out))
	err := Execute(context.Background(), cfg, errors.NewLogger(8))
	if err != nil {
		return nil, err
	}
	data, readErr := os.ReadFile(out)
	if os.IsNotExist(readErr) {
		return nil, nil
	}
	require.NoError(t, readErr)
	return data, nil
}

func TestSeedAnalyzeShow(t *testing.T) {
	cfg := testConfig(t)
	seed := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(seedYAML), 0600))

	out, err := run(t, cfg, "seed", "--file", seed)
	require.NoError(t, err)
	var summary SeedSummary
	require.NoError(t, json.Unmarshal(out, &summary))
	assert.Equal(t, SeedSummary{Jobs: 1, Profiles: 1}, summary)

	// No API key is configured, so the analysis comes from fallback scoring
	out, err = run(t, cfg, "analyze", "--user", "user-1", "--job", "1")
	require.NoError(t, err)
	var analysis types.MatchAnalysis
	require.NoError(t, json.Unmarshal(out, &analysis))
	assert.Equal(t, 67, analysis.MatchScore)
	assert.Contains(t, analysis.Recommendation, "<h3>")

	out, err = run(t, cfg, "analysis", "show", "--user", "user-1", "--job", "1", "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, string(out), "Match score: 67/100")
}

func TestAnalysisShowMissing(t *testing.T) {
	_, err := run(t, testConfig(t), "analysis", "show", "--user", "nobody", "--job", "1")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestQuestGenerateWithoutKey(t *testing.T) {
	cfg := testConfig(t)
	seed := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(seedYAML), 0600))
	_, err := run(t, cfg, "seed", "--file", seed)
	require.NoError(t, err)

	_, err = run(t, cfg, "quests", "generate", "--job", "1", "--count", "2")
	require.Error(t, err)
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrCodeMissingAPIKey, appErr.Code)

	out, err := run(t, cfg, "quests", "list", "--job", "1", "--user", "user-1")
	require.NoError(t, err)
	var list types.QuestList
	require.NoError(t, json.Unmarshal(out, &list))
	assert.Nil(t, list.Quest)
	assert.Empty(t, list.Quests)
}

func TestUnsupportedFormat(t *testing.T) {
	cfg := testConfig(t)
	cfg.App.SupportedFormats = []string{"json"}

	_, err := run(t, cfg, "analysis", "show", "--user", "u", "--job", "1", "--format", "text")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestExecuteDoesNotReuseEarlierRun(t *testing.T) {
	seeded := testConfig(t)
	seed := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(seedYAML), 0600))
	_, err := run(t, seeded, "seed", "--file", seed)
	require.NoError(t, err)
	_, err = run(t, seeded, "analyze", "--user", "user-1", "--job", "1")
	require.NoError(t, err)

	out, err := run(t, seeded, "analysis", "show", "--user", "user-1", "--job", "1", "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, string(out), "Match score:")

	// Same subcommand, fresh database and no --format: the earlier config and
	// flag values must not leak in
	_, err = run(t, testConfig(t), "analysis", "show", "--user", "user-1", "--job", "1")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	out, err = run(t, seeded, "analysis", "show", "--user", "user-1", "--job", "1")
	require.NoError(t, err)
	var analysis types.MatchAnalysis
	require.NoError(t, json.Unmarshal(out, &analysis))
}
