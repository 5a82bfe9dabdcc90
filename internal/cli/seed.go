package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/mfarzz/jobai/internal/common"
	"github.com/mfarzz/jobai/internal/errors"
	"github.com/mfarzz/jobai/internal/types"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// seedDocument is the YAML layout accepted by "jobai seed"
type seedDocument struct {
	Jobs     []types.JobSummary `yaml:"jobs"`
	Profiles []seedProfile      `yaml:"profiles"`
}

type seedProfile struct {
	UserID              string `yaml:"user_id"`
	types.ProfileBundle `yaml:",inline"`
}

// SeedSummary reports what a seed run wrote
type SeedSummary struct {
	Jobs     int `json:"jobs"`
	Profiles int `json:"profiles"`
}

type seedStore interface {
	UpsertJob(ctx context.Context, job types.JobSummary) error
	ReplaceProfile(ctx context.Context, userID string, profile types.ProfileBundle) error
}

// parseSeed decodes and validates a seed document. Unknown keys are rejected
// so typos do not silently drop data.
func parseSeed(data []byte) (*seedDocument, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc seedDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "invalid seed file: "+err.Error(), err)
	}

	seen := make(map[int64]bool, len(doc.Jobs))
	for i, job := range doc.Jobs {
		if job.ID <= 0 {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("jobs[%d]: id must be positive", i), nil)
		}
		if strings.TrimSpace(job.Title) == "" {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("jobs[%d]: title is required", i), nil)
		}
		if seen[job.ID] {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("jobs[%d]: duplicate id %d", i, job.ID), nil)
		}
		seen[job.ID] = true
	}
	for i, p := range doc.Profiles {
		if strings.TrimSpace(p.UserID) == "" {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("profiles[%d]: user_id is required", i), nil)
		}
	}
	return &doc, nil
}

// applySeed writes jobs first so profiles never reference a missing job
func applySeed(ctx context.Context, st seedStore, doc *seedDocument) (SeedSummary, error) {
	var summary SeedSummary
	for _, job := range doc.Jobs {
		if err := st.UpsertJob(ctx, job); err != nil {
			return summary, err
		}
		summary.Jobs++
	}
	for _, p := range doc.Profiles {
		if err := st.ReplaceProfile(ctx, p.UserID, p.ProfileBundle); err != nil {
			return summary, err
		}
		summary.Profiles++
	}
	return summary, nil
}

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load jobs and user profiles from a YAML file",
	Long: `Load job summaries and user profiles into the database.

Jobs are upserted by id. A profile replaces everything previously stored
for its user. Example:

  jobs:
    - id: 1
      title: Backend Engineer
      description: Build services
      qualifications: 3 years of Go
      skills: [Go, PostgreSQL]
  profiles:
    - user_id: user-1
      skills:
        - {name: Go, level: 80}`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := getConfigFromContext(ctx)
		logger := getLoggerFromContext(ctx)

		data, err := common.NewFileProcessor(cfg.App.MaxFileSize, logger).ReadInputFile(seedFile)
		if err != nil {
			return err
		}
		doc, err := parseSeed(data)
		if err != nil {
			return err
		}

		return runWithApp(cmd, func(ctx context.Context, a *app) (SeedSummary, error) {
			summary, err := applySeed(ctx, a.store, doc)
			if err == nil {
				logger.Info("Seed applied", "jobs", summary.Jobs, "profiles", summary.Profiles)
			}
			return summary, err
		})
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "Seed file (YAML)")
	_ = seedCmd.MarkFlagRequired("file")
}
