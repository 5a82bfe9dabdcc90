package cli

import (
	"context"
	"time"

	"github.com/mfarzz/jobai/internal/types"

	"github.com/spf13/cobra"
)

var analyzeFlags struct {
	userID string
	jobID  int64
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze how well a user's profile matches a job",
	Long: `Compute a match analysis for one user and one job and store it,
replacing any previous analysis for the pair.

The analysis includes:
- A match score from 0 to 100
- Missing and existing skills
- An HTML recommendation with a preparation timeline

Without a working AI model the analysis is computed by heuristic scoring.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) (*types.MatchAnalysis, error) {
			a.logger.Info("Starting match analysis", "user_id", analyzeFlags.userID, "job_id", analyzeFlags.jobID)
			return a.analysis.Analyze(ctx, analyzeFlags.userID, analyzeFlags.jobID)
		})
	},
}

var analysisCmd = &cobra.Command{
	Use:   "analysis",
	Short: "Inspect stored match analyses",
}

var analysisShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored analysis for a user and job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) (*types.MatchAnalysis, error) {
			return a.analysis.GetExisting(ctx, analyzeFlags.userID, analyzeFlags.jobID)
		})
	},
}

var refreshFlags struct {
	olderThan time.Duration
	limit     int
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute analyses older than a cutoff once",
	Long: `Run a single pass of the scheduled refresh: analyses older than
--older-than are recomputed, oldest first, up to --limit pairs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if !cmd.Flags().Changed("older-than") {
			refreshFlags.olderThan = cfg.Scheduler.StaleAfter
		}
		if !cmd.Flags().Changed("limit") {
			refreshFlags.limit = cfg.Scheduler.BatchSize
		}
		return runWithApp(cmd, func(ctx context.Context, a *app) (map[string]any, error) {
			refreshed, err := a.analysis.Refresh(ctx, refreshFlags.olderThan, refreshFlags.limit)
			if err != nil {
				return nil, err
			}
			return map[string]any{"refreshed": refreshed}, nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{analyzeCmd, analysisShowCmd} {
		cmd.Flags().StringVar(&analyzeFlags.userID, "user", "", "User id")
		cmd.Flags().Int64Var(&analyzeFlags.jobID, "job", 0, "Job id")
		_ = cmd.MarkFlagRequired("user")
		_ = cmd.MarkFlagRequired("job")
	}
	analysisCmd.AddCommand(analysisShowCmd)

	refreshCmd.Flags().DurationVar(&refreshFlags.olderThan, "older-than", 0, "Recompute analyses older than this (default from scheduler.staleAfter)")
	refreshCmd.Flags().IntVar(&refreshFlags.limit, "limit", 0, "Maximum pairs to recompute (default from scheduler.batchSize)")
}
