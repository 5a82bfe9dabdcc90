package cli

import (
	"context"

	"github.com/mfarzz/jobai/internal/quest"
	"github.com/mfarzz/jobai/internal/types"

	"github.com/spf13/cobra"
)

var questFlags struct {
	userID  string
	jobID   int64
	count   int
	questID string
	option  string
}

var questsCmd = &cobra.Command{
	Use:   "quests",
	Short: "List, generate and answer skill quests",
}

var questsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the newest quests for a job with the user's submissions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) (*types.QuestList, error) {
			return a.quests.List(ctx, questFlags.jobID, questFlags.userID, questFlags.count)
		})
	},
}

var questsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate new AI quests for a job",
	Long: `Generate between 1 and 3 scenario quests for a job, each on a
different theme. Either all quests are stored or none are.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) ([]types.Quest, error) {
			a.logger.Info("Generating quests", "job_id", questFlags.jobID, "count", questFlags.count)
			return a.quests.Generate(ctx, questFlags.jobID, questFlags.count)
		})
	},
}

var questsSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit an answer to a quest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) (*types.SubmissionResult, error) {
			return a.quests.Submit(ctx, questFlags.questID, questFlags.userID, questFlags.option)
		})
	},
}

func init() {
	questsListCmd.Flags().Int64Var(&questFlags.jobID, "job", 0, "Job id")
	questsListCmd.Flags().StringVar(&questFlags.userID, "user", "", "User id")
	questsListCmd.Flags().IntVar(&questFlags.count, "count", quest.DefaultCount, "Number of quests (1-3)")
	_ = questsListCmd.MarkFlagRequired("job")
	_ = questsListCmd.MarkFlagRequired("user")

	questsGenerateCmd.Flags().Int64Var(&questFlags.jobID, "job", 0, "Job id")
	questsGenerateCmd.Flags().IntVar(&questFlags.count, "count", quest.DefaultCount, "Number of quests (1-3)")
	_ = questsGenerateCmd.MarkFlagRequired("job")

	questsSubmitCmd.Flags().StringVar(&questFlags.questID, "quest", "", "Quest id")
	questsSubmitCmd.Flags().StringVar(&questFlags.userID, "user", "", "User id")
	questsSubmitCmd.Flags().StringVar(&questFlags.option, "option", "", "Selected option: A, B or C")
	for _, name := range []string{"quest", "user", "option"} {
		_ = questsSubmitCmd.MarkFlagRequired(name)
	}
	_ = questsSubmitCmd.RegisterFlagCompletionFunc("option", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return types.OptionLabels[:], cobra.ShellCompDirectiveNoFileComp
	})

	questsCmd.AddCommand(questsListCmd, questsGenerateCmd, questsSubmitCmd)
}
