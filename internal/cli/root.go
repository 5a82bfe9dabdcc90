package cli

import (
	"context"

	"github.com/mfarzz/jobai/internal/common"
	"github.com/mfarzz/jobai/internal/config"
	"github.com/mfarzz/jobai/internal/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type configKeyType struct{}
type loggerKeyType struct{}

var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "jobai",
	Short: "AI match analysis and skill quests for job listings",
	Long: `jobai compares a user's profile with a job listing, producing a match
score, a skill gap and an HTML recommendation, and generates short
scenario quests that let users practice the skills a job needs.

Analyses fall back to heuristic scoring when the AI model is unavailable.`,
	SilenceUsage: true,
}

// outputFlags are shared by every command that prints a result
var outputFlags common.CommandConfig

func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	resetCommands(ctx, rootCmd)
	return rootCmd.ExecuteContext(ctx)
}

// resetCommands gives every command in the tree ctx and puts its flags back
// to their defaults. Cobra only copies the root context into a subcommand
// whose own context is nil.
func resetCommands(ctx context.Context, cmd *cobra.Command) {
	cmd.SetContext(ctx)
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetCommands(ctx, sub)
	}
}

func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	panic("config not found in context")
}

func getLoggerFromContext(ctx context.Context) *errors.Logger {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger
	}
	panic("logger not found in context")
}

// outputConfig resolves --format against the configured defaults
func outputConfig(cfg *config.Config) common.CommandConfig {
	out := outputFlags
	if out.OutputFormat == "" {
		out.OutputFormat = cfg.App.DefaultFormat
	}
	out.SupportedFormats = cfg.App.SupportedFormats
	return out
}

// runWithApp wires the application for a one-shot command and releases it
// afterwards
func runWithApp[Output any](cmd *cobra.Command, operation func(ctx context.Context, a *app) (Output, error)) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	a, err := newApp(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return common.RunCommand(ctx, logger, outputConfig(cfg), func(ctx context.Context) (Output, error) {
		return operation(ctx, a)
	})
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFlags.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	rootCmd.PersistentFlags().StringVar(&outputFlags.OutputFormat, "format", "", "Output format: json, text, or markdown")

	_ = rootCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return getConfigFromContext(cmd.Context()).App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(analysisCmd)
	rootCmd.AddCommand(questsCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
