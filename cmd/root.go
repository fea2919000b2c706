// Package cmd contains the interest-profiler CLI commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"interest-profiler/config"
	"interest-profiler/report"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "interest-profiler",
	Short: "Build weighted interest profiles from web pages and videos",
	Long: `interest-profiler reads pages and videos, classifies each one against a
set of interest labels and folds the results into a normalized profile.
Longer videos weigh more than short ones.

Example usage:
  interest-profiler analyze                      # prompt for user and URLs
  interest-profiler analyze --user ada URL...    # analyze the given URLs
  interest-profiler history --user ada           # list saved profiles
  interest-profiler bot                          # run the Telegram bot`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $INTEREST_PROFILER_CONFIG or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// initConfig loads configuration and installs the JSON logger on stderr so
// logs never interleave with the report on stdout.
func initConfig() error {
	path := cfgFile
	if path == "" {
		path = config.GetConfigPath()
	}

	loaded, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	cfg = loaded

	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	slog.Debug("config loaded", "path", path, "labels", cfg.Labels, "db_path", cfg.DBPath)

	return nil
}

func newPrinter(cmd *cobra.Command) *report.Printer {
	// config validation already rejected unknown modes
	mode, _ := report.ParseColorMode(cfg.Color)
	return report.NewPrinter(cmd.OutOrStdout(), mode)
}
