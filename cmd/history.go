package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"interest-profiler/storage"
)

var (
	historyUser  string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved interest profiles for a user",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historyUser, "user", "u", "", "username to list (required)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of profiles to show")
	_ = historyCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	user := strings.TrimSpace(historyUser)
	if user == "" {
		return errors.New("--user must not be blank")
	}
	if historyLimit < 1 {
		historyLimit = 1
	}

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.Context(), user, historyLimit)
	if err != nil {
		return err
	}

	printer := newPrinter(cmd)
	if len(runs) == 0 {
		printer.Print("No saved profiles for %s.", user)
		return nil
	}

	for _, run := range runs {
		printer.Print("\n%s  run %s  (%d sources)", run.CreatedAt.Local().Format("2006-01-02 15:04"), run.ID, run.SourceCount)
		printer.Profile(user, run.Profile)
		for _, s := range run.Suggestions {
			printer.Print("   * %s", s)
		}
	}
	return nil
}
