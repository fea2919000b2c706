package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"interest-profiler/analysis"
	"interest-profiler/profile"
	"interest-profiler/storage"
)

var (
	analyzeUser      string
	analyzeNoSuggest bool
	analyzeNoSave    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [url...]",
	Short: "Build an interest profile from URLs",
	Long: `Fetch and classify each URL, weight videos by length and print the
combined interest profile. Without arguments, prompts for a username and a
space separated list of URLs.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeUser, "user", "u", "", "username the profile belongs to")
	analyzeCmd.Flags().BoolVar(&analyzeNoSuggest, "no-suggest", false, "skip product suggestions")
	analyzeCmd.Flags().BoolVar(&analyzeNoSave, "no-save", false, "do not save the profile to history")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	user := strings.TrimSpace(analyzeUser)
	if user == "" {
		var err error
		if user, err = prompt(in, out, "Enter your username: "); err != nil {
			return err
		}
	}

	urls := analysis.SplitURLs(strings.Join(args, " "))
	if len(urls) == 0 {
		line, err := prompt(in, out, "Please enter URLs separated by 'SPACE': ")
		if err != nil {
			return err
		}
		urls = analysis.SplitURLs(line)
	}
	if len(urls) == 0 {
		return errors.New("no URLs given")
	}

	printer := newPrinter(cmd)
	ctx := cmd.Context()

	rep, err := newRunner(cfg, !analyzeNoSuggest).Run(ctx, user, urls)
	if errors.Is(err, profile.ErrInsufficientEvidence) {
		printer.Warning("None of the %d URL(s) could be analyzed; no profile was built.", len(urls))
		return err
	}
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	if !analyzeNoSave {
		saveReport(cmd, rep)
	}

	printer.Report(rep)
	return nil
}

// saveReport stores a run in history. The profile is still printed when
// the database is unavailable.
func saveReport(cmd *cobra.Command, rep *profile.Report) {
	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		slog.Warn("history unavailable", "path", cfg.DBPath, "error", err)
		return
	}
	defer db.Close()

	if err := db.SaveReport(cmd.Context(), 0, rep); err != nil {
		slog.Warn("failed to save report", "run_id", rep.RunID, "error", err)
		return
	}
	slog.Debug("report saved", "run_id", rep.RunID, "user", rep.User)
}

// prompt writes label and reads one trimmed line. A final line without a
// newline is accepted.
func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
