package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"interest-profiler/analysis"
	"interest-profiler/profile"
	"interest-profiler/report"
)

// Sentinel errors for dependency interfaces
var (
	ErrSettingNotFound = errors.New("setting not found")
	ErrNotFound        = errors.New("not found")
)

// MaxMessageLength is Telegram's limit for one text message.
const MaxMessageLength = 4096

// HistoryLimit is how many runs /history lists.
const HistoryLimit = 5

// MessageSender sends messages to Telegram.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// SettingsStore manages persistent settings.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Analyzer builds a profile from a list of URLs.
type Analyzer interface {
	Run(ctx context.Context, user string, urls []string) (*profile.Report, error)
}

// WatchStore keeps each chat's watched sources.
type WatchStore interface {
	WatchSource(ctx context.Context, chatID int64, url string) (bool, error)
	UnwatchSource(ctx context.Context, chatID int64, url string) error
	WatchedSources(ctx context.Context, chatID int64) ([]string, error)
	WatchingChats(ctx context.Context) ([]int64, error)
}

// RunStore keeps profile history.
type RunStore interface {
	SaveReport(ctx context.Context, chatID int64, rep *profile.Report) error
	LatestRun(ctx context.Context, user string) (*RunSummary, error)
	RecentRuns(ctx context.Context, user string, limit int) ([]RunSummary, error)
}

// RefreshSchedule controls the daily refresh of watched sources.
type RefreshSchedule interface {
	Next() time.Time
	Reschedule(timeStr string) error
}

// RefreshTimeKey is the setting holding the daily refresh time chosen with
// /refresh. It takes precedence over the configured time.
const RefreshTimeKey = "refresh_time"

var timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// RunSummary is a saved run as shown in chat. Weights is filled only for
// the latest run.
type RunSummary struct {
	ID          string
	CreatedAt   time.Time
	SourceCount int
	Profile     profile.Profile
	Weights     []SourceWeight
}

// SourceWeight explains how one source of a saved run was weighted.
type SourceWeight struct {
	URL        string
	Kind       profile.Kind
	Multiplier profile.Multiplier
	Duration   profile.DurationHint
}

// CommandHandler handles bot commands.
type CommandHandler struct {
	sender   MessageSender
	settings SettingsStore
	analyzer Analyzer
	watches  WatchStore
	runs     RunStore
	schedule RefreshSchedule
}

// NewCommandHandler creates a new command handler. schedule may be nil,
// which disables /refresh.
func NewCommandHandler(
	sender MessageSender,
	settings SettingsStore,
	analyzer Analyzer,
	watches WatchStore,
	runs RunStore,
	schedule RefreshSchedule,
) *CommandHandler {
	return &CommandHandler{
		sender:   sender,
		settings: settings,
		analyzer: analyzer,
		watches:  watches,
		runs:     runs,
		schedule: schedule,
	}
}

// UserKey is the profile owner name used for a chat.
func UserKey(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}

// Dispatch routes a message to its command. Unknown text is ignored.
func (h *CommandHandler) Dispatch(ctx context.Context, chatID int64, text string) error {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return nil
	}

	cmd, args, _ := strings.Cut(text, " ")
	// Commands sent in groups may carry the bot name: /analyze@my_bot
	cmd, _, _ = strings.Cut(cmd, "@")
	args = strings.TrimSpace(args)

	switch strings.ToLower(cmd) {
	case "/start", "/help":
		return h.HandleStart(ctx, chatID)
	case "/analyze":
		return h.HandleAnalyze(ctx, chatID, args)
	case "/watch":
		return h.HandleWatch(ctx, chatID, args)
	case "/unwatch":
		return h.HandleUnwatch(ctx, chatID, args)
	case "/watchlist":
		return h.HandleWatchlist(ctx, chatID)
	case "/profile":
		return h.HandleProfile(ctx, chatID)
	case "/history":
		return h.HandleHistory(ctx, chatID)
	case "/refresh":
		return h.HandleRefresh(ctx, chatID, args)
	}
	return nil
}

// HandleStart handles the /start command.
func (h *CommandHandler) HandleStart(ctx context.Context, chatID int64) error {
	msg := "Welcome to the Interest Profiler! 🧭\n\n" +
		"Commands:\n" +
		"/analyze <urls> - Build a profile from pages and videos\n" +
		"/watch <urls> - Add sources to your daily refresh\n" +
		"/unwatch <url> - Remove a watched source\n" +
		"/watchlist - Show watched sources\n" +
		"/profile - Show your latest profile\n" +
		"/history - Show recent profiles\n" +
		"/refresh HH:MM - Set the daily refresh time\n\n" +
		"Separate URLs with spaces. Long videos count more than short ones."

	return h.send(ctx, chatID, msg)
}

// HandleAnalyze handles /analyze <urls>.
func (h *CommandHandler) HandleAnalyze(ctx context.Context, chatID int64, args string) error {
	urls := analysis.SplitURLs(args)
	if len(urls) == 0 {
		return h.send(ctx, chatID, "Usage: /analyze <url> [url ...]")
	}

	if err := h.send(ctx, chatID, fmt.Sprintf("🔍 Analyzing %d source(s)...", len(urls))); err != nil {
		return err
	}
	return h.analyzeAndReport(ctx, chatID, urls)
}

// HandleWatch handles /watch <urls>.
func (h *CommandHandler) HandleWatch(ctx context.Context, chatID int64, args string) error {
	urls := analysis.SplitURLs(args)
	if len(urls) == 0 {
		return h.send(ctx, chatID, "Usage: /watch <url> [url ...]")
	}

	added := 0
	for _, u := range urls {
		ok, err := h.watches.WatchSource(ctx, chatID, u)
		if err != nil {
			return fmt.Errorf("watch %s: %w", u, err)
		}
		if ok {
			added++
		}
	}

	return h.send(ctx, chatID, fmt.Sprintf("✅ Watching %d new source(s), %d already watched", added, len(urls)-added))
}

// HandleUnwatch handles /unwatch <url>.
func (h *CommandHandler) HandleUnwatch(ctx context.Context, chatID int64, args string) error {
	if args == "" {
		return h.send(ctx, chatID, "Usage: /unwatch <url>")
	}

	err := h.watches.UnwatchSource(ctx, chatID, args)
	if errors.Is(err, ErrNotFound) {
		return h.send(ctx, chatID, "That source is not on your watchlist.")
	}
	if err != nil {
		return fmt.Errorf("unwatch %s: %w", args, err)
	}
	return h.send(ctx, chatID, "🗑️ Removed "+args)
}

// HandleWatchlist handles /watchlist.
func (h *CommandHandler) HandleWatchlist(ctx context.Context, chatID int64) error {
	urls, err := h.watches.WatchedSources(ctx, chatID)
	if err != nil {
		return fmt.Errorf("list watched sources: %w", err)
	}
	if len(urls) == 0 {
		return h.send(ctx, chatID, "Your watchlist is empty. Add sources with /watch <url>.")
	}

	var sb strings.Builder
	sb.WriteString("👀 Watched sources:\n\n")
	for i, u := range urls {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, u)
	}
	if h.schedule != nil {
		if next := h.schedule.Next(); !next.IsZero() {
			fmt.Fprintf(&sb, "\nNext refresh: %s", next.Format("2006-01-02 15:04 MST"))
		}
	}

	return h.send(ctx, chatID, sb.String())
}

// HandleProfile handles /profile.
func (h *CommandHandler) HandleProfile(ctx context.Context, chatID int64) error {
	run, err := h.runs.LatestRun(ctx, UserKey(chatID))
	if errors.Is(err, ErrNotFound) {
		return h.send(ctx, chatID, "No profile yet. Try /analyze <urls>.")
	}
	if err != nil {
		return fmt.Errorf("latest run: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Profile from %s (%d sources)\n\n%s",
		run.CreatedAt.Format("2006-01-02 15:04"), run.SourceCount, report.ProfileText("", run.Profile))
	if len(run.Weights) > 0 {
		sb.WriteString("\nWeighting:\n")
		for _, w := range run.Weights {
			fmt.Fprintf(&sb, " - %s: %s\n", w.URL, report.MultiplierText(w.Multiplier, w.Kind, w.Duration))
		}
	}
	return h.send(ctx, chatID, truncate(sb.String(), MaxMessageLength))
}

// HandleHistory handles /history.
func (h *CommandHandler) HandleHistory(ctx context.Context, chatID int64) error {
	runs, err := h.runs.RecentRuns(ctx, UserKey(chatID), HistoryLimit)
	if err != nil {
		return fmt.Errorf("recent runs: %w", err)
	}
	if len(runs) == 0 {
		return h.send(ctx, chatID, "No profiles yet. Try /analyze <urls>.")
	}

	var sb strings.Builder
	sb.WriteString("🕑 Recent profiles:\n\n")
	for _, r := range runs {
		fmt.Fprintf(&sb, "%s (%d sources): %s\n", r.CreatedAt.Format("2006-01-02 15:04"), r.SourceCount, topSummary(r.Profile))
	}
	return h.send(ctx, chatID, sb.String())
}

// HandleRefresh handles /refresh [HH:MM]. Without a time it shows the
// current one.
func (h *CommandHandler) HandleRefresh(ctx context.Context, chatID int64, args string) error {
	if h.schedule == nil {
		return h.send(ctx, chatID, "Scheduled refresh is not enabled.")
	}

	if args == "" {
		current, err := h.settings.GetSetting(ctx, RefreshTimeKey)
		if errors.Is(err, ErrSettingNotFound) {
			current = "the configured time"
		} else if err != nil {
			return fmt.Errorf("get %s: %w", RefreshTimeKey, err)
		}
		msg := fmt.Sprintf("⏰ Daily refresh at %s. Change it with /refresh HH:MM", current)
		if next := h.schedule.Next(); !next.IsZero() {
			msg += fmt.Sprintf("\nNext refresh: %s", next.Format("2006-01-02 15:04 MST"))
		}
		return h.send(ctx, chatID, msg)
	}

	if !timeRegex.MatchString(args) {
		return h.send(ctx, chatID, "Invalid time format. Use HH:MM (e.g., 09:00, 18:30)")
	}
	if err := h.schedule.Reschedule(args); err != nil {
		return fmt.Errorf("reschedule refresh: %w", err)
	}
	if err := h.settings.SetSetting(ctx, RefreshTimeKey, args); err != nil {
		return fmt.Errorf("save %s: %w", RefreshTimeKey, err)
	}

	return h.send(ctx, chatID, fmt.Sprintf("✅ Daily refresh time updated to %s", args))
}

// RefreshAll re-analyzes every chat's watched sources. A failing chat is
// logged and does not stop the others.
func (h *CommandHandler) RefreshAll(ctx context.Context) {
	chats, err := h.watches.WatchingChats(ctx)
	if err != nil {
		slog.Error("failed to list watching chats", "error", err)
		return
	}

	slog.Info("refreshing watched sources", "chats", len(chats))
	for _, chatID := range chats {
		if ctx.Err() != nil {
			return
		}
		if err := h.RefreshChat(ctx, chatID); err != nil {
			slog.Warn("refresh failed", "chat_id", chatID, "error", err)
		}
	}
}

// RefreshChat re-analyzes one chat's watched sources and sends the report.
func (h *CommandHandler) RefreshChat(ctx context.Context, chatID int64) error {
	urls, err := h.watches.WatchedSources(ctx, chatID)
	if err != nil {
		return fmt.Errorf("list watched sources: %w", err)
	}
	if len(urls) == 0 {
		return nil
	}

	if err := h.send(ctx, chatID, "⏰ Daily refresh of your watched sources"); err != nil {
		return err
	}
	return h.analyzeAndReport(ctx, chatID, urls)
}

func (h *CommandHandler) analyzeAndReport(ctx context.Context, chatID int64, urls []string) error {
	rep, err := h.analyzer.Run(ctx, UserKey(chatID), urls)
	if errors.Is(err, profile.ErrInsufficientEvidence) {
		return h.send(ctx, chatID, "❌ None of those sources could be analyzed. Check the URLs and try again.")
	}
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	if err := h.runs.SaveReport(ctx, chatID, rep); err != nil {
		slog.Warn("failed to save report", "run_id", rep.RunID, "error", err)
	}

	return h.send(ctx, chatID, FormatReport(rep))
}

func (h *CommandHandler) send(ctx context.Context, chatID int64, text string) error {
	return h.sender.SendMessage(ctx, chatID, text)
}

// FormatReport formats a run for a Telegram message, trimmed to fit.
func FormatReport(rep *profile.Report) string {
	return truncate(report.Text(rep), MaxMessageLength)
}

func topSummary(p profile.Profile) string {
	top := p.Top(profile.TopLabels)
	parts := make([]string, 0, len(top))
	for _, e := range top {
		parts = append(parts, fmt.Sprintf("%s %.2f%%", e.Label, e.Percentage))
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
