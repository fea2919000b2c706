package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"interest-profiler/bot"
	"interest-profiler/scheduler"
	"interest-profiler/storage"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot with daily refresh of watched sources",
	RunE:  runBot,
}

func init() {
	rootCmd.AddCommand(botCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateBot(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	ctx := cmd.Context()

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()
	slog.Info("database initialized", "path", cfg.DBPath)

	tgBot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}
	slog.Info("telegram bot initialized", "username", tgBot.Self.UserName)

	sched, err := scheduler.NewScheduler(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("initialize scheduler: %w", err)
	}

	store := &botStore{db: db}
	refresh := &refreshSchedule{sched: sched}
	app := &botApp{
		tgBot:   tgBot,
		allowed: cfg.ChatID,
	}
	app.handler = bot.NewCommandHandler(app, store, newRunner(cfg, true), store, store, refresh)
	refresh.job = app.handler.RefreshAll

	refreshTime, err := storedRefreshTime(ctx, store, cfg.RefreshTime)
	if err != nil {
		return err
	}
	if err := refresh.Reschedule(refreshTime); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	sched.Start()
	defer sched.Stop()
	slog.Info("refresh scheduled", "time", refreshTime, "timezone", cfg.Timezone, "next", sched.Next())

	slog.Info("starting bot polling")
	app.run(ctx)
	slog.Info("bot stopped")
	return nil
}

// botApp polls Telegram and hands messages to the command handler.
type botApp struct {
	tgBot   *tgbotapi.BotAPI
	handler *bot.CommandHandler
	allowed int64
	wg      sync.WaitGroup
}

func (a *botApp) run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := a.tgBot.GetUpdatesChan(u)

	defer a.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			a.tgBot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Text == "" || update.Message.Chat == nil {
				continue
			}
			a.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage runs each command in its own goroutine so a long analysis
// does not block polling.
func (a *botApp) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if a.allowed != 0 && chatID != a.allowed {
		slog.Warn("ignoring message from unknown chat", "chat_id", chatID)
		return
	}

	slog.Info("received message", "chat_id", chatID, "text", msg.Text)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.handler.Dispatch(ctx, chatID, msg.Text); err != nil {
			slog.Error("command failed", "chat_id", chatID, "text", msg.Text, "error", err)
			a.SendMessage(ctx, chatID, "⚠️ Something went wrong, please try again later.")
		}
	}()
}

// SendMessage implements bot.MessageSender.
func (a *botApp) SendMessage(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true

	if _, err := a.tgBot.Send(msg); err != nil {
		slog.Warn("failed to send message", "chat_id", chatID, "error", err)
		return err
	}
	return nil
}

// refreshSchedule implements bot.RefreshSchedule on the cron scheduler.
type refreshSchedule struct {
	sched *scheduler.Scheduler
	job   scheduler.Job
}

func (r *refreshSchedule) Next() time.Time {
	return r.sched.Next()
}

func (r *refreshSchedule) Reschedule(timeStr string) error {
	return r.sched.ScheduleDaily(timeStr, r.job)
}

// storedRefreshTime returns the time saved with /refresh, or fallback when
// none was saved.
func storedRefreshTime(ctx context.Context, settings bot.SettingsStore, fallback string) (string, error) {
	t, err := settings.GetSetting(ctx, bot.RefreshTimeKey)
	if errors.Is(err, bot.ErrSettingNotFound) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", bot.RefreshTimeKey, err)
	}
	return t, nil
}
