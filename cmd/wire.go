package cmd

import (
	"context"
	"errors"
	"time"

	"interest-profiler/analysis"
	"interest-profiler/bot"
	"interest-profiler/classifier"
	"interest-profiler/config"
	"interest-profiler/profile"
	"interest-profiler/scraper"
	"interest-profiler/storage"
	"interest-profiler/suggester"
	"interest-profiler/video"
)

// classifierBackoff is the first retry delay after a 503 or 429.
const classifierBackoff = 2 * time.Second

// newRunner wires the analysis pipeline from configuration. Video lengths
// are looked up only with a YouTube API key; suggestions only with an
// OpenAI key and when suggest is set.
func newRunner(cfg *config.Config, suggest bool) *analysis.Runner {
	fetcher := scraper.NewScraper(
		scraper.WithTimeout(cfg.FetchTimeout()),
		scraper.WithMaxContentLength(cfg.MaxContentLength),
	)

	classifierOpts := []classifier.Option{
		classifier.WithModel(cfg.HFModel),
		classifier.WithRateLimit(cfg.ClassifierRPS),
		classifier.WithRetries(uint64(cfg.ClassifierRetries), classifierBackoff),
	}
	if cfg.HFBaseURL != "" {
		classifierOpts = append(classifierOpts, classifier.WithBaseURL(cfg.HFBaseURL))
	}
	cls := &classifierAdapter{client: classifier.NewClient(cfg.HFAPIToken, classifierOpts...)}

	var durations analysis.DurationProvider
	if cfg.YouTubeAPIKey != "" {
		videoOpts := []video.Option{video.WithTimeout(cfg.FetchTimeout())}
		if cfg.YouTubeBaseURL != "" {
			videoOpts = append(videoOpts, video.WithBaseURL(cfg.YouTubeBaseURL))
		}
		durations = video.NewClient(cfg.YouTubeAPIKey, videoOpts...)
	}

	opts := []analysis.Option{
		analysis.WithLabels(cfg.Labels),
		analysis.WithConcurrency(cfg.Concurrency),
		analysis.WithSumTolerance(cfg.SumTolerance),
	}
	if suggest && cfg.OpenAIAPIKey != "" {
		suggestOpts := []suggester.Option{suggester.WithModel(cfg.OpenAIModel)}
		if cfg.OpenAIBaseURL != "" {
			suggestOpts = append(suggestOpts, suggester.WithBaseURL(cfg.OpenAIBaseURL))
		}
		opts = append(opts, analysis.WithSuggester(suggester.NewSuggester(cfg.OpenAIAPIKey, suggestOpts...)))
	}

	return analysis.NewRunner(fetcher, durations, cls, opts...)
}

// Adapter types to bridge between package APIs and the consumer interfaces

type classifierAdapter struct {
	client *classifier.Client
}

func (a *classifierAdapter) Classify(ctx context.Context, content string, labels []string) ([]string, []float64, error) {
	res, err := a.client.Classify(ctx, content, labels)
	if err != nil {
		return nil, nil, err
	}
	return res.Labels, res.Scores, nil
}

type botStore struct {
	db *storage.DB
}

func (s *botStore) GetSetting(ctx context.Context, key string) (string, error) {
	v, err := s.db.GetSetting(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", bot.ErrSettingNotFound
	}
	return v, err
}

func (s *botStore) SetSetting(ctx context.Context, key, value string) error {
	return s.db.SetSetting(ctx, key, value)
}

func (s *botStore) WatchSource(ctx context.Context, chatID int64, url string) (bool, error) {
	return s.db.WatchSource(ctx, chatID, url)
}

func (s *botStore) UnwatchSource(ctx context.Context, chatID int64, url string) error {
	err := s.db.UnwatchSource(ctx, chatID, url)
	if errors.Is(err, storage.ErrNotFound) {
		return bot.ErrNotFound
	}
	return err
}

func (s *botStore) WatchedSources(ctx context.Context, chatID int64) ([]string, error) {
	return s.db.WatchedSources(ctx, chatID)
}

func (s *botStore) WatchingChats(ctx context.Context) ([]int64, error) {
	return s.db.WatchingChats(ctx)
}

func (s *botStore) SaveReport(ctx context.Context, chatID int64, rep *profile.Report) error {
	return s.db.SaveReport(ctx, chatID, rep)
}

func (s *botStore) LatestRun(ctx context.Context, user string) (*bot.RunSummary, error) {
	run, err := s.db.LatestRun(ctx, user)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, bot.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	summary := toSummary(*run)
	return &summary, nil
}

func (s *botStore) RecentRuns(ctx context.Context, user string, limit int) ([]bot.RunSummary, error) {
	runs, err := s.db.ListRuns(ctx, user, limit)
	if err != nil {
		return nil, err
	}
	out := make([]bot.RunSummary, len(runs))
	for i, r := range runs {
		out[i] = toSummary(r)
	}
	return out, nil
}

func toSummary(r storage.Run) bot.RunSummary {
	summary := bot.RunSummary{
		ID:          r.ID,
		CreatedAt:   r.CreatedAt,
		SourceCount: r.SourceCount,
		Profile:     r.Profile,
	}
	for _, src := range r.Sources {
		w := bot.SourceWeight{
			URL:        src.URL,
			Kind:       src.Kind,
			Multiplier: profile.Multiplier(src.Multiplier),
		}
		if src.DurationSecs != nil {
			w.Duration = profile.KnownDuration(*src.DurationSecs)
		}
		summary.Weights = append(summary.Weights, w)
	}
	return summary
}
