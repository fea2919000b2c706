package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"interest-profiler/profile"
)

const defaultConcurrency = 4

// ErrCanceled is returned when a run is cancelled before every source has
// been processed. Partial results are discarded.
var ErrCanceled = errors.New("analysis canceled")

// Fetcher retrieves classifiable text for a source.
type Fetcher interface {
	Scrape(ctx context.Context, url string) (string, error)
	ScrapeVideo(ctx context.Context, url string) (string, error)
}

// DurationProvider looks up a video's length in seconds.
type DurationProvider interface {
	Duration(ctx context.Context, videoID string) (int64, error)
}

// Classifier scores content against candidate labels. The returned labels
// and scores are parallel by index.
type Classifier interface {
	Classify(ctx context.Context, content string, labels []string) ([]string, []float64, error)
}

// Suggester turns a finished profile into product suggestions.
type Suggester interface {
	Suggest(ctx context.Context, prof profile.Profile) ([]string, error)
}

// Runner builds interest profiles from user-supplied URLs.
type Runner struct {
	fetcher      Fetcher
	durations    DurationProvider
	classifier   Classifier
	suggester    Suggester
	labels       []string
	concurrency  int
	sumTolerance float64
	now          func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithSuggester enables the product suggestion step.
func WithSuggester(s Suggester) Option {
	return func(r *Runner) {
		r.suggester = s
	}
}

// WithLabels sets the candidate labels sent to the classifier.
func WithLabels(labels []string) Option {
	return func(r *Runner) {
		if len(labels) > 0 {
			r.labels = labels
		}
	}
}

// WithConcurrency bounds how many sources are processed at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithSumTolerance sets how far a classifier's score sum may drift from 1.
func WithSumTolerance(tol float64) Option {
	return func(r *Runner) {
		r.sumTolerance = tol
	}
}

// NewRunner creates a runner. durations may be nil, in which case every
// video is weighted as if its length were unknown.
func NewRunner(fetcher Fetcher, durations DurationProvider, classifier Classifier, opts ...Option) *Runner {
	r := &Runner{
		fetcher:      fetcher,
		durations:    durations,
		classifier:   classifier,
		labels:       profile.CandidateLabels,
		concurrency:  defaultConcurrency,
		sumTolerance: profile.DefaultSumTolerance,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run analyzes urls for user. Sources that fail are listed in the report's
// Failures; the run itself fails only when no evidence survives or ctx is
// cancelled first.
func (r *Runner) Run(ctx context.Context, user string, urls []string) (*profile.Report, error) {
	runID := uuid.NewString()
	sources := uniqueSources(urls)
	slog.Info("starting analysis run", "run_id", runID, "user", user, "sources", len(sources))

	records, failures, err := r.gather(ctx, sources)
	if err != nil {
		return nil, err
	}
	for _, f := range failures {
		slog.Warn("source excluded", "run_id", runID, "url", f.URL, "stage", f.Stage, "error", f.Err)
	}

	rep, err := profile.NewReport(records, failures,
		profile.WithLabels(r.labels),
		profile.WithSumTolerance(r.sumTolerance),
	)
	if err != nil {
		slog.Warn("no profile produced", "run_id", runID, "sources", len(sources), "failures", len(failures), "error", err)
		return nil, fmt.Errorf("build profile: %w", err)
	}
	for _, f := range rep.Failures[len(failures):] {
		slog.Warn("record rejected", "run_id", runID, "url", f.URL, "error", f.Err)
	}

	rep.RunID = runID
	rep.User = user
	rep.CreatedAt = r.now()

	if r.suggester != nil {
		suggestions, err := r.suggester.Suggest(ctx, rep.Profile)
		if err != nil {
			slog.Warn("suggestion failed", "run_id", runID, "error", err)
		} else {
			rep.Suggestions = suggestions
		}
	}

	slog.Info("analysis run complete", "run_id", runID, "sources", len(rep.Sources), "failures", len(rep.Failures))
	return rep, nil
}

type outcome struct {
	record  profile.Record
	failure *profile.SourceError
}

// gather processes every source concurrently and returns once all of them
// have produced a record or a failure.
func (r *Runner) gather(ctx context.Context, sources []profile.Source) ([]profile.Record, []*profile.SourceError, error) {
	outcomes := make([]outcome, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			rec, failure := r.process(gctx, src)
			outcomes[i] = outcome{record: rec, failure: failure}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	var records []profile.Record
	var failures []*profile.SourceError
	for _, o := range outcomes {
		if o.failure != nil {
			failures = append(failures, o.failure)
			continue
		}
		records = append(records, o.record)
	}
	return records, failures, nil
}

func (r *Runner) process(ctx context.Context, src profile.Source) (profile.Record, *profile.SourceError) {
	var (
		content string
		err     error
	)
	if src.Kind == profile.KindVideo {
		content, err = r.fetcher.ScrapeVideo(ctx, src.URL)
	} else {
		content, err = r.fetcher.Scrape(ctx, src.URL)
	}
	if err == nil && strings.TrimSpace(content) == "" {
		err = errors.New("no content")
	}
	if err != nil {
		return profile.Record{}, &profile.SourceError{
			URL:   src.URL,
			Stage: profile.StageRetrieval,
			Err:   fmt.Errorf("%w: %w", profile.ErrRetrieval, err),
		}
	}

	hint := r.lookupDuration(ctx, src)

	labels, scores, err := r.classifier.Classify(ctx, content, r.labels)
	if err != nil {
		return profile.Record{}, &profile.SourceError{
			URL:   src.URL,
			Stage: profile.StageClassification,
			Err:   fmt.Errorf("%w: %w", profile.ErrClassification, err),
		}
	}
	dist, err := profile.NewDistribution(labels, scores)
	if err != nil {
		return profile.Record{}, &profile.SourceError{URL: src.URL, Stage: profile.StageValidation, Err: err}
	}

	return profile.NewRecord(src, hint, dist), nil
}

func (r *Runner) lookupDuration(ctx context.Context, src profile.Source) profile.DurationHint {
	if src.Kind != profile.KindVideo || r.durations == nil {
		return profile.UnknownDuration
	}
	id := src.VideoID()
	if id == "" {
		slog.Debug("no video id in url", "url", src.URL)
		return profile.UnknownDuration
	}
	secs, err := r.durations.Duration(ctx, id)
	if err != nil {
		slog.Debug("duration unknown", "url", src.URL, "video_id", id, "error", err)
		return profile.UnknownDuration
	}
	return profile.KnownDuration(secs)
}

func uniqueSources(urls []string) []profile.Source {
	seen := make(map[string]bool, len(urls))
	var sources []profile.Source
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		sources = append(sources, profile.NewSource(u))
	}
	return sources
}

// SplitURLs splits a space separated line of URLs, dropping blanks.
func SplitURLs(line string) []string {
	return strings.Fields(line)
}
