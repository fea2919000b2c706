package analysis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interest-profiler/profile"
)

// Mocks

type mockFetcher struct {
	pages  map[string]string
	videos map[string]string
	onCall func()
	calls  atomic.Int32
}

func (m *mockFetcher) Scrape(ctx context.Context, url string) (string, error) {
	m.calls.Add(1)
	if m.onCall != nil {
		m.onCall()
	}
	if content, ok := m.pages[url]; ok {
		return content, nil
	}
	return "", errors.New("fetch failed")
}

func (m *mockFetcher) ScrapeVideo(ctx context.Context, url string) (string, error) {
	m.calls.Add(1)
	if content, ok := m.videos[url]; ok {
		return content, nil
	}
	return "", errors.New("fetch failed")
}

type mockDurations struct {
	seconds map[string]int64
}

func (m *mockDurations) Duration(ctx context.Context, videoID string) (int64, error) {
	if s, ok := m.seconds[videoID]; ok {
		return s, nil
	}
	return 0, errors.New("unknown video")
}

type rawScores struct {
	labels []string
	scores []float64
}

type mockClassifier struct {
	results map[string]profile.Distribution
	raw     map[string]rawScores
	mu      sync.Mutex
	labels  [][]string
}

func (m *mockClassifier) Classify(ctx context.Context, content string, labels []string) ([]string, []float64, error) {
	m.mu.Lock()
	m.labels = append(m.labels, labels)
	m.mu.Unlock()
	if r, ok := m.raw[content]; ok {
		return r.labels, r.scores, nil
	}
	d, ok := m.results[content]
	if !ok {
		return nil, nil, errors.New("classifier unavailable")
	}
	gotLabels := make([]string, len(d))
	scores := make([]float64, len(d))
	for i, ls := range d {
		gotLabels[i], scores[i] = ls.Label, ls.Score
	}
	return gotLabels, scores, nil
}

type mockSuggester struct {
	got         profile.Profile
	suggestions []string
	err         error
}

func (m *mockSuggester) Suggest(ctx context.Context, prof profile.Profile) ([]string, error) {
	m.got = prof
	return m.suggestions, m.err
}

func newFixtures() (*mockFetcher, *mockDurations, *mockClassifier) {
	fetcher := &mockFetcher{
		pages: map[string]string{
			"https://go.dev/blog":      "go blog",
			"https://news.example.com": "headlines",
		},
		videos: map[string]string{
			"https://www.youtube.com/watch?v=long":  "long video",
			"https://youtu.be/short":                "short video",
			"https://www.youtube.com/watch?v=nolen": "mystery video",
		},
	}
	durations := &mockDurations{seconds: map[string]int64{
		"long":  3601,
		"short": 600,
	}}
	classifier := &mockClassifier{results: map[string]profile.Distribution{
		"go blog":       {{Label: "Technology", Score: 1}},
		"headlines":     {{Label: "News", Score: 0.8}, {Label: "Business", Score: 0.2}},
		"long video":    {{Label: "Video Games", Score: 1}},
		"short video":   {{Label: "Entertainment", Score: 1}},
		"mystery video": {{Label: "Science", Score: 1}},
	}}
	return fetcher, durations, classifier
}

func TestRunWeightsSourcesByDuration(t *testing.T) {
	fetcher, durations, classifier := newFixtures()
	r := NewRunner(fetcher, durations, classifier)

	rep, err := r.Run(context.Background(), "ada", []string{
		"https://go.dev/blog",
		"https://www.youtube.com/watch?v=long",
		"https://youtu.be/short",
		"https://www.youtube.com/watch?v=nolen",
	})
	require.NoError(t, err)

	assert.Equal(t, "ada", rep.User)
	assert.NotEmpty(t, rep.RunID)
	require.Len(t, rep.Sources, 4)

	byURL := make(map[string]profile.SourceResult)
	for _, s := range rep.Sources {
		byURL[s.Source.URL] = s
	}
	assert.Equal(t, profile.NeutralWeight, byURL["https://go.dev/blog"].Multiplier)
	assert.Equal(t, profile.LongWeight, byURL["https://www.youtube.com/watch?v=long"].Multiplier)
	assert.Equal(t, profile.ShortWeight, byURL["https://youtu.be/short"].Multiplier)
	assert.Equal(t, profile.NeutralWeight, byURL["https://www.youtube.com/watch?v=nolen"].Multiplier)
	assert.False(t, byURL["https://www.youtube.com/watch?v=nolen"].Duration.Known)

	// 3 + 1.5 + 1 + 1 = 6.5
	require.NotEmpty(t, rep.Profile)
	assert.Equal(t, profile.Entry{Label: "Video Games", Percentage: 46.15}, rep.Profile[0])
	assert.Equal(t, profile.Entry{Label: "Entertainment", Percentage: 23.08}, rep.Profile[1])
	assert.Equal(t, "Technology", rep.Profile[2].Label)
	assert.Equal(t, "Science", rep.Profile[3].Label)
	assert.InDelta(t, 100.0, rep.Profile.Sum(), 0.1)
	assert.Equal(t, rep.Profile[:2], rep.Top)
}

func TestRunExcludesFailedSources(t *testing.T) {
	fetcher, durations, classifier := newFixtures()
	fetcher.pages["https://unclassifiable.example"] = "gibberish"
	fetcher.pages["https://blank.example"] = "   "
	r := NewRunner(fetcher, durations, classifier)

	rep, err := r.Run(context.Background(), "ada", []string{
		"https://go.dev/blog",
		"https://down.example",
		"https://unclassifiable.example",
		"https://blank.example",
	})
	require.NoError(t, err)

	assert.Equal(t, profile.Profile{{Label: "Technology", Percentage: 100}}, rep.Profile)
	require.Len(t, rep.Failures, 3)

	stages := make(map[string]profile.Stage)
	for _, f := range rep.Failures {
		stages[f.URL] = f.Stage
	}
	assert.Equal(t, profile.StageRetrieval, stages["https://down.example"])
	assert.Equal(t, profile.StageClassification, stages["https://unclassifiable.example"])
	assert.Equal(t, profile.StageRetrieval, stages["https://blank.example"])
}

func TestRunRejectsMalformedDistribution(t *testing.T) {
	fetcher, durations, classifier := newFixtures()
	fetcher.pages["https://double.example"] = "double"
	classifier.results["double"] = profile.Distribution{{Label: "News", Score: 1}, {Label: "Science", Score: 1}}
	r := NewRunner(fetcher, durations, classifier)

	rep, err := r.Run(context.Background(), "ada", []string{"https://go.dev/blog", "https://double.example"})
	require.NoError(t, err)

	assert.Equal(t, profile.Profile{{Label: "Technology", Percentage: 100}}, rep.Profile)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, profile.StageValidation, rep.Failures[0].Stage)
	assert.ErrorIs(t, rep.Failures[0], profile.ErrMalformedDistribution)
}

func TestRunRejectsMismatchedScores(t *testing.T) {
	fetcher, durations, classifier := newFixtures()
	fetcher.pages["https://short.example"] = "short"
	classifier.raw = map[string]rawScores{
		"short": {labels: []string{"Technology", "News"}, scores: []float64{1}},
	}
	r := NewRunner(fetcher, durations, classifier)

	rep, err := r.Run(context.Background(), "ada", []string{"https://go.dev/blog", "https://short.example"})
	require.NoError(t, err)

	assert.Equal(t, profile.Profile{{Label: "Technology", Percentage: 100}}, rep.Profile)
	require.Len(t, rep.Failures, 1)
	f := rep.Failures[0]
	assert.Equal(t, "https://short.example", f.URL)
	assert.Equal(t, profile.StageValidation, f.Stage)
	assert.True(t, errors.Is(f.Err, profile.ErrMalformedDistribution))
}

func TestRunRejectsEmptyScores(t *testing.T) {
	fetcher, durations, classifier := newFixtures()
	fetcher.pages["https://empty.example"] = "empty"
	classifier.raw = map[string]rawScores{"empty": {}}
	r := NewRunner(fetcher, durations, classifier)

	rep, err := r.Run(context.Background(), "ada", []string{"https://go.dev/blog", "https://empty.example"})
	require.NoError(t, err)

	require.Len(t, rep.Failures, 1)
	assert.Equal(t, profile.StageValidation, rep.Failures[0].Stage)
	assert.ErrorIs(t, rep.Failures[0], profile.ErrMalformedDistribution)
}

func TestRunInsufficientEvidence(t *testing.T) {
	fetcher, durations, classifier := newFixtures()
	r := NewRunner(fetcher, durations, classifier)

	rep, err := r.Run(context.Background(), "ada", []string{"https://down.example"})
	assert.Nil(t, rep)
	assert.ErrorIs(t, err, profile.ErrInsufficientEvidence)

	rep, err = r.Run(context.Background(), "ada", nil)
	assert.Nil(t, rep)
	assert.ErrorIs(t, err, profile.ErrInsufficientEvidence)
}

func TestRunDeduplicatesURLs(t *testing.T) {
	fetcher, durations, classifier := newFixtures()
	r := NewRunner(fetcher, durations, classifier)

	rep, err := r.Run(context.Background(), "ada", []string{"https://go.dev/blog", " https://go.dev/blog ", ""})
	require.NoError(t, err)
	assert.Len(t, rep.Sources, 1)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestRunCanceledDiscardsPartialResults(t *testing.T) {
	fetcher, durations, classifier := newFixtures()
	ctx, cancel := context.WithCancel(context.Background())
	fetcher.onCall = cancel
	r := NewRunner(fetcher, durations, classifier, WithConcurrency(1))

	rep, err := r.Run(ctx, "ada", []string{"https://go.dev/blog", "https://news.example.com"})
	assert.Nil(t, rep)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunSuggestions(t *testing.T) {
	fetcher, durations, classifier := newFixtures()
	suggester := &mockSuggester{suggestions: []string{"Mechanical keyboard"}}
	r := NewRunner(fetcher, durations, classifier, WithSuggester(suggester))

	rep, err := r.Run(context.Background(), "ada", []string{"https://go.dev/blog"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Mechanical keyboard"}, rep.Suggestions)
	assert.Equal(t, rep.Profile, suggester.got)
}

func TestRunSuggestionFailureIsNotFatal(t *testing.T) {
	fetcher, durations, classifier := newFixtures()
	suggester := &mockSuggester{err: errors.New("quota exceeded")}
	r := NewRunner(fetcher, durations, classifier, WithSuggester(suggester))

	rep, err := r.Run(context.Background(), "ada", []string{"https://go.dev/blog"})
	require.NoError(t, err)
	assert.Empty(t, rep.Suggestions)
}

func TestRunSendsConfiguredLabels(t *testing.T) {
	fetcher, durations, classifier := newFixtures()
	labels := []string{"Technology", "Cooking"}
	r := NewRunner(fetcher, durations, classifier, WithLabels(labels))

	_, err := r.Run(context.Background(), "ada", []string{"https://go.dev/blog"})
	require.NoError(t, err)
	require.Len(t, classifier.labels, 1)
	assert.Equal(t, labels, classifier.labels[0])
}

func TestRunWithoutDurationProvider(t *testing.T) {
	fetcher, _, classifier := newFixtures()
	r := NewRunner(fetcher, nil, classifier)

	rep, err := r.Run(context.Background(), "ada", []string{"https://www.youtube.com/watch?v=long"})
	require.NoError(t, err)
	assert.Equal(t, profile.NeutralWeight, rep.Sources[0].Multiplier)
}

func TestSplitURLs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitURLs("  a   b "))
	assert.Empty(t, SplitURLs("   "))
}
