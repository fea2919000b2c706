package report

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interest-profiler/profile"
)

func sampleReport() *profile.Report {
	video := profile.NewSource("https://www.youtube.com/watch?v=abc")
	page := profile.NewSource("https://example.com/post")
	return &profile.Report{
		User: "ada",
		Sources: []profile.SourceResult{
			{
				Source:     page,
				Multiplier: profile.NeutralWeight,
				Distribution: profile.Distribution{
					{Label: "Technology", Score: 0.7},
					{Label: "News", Score: 0.3},
				},
			},
			{
				Source:     video,
				Multiplier: profile.ShortWeight,
				Duration:   profile.KnownDuration(540),
				Distribution: profile.Distribution{
					{Label: "Video Games", Score: 1},
				},
			},
		},
		Failures: []*profile.SourceError{
			{URL: "https://broken.example", Stage: profile.StageRetrieval, Err: errors.New("status 500")},
		},
		Profile: profile.Profile{
			{Label: "Video Games", Percentage: 60},
			{Label: "Technology", Percentage: 28},
			{Label: "News", Percentage: 12},
		},
		Suggestions: []string{"Game console", "Mechanical keyboard"},
	}
}

func TestSourceLine(t *testing.T) {
	rep := sampleReport()

	assert.Equal(t, "Technology: 70.00% | News: 30.00% | Multiplier: 1x", SourceLine(rep.Sources[0]))
	assert.Equal(t,
		"Video Games: 100.00% | Multiplier: 1.5x (Video Detected, length: 9 minutes)",
		SourceLine(rep.Sources[1]))
}

func TestMultiplierTextUnknownDuration(t *testing.T) {
	got := MultiplierText(profile.NeutralWeight, profile.KindVideo, profile.DurationHint{})
	assert.Equal(t, "1x", got)
}

func TestText(t *testing.T) {
	out := Text(sampleReport())

	assert.Contains(t, out, "Results received for https://example.com/post:\n")
	assert.Contains(t, out, "https://broken.example (retrieval): status 500")
	assert.Contains(t, out, "User Engagement Profile for ada (Normalized Percentages):")
	assert.Contains(t, out, " - Video Games: 60.00%\n")
	assert.Contains(t, out, " - Mechanical keyboard\n")
}

func TestProfileTextWithoutUser(t *testing.T) {
	out := ProfileText("", profile.Profile{{Label: "Sports", Percentage: 100}})
	assert.Equal(t, "User Engagement Profile (Normalized Percentages):\n - Sports: 100.00%\n", out)
}

func TestPrinterReportNoColor(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ColorNever)

	p.Report(sampleReport())

	out := buf.String()
	assert.NotContains(t, out, "\x1b[")
	assert.Contains(t, out, "Hello ada, here are your URL Analysis Results:")
	assert.Contains(t, out, "[SKIPPED] https://broken.example (retrieval): status 500")
	assert.Contains(t, out, " - Technology: 28.00%\n")
	assert.Contains(t, out, "Suggested products:")
}

func TestPrinterReportColor(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ColorAlways)

	p.Profile("ada", profile.Profile{{Label: "Sports", Percentage: 100}})

	assert.Contains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), ": 100.00%")
}

func TestParseColorMode(t *testing.T) {
	for in, want := range map[string]ColorMode{"": ColorAuto, "auto": ColorAuto, "always": ColorAlways, "never": ColorNever} {
		got, err := ParseColorMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseColorMode("sometimes")
	assert.Error(t, err)
}

func TestResolveColorsNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.False(t, ResolveColors(ColorAuto))
	assert.True(t, ResolveColors(ColorAlways))
}
