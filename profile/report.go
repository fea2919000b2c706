package profile

import "time"

// SourceResult explains how one source contributed: its classification and
// the weight it was given.
type SourceResult struct {
	Source       Source
	Multiplier   Multiplier
	Duration     DurationHint
	Distribution Distribution
}

// Report is what a run exposes to presentation layers and to the
// suggestion step.
type Report struct {
	RunID       string
	User        string
	CreatedAt   time.Time
	Profile     Profile
	Top         Profile
	Sources     []SourceResult
	Failures    []*SourceError
	Suggestions []string
}

// TopLabels is the number of leading labels handed to the suggestion step.
const TopLabels = 2

// NewReport folds records into a fresh pool and ranks it. Records that fail
// validation are listed in Failures and excluded from Sources. If nothing
// survives, ErrInsufficientEvidence is returned with a nil report.
func NewReport(records []Record, failures []*SourceError, opts ...ReportOption) (*Report, error) {
	cfg := reportConfig{labels: CandidateLabels, tolerance: DefaultSumTolerance}
	for _, opt := range opts {
		opt(&cfg)
	}

	pool := NewPoolWithTolerance(cfg.tolerance)
	rep := &Report{Failures: append([]*SourceError(nil), failures...)}
	for _, r := range records {
		if err := pool.Fold(r); err != nil {
			rep.Failures = append(rep.Failures, &SourceError{URL: r.Source.URL, Stage: StageValidation, Err: err})
			continue
		}
		rep.Sources = append(rep.Sources, SourceResult{
			Source:       r.Source,
			Multiplier:   r.Multiplier,
			Duration:     r.Duration,
			Distribution: r.Distribution,
		})
	}

	prof, err := RankWithLabels(pool, cfg.labels)
	if err != nil {
		return nil, err
	}
	rep.Profile = prof
	rep.Top = prof.Top(TopLabels)
	return rep, nil
}

type reportConfig struct {
	labels    []string
	tolerance float64
}

// ReportOption configures NewReport.
type ReportOption func(*reportConfig)

// WithLabels sets the label order used to break ranking ties.
func WithLabels(labels []string) ReportOption {
	return func(c *reportConfig) {
		if len(labels) > 0 {
			c.labels = labels
		}
	}
}

// WithSumTolerance sets how far a distribution's sum may drift from 1.
func WithSumTolerance(tol float64) ReportOption {
	return func(c *reportConfig) {
		if tol > 0 {
			c.tolerance = tol
		}
	}
}
