package profile

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// DefaultSumTolerance is how far a distribution's score sum may drift from 1
// before the record is rejected.
const DefaultSumTolerance = 0.05

var (
	// ErrRetrieval marks a source whose content could not be obtained.
	ErrRetrieval = errors.New("content retrieval failed")
	// ErrClassification marks a source the classifier could not score.
	ErrClassification = errors.New("classification failed")
	// ErrMalformedDistribution marks a distribution rejected before folding.
	ErrMalformedDistribution = errors.New("malformed distribution")
	// ErrDuplicateRecord is returned when a source is folded twice.
	ErrDuplicateRecord = errors.New("record already folded")
	// ErrInsufficientEvidence is returned when no valid evidence was folded.
	ErrInsufficientEvidence = errors.New("insufficient evidence")
)

// LabelScore is one label's probability within a distribution.
type LabelScore struct {
	Label string
	Score float64
}

// Distribution is a classifier's scores over the candidate labels, in the
// order the classifier returned them.
type Distribution []LabelScore

// NewDistribution zips parallel label and score slices.
func NewDistribution(labels []string, scores []float64) (Distribution, error) {
	if len(labels) != len(scores) {
		return nil, fmt.Errorf("%w: %d labels, %d scores", ErrMalformedDistribution, len(labels), len(scores))
	}
	d := make(Distribution, len(labels))
	for i := range labels {
		d[i] = LabelScore{Label: labels[i], Score: scores[i]}
	}
	return d, nil
}

// Sum returns the total of all scores.
func (d Distribution) Sum() float64 {
	var sum float64
	for _, ls := range d {
		sum += ls.Score
	}
	return sum
}

// Record is the evidence one source contributes to a profile.
//
// Scores are expected to form a probability distribution; Validate checks
// that before a record is folded.
type Record struct {
	Source       Source
	Multiplier   Multiplier
	Duration     DurationHint
	Distribution Distribution
}

// NewRecord builds a record, attaching the multiplier the weight policy
// assigns to src and hint.
func NewRecord(src Source, hint DurationHint, dist Distribution) Record {
	return Record{
		Source:       src,
		Multiplier:   WeightFor(src.Kind, hint),
		Duration:     hint,
		Distribution: dist,
	}
}

// Validate checks a record using DefaultSumTolerance.
func Validate(r Record) error {
	return ValidateWithTolerance(r, DefaultSumTolerance)
}

// ValidateWithTolerance rejects records that would corrupt a pool: empty
// distributions, blank or repeated labels, scores outside [0,1], a
// non-positive multiplier, or a score sum further than tol from 1.
func ValidateWithTolerance(r Record, tol float64) error {
	if len(r.Distribution) == 0 {
		return fmt.Errorf("%w: empty", ErrMalformedDistribution)
	}
	m := float64(r.Multiplier)
	if math.IsNaN(m) || math.IsInf(m, 0) || m <= 0 {
		return fmt.Errorf("%w: multiplier %v", ErrMalformedDistribution, r.Multiplier)
	}

	seen := make(map[string]bool, len(r.Distribution))
	for _, ls := range r.Distribution {
		if strings.TrimSpace(ls.Label) == "" {
			return fmt.Errorf("%w: blank label", ErrMalformedDistribution)
		}
		if seen[ls.Label] {
			return fmt.Errorf("%w: duplicate label %q", ErrMalformedDistribution, ls.Label)
		}
		seen[ls.Label] = true
		if math.IsNaN(ls.Score) || ls.Score < 0 || ls.Score > 1 {
			return fmt.Errorf("%w: score %v for %q", ErrMalformedDistribution, ls.Score, ls.Label)
		}
	}

	if sum := r.Distribution.Sum(); math.Abs(sum-1) > tol {
		return fmt.Errorf("%w: scores sum to %.4f", ErrMalformedDistribution, sum)
	}
	return nil
}

// Stage names the step at which a source dropped out of a run.
type Stage string

const (
	StageRetrieval      Stage = "retrieval"
	StageClassification Stage = "classification"
	StageValidation     Stage = "validation"
)

// SourceError is a recovered, per-source failure.
type SourceError struct {
	URL   string
	Stage Stage
	Err   error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.URL, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
