package profile

import (
	"fmt"
	"maps"
	"slices"
)

// Pool accumulates weighted label scores for a single run. It has one
// writer and is discarded once ranked.
type Pool struct {
	totals    map[string]float64
	weightSum float64
	folded    map[string]bool
	tolerance float64
}

// NewPool returns an empty pool validating with DefaultSumTolerance.
func NewPool() *Pool {
	return NewPoolWithTolerance(DefaultSumTolerance)
}

// NewPoolWithTolerance returns an empty pool whose Fold accepts score sums
// within tol of 1.
func NewPoolWithTolerance(tol float64) *Pool {
	return &Pool{
		totals:    make(map[string]float64),
		folded:    make(map[string]bool),
		tolerance: tol,
	}
}

// Fold validates r and adds its weighted scores to the pool. A rejected
// record leaves the pool untouched.
func (p *Pool) Fold(r Record) error {
	if p.folded[r.Source.URL] {
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, r.Source.URL)
	}
	if err := ValidateWithTolerance(r, p.tolerance); err != nil {
		return err
	}

	m := float64(r.Multiplier)
	for _, ls := range r.Distribution {
		p.totals[ls.Label] += ls.Score * m
	}
	p.weightSum += m
	p.folded[r.Source.URL] = true
	return nil
}

// Merge adds another pool's evidence into p. Sources present in both pools
// are reported as duplicates and nothing is merged.
func (p *Pool) Merge(other *Pool) error {
	for u := range other.folded {
		if p.folded[u] {
			return fmt.Errorf("%w: %s", ErrDuplicateRecord, u)
		}
	}
	for label, t := range other.totals {
		p.totals[label] += t
	}
	p.weightSum += other.weightSum
	for u := range other.folded {
		p.folded[u] = true
	}
	return nil
}

// Total returns the sum of all accumulated label scores.
func (p *Pool) Total() float64 {
	var sum float64
	for _, label := range slices.Sorted(maps.Keys(p.totals)) {
		sum += p.totals[label]
	}
	return sum
}

// WeightSum returns the sum of the multipliers of all folded records.
func (p *Pool) WeightSum() float64 {
	return p.weightSum
}

// Len returns the number of folded records.
func (p *Pool) Len() int {
	return len(p.folded)
}

// Totals returns a copy of the accumulated score per label.
func (p *Pool) Totals() map[string]float64 {
	out := make(map[string]float64, len(p.totals))
	for k, v := range p.totals {
		out[k] = v
	}
	return out
}

// Fold builds a pool from records, skipping those that fail validation.
// The rejected records' errors are returned alongside the pool.
func Fold(records ...Record) (*Pool, []error) {
	p := NewPool()
	var rejected []error
	for _, r := range records {
		if err := p.Fold(r); err != nil {
			rejected = append(rejected, err)
		}
	}
	return p, rejected
}
