package profile

import (
	"math"
	"sort"
)

// Entry is one label's share of a profile.
type Entry struct {
	Label      string
	Percentage float64
}

// Profile is the ranked interest distribution, highest share first.
type Profile []Entry

// Top returns at most n leading entries.
func (p Profile) Top(n int) Profile {
	if n > len(p) {
		n = len(p)
	}
	if n < 0 {
		n = 0
	}
	return p[:n]
}

// Sum returns the total of all percentages. Rounding keeps it near, not at,
// 100.
func (p Profile) Sum() float64 {
	var sum float64
	for _, e := range p {
		sum += e.Percentage
	}
	return sum
}

// Rank normalizes a pool into a profile, breaking ties by CandidateLabels.
func Rank(pool *Pool) (Profile, error) {
	return RankWithLabels(pool, CandidateLabels)
}

// RankWithLabels normalizes a pool into a profile. Equal percentages are
// ordered by position in labels; labels not listed come last, lexically.
func RankWithLabels(pool *Pool, labels []string) (Profile, error) {
	total := pool.Total()
	if pool.Len() == 0 || total <= 0 || math.IsNaN(total) {
		return nil, ErrInsufficientEvidence
	}

	prof := make(Profile, 0, len(pool.totals))
	for label, t := range pool.totals {
		prof = append(prof, Entry{Label: label, Percentage: round2(t / total * 100)})
	}

	order := newLabelOrder(labels)
	sort.Slice(prof, func(i, j int) bool {
		if prof[i].Percentage != prof[j].Percentage {
			return prof[i].Percentage > prof[j].Percentage
		}
		return order.less(prof[i].Label, prof[j].Label)
	})
	return prof, nil
}

// round2 rounds half up to two decimals. It rounds the stored binary
// value, so a literal such as 1.005, held as 1.00499999..., rounds down to 1.
func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
