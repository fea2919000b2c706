package profile

// CandidateLabels is the canonical, ordered label set the classifier is
// asked to score. Its order breaks ranking ties.
var CandidateLabels = []string{
	"Technology",
	"News",
	"Video Games",
	"Entertainment",
	"Science",
	"Business",
}

// labelOrder maps labels to their tie-break position. Labels missing from
// the order sort after every known label, lexically.
type labelOrder map[string]int

func newLabelOrder(labels []string) labelOrder {
	order := make(labelOrder, len(labels))
	for i, l := range labels {
		if _, dup := order[l]; !dup {
			order[l] = i
		}
	}
	return order
}

func (o labelOrder) less(a, b string) bool {
	ia, okA := o[a]
	ib, okB := o[b]
	switch {
	case okA && okB:
		return ia < ib
	case okA:
		return true
	case okB:
		return false
	default:
		return a < b
	}
}
