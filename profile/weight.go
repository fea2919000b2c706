package profile

// Multiplier scales a source's label scores by how much attention it
// represents. Always positive.
type Multiplier float64

const (
	NeutralWeight Multiplier = 1
	ShortWeight   Multiplier = 1.5
	MediumWeight  Multiplier = 2
	LongWeight    Multiplier = 3
)

// WeightFor maps a source kind and duration hint to a multiplier.
//
// Generic sources and videos of unknown or non-positive length are neutral.
// Otherwise, with m the length in minutes: m > 60 is long, 10 < m <= 60 is
// medium and 0 < m <= 10 is short. A video of exactly 60 minutes is medium.
func WeightFor(kind Kind, hint DurationHint) Multiplier {
	if kind != KindVideo || !hint.Known || hint.Seconds <= 0 {
		return NeutralWeight
	}

	minutes := float64(hint.Seconds) / 60
	switch {
	case minutes > 60:
		return LongWeight
	case minutes > 10:
		return MediumWeight
	default:
		return ShortWeight
	}
}
