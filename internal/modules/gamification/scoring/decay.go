// Package scoring implements the time-decayed point weighting.
//
// A point entry of age a days is worth points * e^(-λa). With λ = 0.005 an
// entry loses about 14% of its value per 30 days (1 - e^(-0.15) ≈ 0.139).
// The score is only non-increasing over time while all points are
// non-negative; a future penalty action would break that property.
package scoring

import (
	"math"
	"time"
)

const (
	// DecayLambda is the per-day decay constant.
	DecayLambda = 0.005

	// SecondsPerDay converts epoch-second ages into days.
	SecondsPerDay = 86400
)

// Entry is the part of a ledger row the scorer needs.
type Entry struct {
	Points int
	At     time.Time
}

// AgeDays returns the age of at relative to asOf in fractional days.
func AgeDays(at, asOf time.Time) float64 {
	return asOf.Sub(at).Seconds() / SecondsPerDay
}

// Weight returns the multiplier for an entry of the given age.
func Weight(age time.Duration) float64 {
	return math.Exp(-DecayLambda * age.Seconds() / SecondsPerDay)
}

// Decayed returns the current value of points awarded at at.
func Decayed(points int, at, asOf time.Time) float64 {
	return float64(points) * math.Exp(-DecayLambda*AgeDays(at, asOf))
}

// WeightedScore sums the decayed value of every entry as of asOf.
func WeightedScore(entries []Entry, asOf time.Time) float64 {
	var total float64
	for _, e := range entries {
		total += Decayed(e.Points, e.At, asOf)
	}
	return total
}
