package geometry

import (
	"math"

	"stereomatch/internal/stereo"
)

// Choose picks the pairing whose solution represents a triple. angles holds
// the plane angle of every pairing. The primary pairing wins unless its
// angle deviates from 90 degrees by more than maxDeviation; then the other
// pairing closest to 90 degrees wins, ties going to canonical order.
func Choose(angles map[stereo.Combination]float64, primary stereo.Combination, maxDeviation float64) stereo.Combination {
	if math.Abs(angles[primary]-90) <= maxDeviation {
		return primary
	}
	best := primary
	bestDev := math.Inf(1)
	for _, p := range stereo.Pairs {
		if p == primary {
			continue
		}
		angle, ok := angles[p]
		if !ok {
			continue
		}
		if dev := math.Abs(angle - 90); dev < bestDev {
			best, bestDev = p, dev
		}
	}
	return best
}

// SourcePair returns the pairing that supplies station s's own solution when
// winner was chosen: winner itself if it contains s, otherwise the first
// other pairing containing s.
func SourcePair(s stereo.Station, winner stereo.Combination) stereo.Combination {
	if winner.Contains(s) {
		return winner
	}
	for _, p := range stereo.Pairs {
		if p != winner && p.Contains(s) {
			return p
		}
	}
	return winner
}
