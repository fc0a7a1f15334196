// Package plausibility rejects reconstructed geometries that cannot be a real
// shower: too little of the track seen by both stations, or a trajectory too
// close to the horizon.
package plausibility

import (
	"fmt"
	"math"
)

// Rejection names why an event was dropped.
type Rejection string

const (
	Accepted  Rejection = ""
	BadRatio  Rejection = "bad ratio"
	BadZenith Rejection = "bad zenith"
)

// ZeroDetail explains a ratio rejection caused by a degenerate duration.
const ZeroDetail = "zero total duration"

// Thresholds bound an acceptable geometry.
type Thresholds struct {
	MinRatio  float64
	MaxZenith float64
}

// Verdict is the outcome of one event.
type Verdict struct {
	Reason Rejection
	Ratio  float64
	Detail string
}

// Accepted reports whether the event passed.
func (v Verdict) Accepted() bool { return v.Reason == Accepted }

// Ratio computes the fraction of both tracks seen while both stations were
// active. d holds active A, active B, total A, total B. ok is false when a
// total duration is not positive.
func Ratio(d [4]float64) (ratio float64, ok bool) {
	if !(d[2] > 0) || !(d[3] > 0) {
		return 0, false
	}
	return d[0] * d[1] / (d[2] * d[3]), true
}

// CheckDurations applies the ratio bound.
func (t Thresholds) CheckDurations(d [4]float64) Verdict {
	ratio, ok := Ratio(d)
	if !ok {
		return Verdict{Reason: BadRatio, Detail: ZeroDetail}
	}
	if math.IsNaN(ratio) || ratio <= t.MinRatio {
		return Verdict{Reason: BadRatio, Ratio: ratio, Detail: fmt.Sprintf("ratio %.6f", ratio)}
	}
	return Verdict{Ratio: ratio}
}

// CheckZenith applies the zenith bound to a verdict that passed the ratio
// check.
func (t Thresholds) CheckZenith(v Verdict, zenith float64) Verdict {
	if !v.Accepted() {
		return v
	}
	if math.IsNaN(zenith) || zenith > t.MaxZenith {
		return Verdict{Reason: BadZenith, Ratio: v.Ratio, Detail: fmt.Sprintf("zenith %.3f", zenith)}
	}
	return v
}
