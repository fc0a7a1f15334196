package correlate

import (
	"slices"

	"gonum.org/v1/gonum/stat"

	"stereomatch/internal/stereo"
)

// Summary describes the timing spread of a match list.
type Summary struct {
	Count      int
	MeanSpread float64 // seconds between earliest and latest member
	StdSpread  float64
	MaxSpread  float64
}

// Summarize computes the per-record timestamp spread statistics, used for
// logging how tight the coincidences are relative to the window.
func Summarize(records []stereo.MatchRecord) Summary {
	if len(records) == 0 {
		return Summary{}
	}
	spreads := make([]float64, len(records))
	for i, rec := range records {
		ts := rec.Timestamps()
		spreads[i] = slices.Max(ts) - slices.Min(ts)
	}
	mean, std := stat.MeanStdDev(spreads, nil)
	if len(spreads) == 1 {
		std = 0
	}
	return Summary{
		Count:      len(records),
		MeanSpread: mean,
		StdSpread:  std,
		MaxSpread:  slices.Max(spreads),
	}
}
