package correlate

import (
	"fmt"
	"strconv"
	"strings"

	"stereomatch/internal/stereo"
)

// ContaminationRule describes the calibration laser cadence: shots fire every
// Period seconds and land between Before seconds ahead of and After seconds
// past each boundary.
type ContaminationRule struct {
	Period int
	Before int
	After  int
}

// IsContaminant reports whether a seconds-of-day timestamp matches the laser
// pattern. The whole-second part must fall inside the window around a period
// boundary and the hundredths and thousandths digits of the fraction must be
// zero, because the laser fires on a 100 ms grid.
func (r ContaminationRule) IsContaminant(ts float64) bool {
	if r.Period <= 0 || ts < 0 {
		return false
	}
	text := fmt.Sprintf("%.9f", ts)
	whole, frac, ok := strings.Cut(text, ".")
	if !ok || len(frac) < 3 {
		return false
	}
	if frac[1:3] != "00" {
		return false
	}
	seconds, err := strconv.Atoi(whole)
	if err != nil {
		return false
	}
	phase := seconds % r.Period
	return phase < r.After || phase >= r.Period-r.Before
}

// FilterContaminated splits records into kept and rejected lists. A record is
// rejected when any member timestamp matches the rule. Both lists are
// renumbered by position.
func FilterContaminated(records []stereo.MatchRecord, rule ContaminationRule) (kept, rejected []stereo.MatchRecord) {
	kept = make([]stereo.MatchRecord, 0, len(records))
	for _, rec := range records {
		if rule.matchesAny(rec) {
			rejected = append(rejected, rec)
			continue
		}
		kept = append(kept, rec)
	}
	return stereo.Reindex(kept), stereo.Reindex(rejected)
}

func (r ContaminationRule) matchesAny(rec stereo.MatchRecord) bool {
	for _, e := range rec.Events {
		if r.IsContaminant(e.Timestamp) {
			return true
		}
	}
	return false
}
