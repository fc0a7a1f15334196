package correlate

import (
	"math"

	"stereomatch/internal/stereo"
)

// Correlate matches two downlists sorted by ascending timestamp. Each event in
// a is paired with the first event in b, at or after the cursor, whose
// timestamp differs by less than window. A matched b event is never reused:
// the cursor moves just past it. The scan for one a event stops as soon as a b
// event lies more than 2*window in the future.
//
// When several b events fall inside the window of the same a event only the
// earliest is matched. Under high detection rates this undercounts; it is the
// accepted matching policy.
func Correlate(c stereo.Combination, a, b []stereo.DetectionEvent, window float64) []stereo.MatchRecord {
	var out []stereo.MatchRecord
	cursor := 0
	for _, ea := range a {
		for j := cursor; j < len(b); j++ {
			eb := b[j]
			if math.Abs(eb.Timestamp-ea.Timestamp) < window {
				out = append(out, stereo.MatchRecord{
					Combination: c,
					Index:       len(out),
					Events:      []stereo.DetectionEvent{ea, eb},
				})
				cursor = j + 1
				break
			}
			if eb.Timestamp-ea.Timestamp > 2*window {
				break
			}
		}
	}
	return out
}
