package stereo

import (
	"fmt"
	"strconv"
)

// Decimal is a number carried verbatim from collaborator output, so a
// downlist written back out keeps the dump's own spelling ("12.50").
type Decimal string

// ParseDecimal accepts raw when it is a valid decimal number.
func ParseDecimal(raw string) (Decimal, error) {
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return "", err
	}
	return Decimal(raw), nil
}

// DetectionEvent is one candidate detection from a single station's downlist.
type DetectionEvent struct {
	Station     Station
	Timestamp   float64 // seconds of day
	TrackLength Decimal
	Part        int
	Index       int // position within the part's source file
	Code        int
}

// MatchRecord is one coincidence: one event per member station, ordered like
// the combination's members. Index is the record's position within its list
// and names the extracted per-event files.
type MatchRecord struct {
	Combination Combination
	Index       int
	Events      []DetectionEvent
}

// Event returns the member event contributed by s.
func (m MatchRecord) Event(s Station) (DetectionEvent, bool) {
	for _, e := range m.Events {
		if e.Station == s {
			return e, true
		}
	}
	return DetectionEvent{}, false
}

// Timestamps returns the member timestamps in member order.
func (m MatchRecord) Timestamps() []float64 {
	out := make([]float64, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.Timestamp
	}
	return out
}

// Label names the record's per-station artifacts, e.g. "br-00012".
func Label(s Station, index int) string {
	return fmt.Sprintf("%s-%05d", s, index)
}

// Reindex numbers records by their position in the slice.
func Reindex(records []MatchRecord) []MatchRecord {
	for i := range records {
		records[i].Index = i
	}
	return records
}

// Validate checks that the record's events line up with its combination.
func (m MatchRecord) Validate() error {
	want := members[m.Combination]
	if len(want) == 0 {
		return fmt.Errorf("unknown combination %q", m.Combination)
	}
	if len(m.Events) != len(want) {
		return fmt.Errorf("%s record has %d events, want %d", m.Combination, len(m.Events), len(want))
	}
	for i, s := range want {
		if m.Events[i].Station != s {
			return fmt.Errorf("%s record event %d is from %s, want %s", m.Combination, i, m.Events[i].Station, s)
		}
	}
	return nil
}
