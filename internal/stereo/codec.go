package stereo

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// FieldsPerEvent is the number of whitespace separated fields one event
// occupies in downlists and match lists.
const FieldsPerEvent = 5

// FormatEvent renders e as "timestamp length part index code".
func FormatEvent(e DetectionEvent) string {
	return fmt.Sprintf("%.9f %s %d %d %d", e.Timestamp, e.TrackLength, e.Part, e.Index, e.Code)
}

// ParseEvent decodes the five fields of one event.
func ParseEvent(s Station, fields []string) (DetectionEvent, error) {
	if len(fields) != FieldsPerEvent {
		return DetectionEvent{}, fmt.Errorf("event has %d fields, want %d", len(fields), FieldsPerEvent)
	}
	ts, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return DetectionEvent{}, fmt.Errorf("timestamp %q: %w", fields[0], err)
	}
	length, err := ParseDecimal(fields[1])
	if err != nil {
		return DetectionEvent{}, fmt.Errorf("track length %q: %w", fields[1], err)
	}
	ints := make([]int, 3)
	for i, raw := range fields[2:] {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return DetectionEvent{}, fmt.Errorf("field %d %q: %w", i+3, raw, err)
		}
		ints[i] = v
	}
	if ints[0] < 0 || ints[1] < 0 {
		return DetectionEvent{}, fmt.Errorf("negative part or index in %q", strings.Join(fields, " "))
	}
	return DetectionEvent{
		Station:     s,
		Timestamp:   ts,
		TrackLength: length,
		Part:        ints[0],
		Index:       ints[1],
		Code:        ints[2],
	}, nil
}

// FormatMatch renders a record as the concatenation of its events.
func FormatMatch(m MatchRecord) string {
	parts := make([]string, len(m.Events))
	for i, e := range m.Events {
		parts[i] = FormatEvent(e)
	}
	return strings.Join(parts, " ")
}

// ParseMatch decodes one match line for combination c.
func ParseMatch(c Combination, index int, line string) (MatchRecord, error) {
	stations := members[c]
	fields := strings.Fields(line)
	if len(fields) != len(stations)*FieldsPerEvent {
		return MatchRecord{}, fmt.Errorf("%s match has %d fields, want %d", c, len(fields), len(stations)*FieldsPerEvent)
	}
	rec := MatchRecord{Combination: c, Index: index, Events: make([]DetectionEvent, len(stations))}
	for i, s := range stations {
		e, err := ParseEvent(s, fields[i*FieldsPerEvent:(i+1)*FieldsPerEvent])
		if err != nil {
			return MatchRecord{}, fmt.Errorf("%s event: %w", s, err)
		}
		rec.Events[i] = e
	}
	return rec, nil
}

// EncodeDownlist renders events one per line.
func EncodeDownlist(events []DetectionEvent) []byte {
	var buf bytes.Buffer
	for _, e := range events {
		buf.WriteString(FormatEvent(e))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// DecodeDownlist parses a station downlist. Blank lines are skipped.
func DecodeDownlist(r io.Reader, s Station) ([]DetectionEvent, error) {
	var events []DetectionEvent
	err := scanLines(r, func(lineNo int, line string) error {
		e, err := ParseEvent(s, strings.Fields(line))
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		events = append(events, e)
		return nil
	})
	return events, err
}

// EncodeMatches renders records one per line.
func EncodeMatches(records []MatchRecord) []byte {
	var buf bytes.Buffer
	for _, m := range records {
		buf.WriteString(FormatMatch(m))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// DecodeMatches parses a match list, numbering records by line order.
func DecodeMatches(r io.Reader, c Combination) ([]MatchRecord, error) {
	var records []MatchRecord
	err := scanLines(r, func(lineNo int, line string) error {
		m, err := ParseMatch(c, len(records), line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		records = append(records, m)
		return nil
	})
	return records, err
}

// LoadDownlist reads a downlist file.
func LoadDownlist(path string, s Station) ([]DetectionEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	events, err := DecodeDownlist(f, s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

// LoadMatches reads a match list file.
func LoadMatches(path string, c Combination) ([]MatchRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := DecodeMatches(f, c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func scanLines(r io.Reader, fn func(lineNo int, line string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
