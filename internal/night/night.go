package night

import (
	"fmt"
	"strings"
	"time"
)

// SourceNature marks real observation data; every other source tag is a
// simulation whose per-station files live inside the night directory.
const SourceNature = "nature"

// Night identifies one unit of work.
type Night struct {
	Calibration string
	Model       string
	Source      string
	Date        string // YYYYMMDD
}

// Validate checks that every tag is usable as a path component and that the
// date is a real calendar day.
func (n Night) Validate() error {
	for name, value := range map[string]string{
		"calibration": n.Calibration,
		"model":       n.Model,
		"source":      n.Source,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("night %s tag is required", name)
		}
		if strings.ContainsAny(value, `/\`) || value == "." || value == ".." {
			return fmt.Errorf("night %s tag %q is not a plain name", name, value)
		}
	}
	if _, err := ParseDate(n.Date); err != nil {
		return err
	}
	return nil
}

// ParseDate parses a YYYYMMDD date.
func ParseDate(value string) (time.Time, error) {
	if len(value) != 8 {
		return time.Time{}, fmt.Errorf("date %q must be YYYYMMDD", value)
	}
	t, err := time.Parse("20060102", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYYMMDD: %w", value, err)
	}
	return t, nil
}

// IsNature reports whether the night processes observation data.
func (n Night) IsNature() bool {
	return n.Source == SourceNature
}

// Key is the stable identifier used in the ledger and in logs.
func (n Night) Key() string {
	return strings.Join([]string{n.Calibration, n.Model, n.Source, n.Date}, "/")
}

func (n Night) String() string { return n.Key() }

// ParseKey reverses Key.
func ParseKey(key string) (Night, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 4 {
		return Night{}, fmt.Errorf("night key %q must be calibration/model/source/date", key)
	}
	n := Night{Calibration: parts[0], Model: parts[1], Source: parts[2], Date: parts[3]}
	if err := n.Validate(); err != nil {
		return Night{}, err
	}
	return n, nil
}

// WithDate returns a copy of n for another date.
func (n Night) WithDate(date string) Night {
	n.Date = date
	return n
}
