package stereo

import (
	"fmt"
	"slices"
	"strings"
)

// Station identifies one detector site by its two-letter tag.
type Station string

const (
	BlackRock  Station = "br"
	LongRidge  Station = "lr"
	MiddleDrum Station = "md"
)

// Stations lists every station in canonical order.
var Stations = []Station{BlackRock, LongRidge, MiddleDrum}

// Kind distinguishes the two detector families, which use different
// profile reconstruction programs.
type Kind int

const (
	KindTube Kind = iota
	KindPlane
)

// ParseStation accepts a station tag in any case.
func ParseStation(value string) (Station, error) {
	s := Station(strings.ToLower(strings.TrimSpace(value)))
	if !slices.Contains(Stations, s) {
		return "", fmt.Errorf("unknown station %q", value)
	}
	return s, nil
}

// Index returns the canonical position of the station.
func (s Station) Index() int {
	return slices.Index(Stations, s)
}

// Name returns the directory name used for the station's data.
func (s Station) Name() string {
	switch s {
	case BlackRock:
		return "black-rock"
	case LongRidge:
		return "long-ridge"
	case MiddleDrum:
		return "middle-drum"
	default:
		return string(s)
	}
}

// Initial is the letter the station contributes to combination tags.
func (s Station) Initial() string {
	if s == "" {
		return ""
	}
	return string(s[0])
}

// Kind reports the detector family.
func (s Station) Kind() Kind {
	if s == MiddleDrum {
		return KindPlane
	}
	return KindTube
}

func (s Station) String() string { return string(s) }
