package stereo

import (
	"fmt"
	"slices"
	"strings"
)

// Combination is one of the fixed station pairings or the triple. Its value is
// the tag built from the member initials, which also names its directory.
type Combination string

const (
	PairBL Combination = "bl"
	PairBM Combination = "bm"
	PairLM Combination = "lm"
	Triple Combination = "blm"
)

// Combinations lists every combination in processing order: pairs first.
var Combinations = []Combination{PairBL, PairBM, PairLM, Triple}

// Pairs lists the two-station combinations.
var Pairs = []Combination{PairBL, PairBM, PairLM}

var members = map[Combination][]Station{
	PairBL: {BlackRock, LongRidge},
	PairBM: {BlackRock, MiddleDrum},
	PairLM: {LongRidge, MiddleDrum},
	Triple: {BlackRock, LongRidge, MiddleDrum},
}

// ParseCombination accepts a combination tag in any case.
func ParseCombination(value string) (Combination, error) {
	c := Combination(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := members[c]; !ok {
		return "", fmt.Errorf("unknown combination %q", value)
	}
	return c, nil
}

// CombinationOf returns the combination made of exactly the given stations.
func CombinationOf(stations ...Station) (Combination, bool) {
	for _, c := range Combinations {
		m := members[c]
		if len(m) != len(stations) {
			continue
		}
		match := true
		for _, s := range stations {
			if !slices.Contains(m, s) {
				match = false
				break
			}
		}
		if match {
			return c, true
		}
	}
	return "", false
}

// Members returns the member stations in canonical order.
func (c Combination) Members() []Station {
	return slices.Clone(members[c])
}

// Contains reports whether s is a member station.
func (c Combination) Contains(s Station) bool {
	return slices.Contains(members[c], s)
}

// IsTriple reports whether the combination involves all three stations.
func (c Combination) IsTriple() bool {
	return len(members[c]) == 3
}

// Ordinal returns the combination's position in Combinations.
func (c Combination) Ordinal() int {
	return slices.Index(Combinations, c)
}

// Shared returns the station common to both pairs, if any.
func Shared(a, b Combination) (Station, bool) {
	if a == b {
		return "", false
	}
	for _, s := range members[a] {
		if b.Contains(s) {
			return s, true
		}
	}
	return "", false
}

// Available returns the combinations whose members are all present, in
// processing order.
func Available(present []Station) []Combination {
	var out []Combination
	for _, c := range Combinations {
		ok := true
		for _, s := range members[c] {
			if !slices.Contains(present, s) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, c)
		}
	}
	return out
}

func (c Combination) String() string { return string(c) }
