package correlate

import (
	"fmt"

	"stereomatch/internal/stereo"
)

// IsolateTriples promotes events seen by all three stations. ab and ac must be
// pair lists sharing exactly one station A. For each record in ab the A event
// is looked up in ac, scanning forward from a cursor that never moves back; on
// an exact match the two records merge into one triple and both are dropped
// from their pair lists.
//
// Every triple is removed exactly once from each input, so
// len(triples)+len(ab') == len(ab) and likewise for ac. An A station detection
// whose two pairings were made against different A events is not recognised;
// such a physical event stays in both pair lists.
func IsolateTriples(ab, ac []stereo.MatchRecord) (triples, abOut, acOut []stereo.MatchRecord, err error) {
	if len(ab) == 0 || len(ac) == 0 {
		return nil, ab, ac, nil
	}
	shared, ok := stereo.Shared(ab[0].Combination, ac[0].Combination)
	if !ok || ab[0].Combination.IsTriple() || ac[0].Combination.IsTriple() {
		return nil, nil, nil, fmt.Errorf("combinations %s and %s do not share one station", ab[0].Combination, ac[0].Combination)
	}

	promotedAB := make([]bool, len(ab))
	promotedAC := make([]bool, len(ac))
	cursor := 0
	for i, rec := range ab {
		key, ok := rec.Event(shared)
		if !ok {
			return nil, nil, nil, fmt.Errorf("%s record %d lacks %s event", rec.Combination, rec.Index, shared)
		}
		for j := cursor; j < len(ac); j++ {
			other, _ := ac[j].Event(shared)
			if other != key {
				continue
			}
			triple, err := mergeTriple(rec, ac[j])
			if err != nil {
				return nil, nil, nil, err
			}
			triple.Index = len(triples)
			triples = append(triples, triple)
			promotedAB[i] = true
			promotedAC[j] = true
			cursor = j + 1
			break
		}
	}
	return triples, without(ab, promotedAB), without(ac, promotedAC), nil
}

// RemovePromoted drops from the third pair list (B-C) the records whose two
// events both appear in a triple. A triple whose B-C sub-tuple is absent from
// the list leaves it untouched and is counted in missed.
func RemovePromoted(bc []stereo.MatchRecord, triples []stereo.MatchRecord) (out []stereo.MatchRecord, missed int) {
	if len(triples) == 0 {
		return bc, 0
	}
	if len(bc) == 0 {
		return bc, len(triples)
	}
	stations := bc[0].Combination.Members()
	removed := make([]bool, len(bc))
	for _, triple := range triples {
		found := false
		for i, rec := range bc {
			if removed[i] {
				continue
			}
			if sameEvents(rec, triple, stations) {
				removed[i] = true
				found = true
				break
			}
		}
		if !found {
			missed++
		}
	}
	return without(bc, removed), missed
}

func mergeTriple(ab, ac stereo.MatchRecord) (stereo.MatchRecord, error) {
	rec := stereo.MatchRecord{Combination: stereo.Triple}
	for _, s := range stereo.Triple.Members() {
		if e, ok := ab.Event(s); ok {
			rec.Events = append(rec.Events, e)
			continue
		}
		if e, ok := ac.Event(s); ok {
			rec.Events = append(rec.Events, e)
			continue
		}
		return stereo.MatchRecord{}, fmt.Errorf("no %s event in %s/%s records", s, ab.Combination, ac.Combination)
	}
	return rec, nil
}

func sameEvents(pair, triple stereo.MatchRecord, stations []stereo.Station) bool {
	for _, s := range stations {
		a, okA := pair.Event(s)
		b, okB := triple.Event(s)
		if !okA || !okB || a != b {
			return false
		}
	}
	return true
}

func without(records []stereo.MatchRecord, drop []bool) []stereo.MatchRecord {
	out := make([]stereo.MatchRecord, 0, len(records))
	for i, rec := range records {
		if drop[i] {
			continue
		}
		out = append(out, rec)
	}
	return stereo.Reindex(out)
}
