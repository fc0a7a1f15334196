package night

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"stereomatch/internal/stereo"
)

const sourceSuffix = ".down.dst.gz"

// Sources maps each participating station to its per-part files, sorted.
type Sources map[stereo.Station][]string

// Stations returns the participating stations in canonical order.
func (s Sources) Stations() []stereo.Station {
	var out []stereo.Station
	for _, st := range stereo.Stations {
		if len(s[st]) > 0 {
			out = append(out, st)
		}
	}
	return out
}

// Combinations returns the combinations the participating stations can form.
func (s Sources) Combinations() []stereo.Combination {
	return stereo.Available(s.Stations())
}

// Discover lists the source files of every station. A station participates
// when its directory holds at least one detection file.
func Discover(l Layout) (Sources, error) {
	out := Sources{}
	for _, st := range stereo.Stations {
		dir := l.StationDir(st)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read station directory %s: %w", dir, err)
		}
		var files []string
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), sourceSuffix) {
				continue
			}
			files = append(files, filepath.Join(dir, entry.Name()))
		}
		if len(files) == 0 {
			continue
		}
		sort.Strings(files)
		out[st] = files
	}
	return out, nil
}

// PartOf extracts the part number from a yYYYYmMMdDDpPP.down.dst.gz name.
func PartOf(path string) (int, error) {
	base := filepath.Base(path)
	idx := strings.LastIndexByte(strings.TrimSuffix(base, sourceSuffix), 'p')
	if idx < 0 || !strings.HasSuffix(base, sourceSuffix) {
		return 0, fmt.Errorf("%s is not a per-part detection file", base)
	}
	part, err := strconv.Atoi(strings.TrimSuffix(base, sourceSuffix)[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("%s has no part number: %w", base, err)
	}
	return part, nil
}

// ListDates returns every date directory that could form a night for the
// given identity: existing night directories and, for observation data,
// dates present in any station's mono directory.
func ListDates(l Layout) ([]string, error) {
	seen := map[string]struct{}{}
	collect := func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("read %s: %w", dir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			if _, err := ParseDate(entry.Name()); err == nil {
				seen[entry.Name()] = struct{}{}
			}
		}
		return nil
	}
	if err := collect(l.SourceRoot()); err != nil {
		return nil, err
	}
	if l.Night.IsNature() && l.monoRoot != "" {
		for _, st := range stereo.Stations {
			if err := collect(filepath.Join(l.monoRoot, st.Name())); err != nil {
				return nil, err
			}
		}
	}
	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates, nil
}
