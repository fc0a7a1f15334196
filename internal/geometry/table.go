package geometry

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"stereomatch/internal/stereo"
)

// Solution is the geometry chosen for one event.
type Solution struct {
	Index int
	Pair  stereo.Combination
	// Angle between the two detector planes of Pair, in degrees.
	Angle float64
}

// EncodeTable renders solutions one per line.
func EncodeTable(solutions []Solution) []byte {
	var buf bytes.Buffer
	for _, s := range solutions {
		fmt.Fprintf(&buf, "%05d %s %.6f\n", s.Index, s.Pair, s.Angle)
	}
	return buf.Bytes()
}

// LoadTable reads geometry.txt.
func LoadTable(path string) ([]Solution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []Solution
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("%s line %d: want 3 fields, got %d", path, lineNo, len(fields))
		}
		idx, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: index: %w", path, lineNo, err)
		}
		pair, err := stereo.ParseCombination(fields[1])
		if err != nil || pair.IsTriple() {
			return nil, fmt.Errorf("%s line %d: bad pairing %q", path, lineNo, fields[1])
		}
		angle, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: angle: %w", path, lineNo, err)
		}
		out = append(out, Solution{Index: idx, Pair: pair, Angle: angle})
	}
	return out, scanner.Err()
}

// Flash is an event skipped because a tube station saw a flash trigger.
type Flash struct {
	Index    int
	Stations []stereo.Station
}

// EncodeFlashes renders flashes one per line with the flagged stations.
func EncodeFlashes(flashes []Flash) []byte {
	var buf bytes.Buffer
	for _, f := range flashes {
		tags := make([]string, len(f.Stations))
		for i, s := range f.Stations {
			tags[i] = string(s)
		}
		fmt.Fprintf(&buf, "%05d %s\n", f.Index, strings.Join(tags, ","))
	}
	return buf.Bytes()
}
