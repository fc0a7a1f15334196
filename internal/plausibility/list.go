package plausibility

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"stereomatch/internal/stereo"
)

// Validated is one accepted event.
type Validated struct {
	Index  int
	Pair   stereo.Combination
	Ratio  float64
	Zenith float64
}

// Rejected is one dropped event.
type Rejected struct {
	Index  int
	Pair   stereo.Combination
	Reason Rejection
	Detail string
}

// EncodeValidated renders validated.txt.
func EncodeValidated(list []Validated) []byte {
	var buf bytes.Buffer
	for _, v := range list {
		fmt.Fprintf(&buf, "%05d %s %.6f %.3f\n", v.Index, v.Pair, v.Ratio, v.Zenith)
	}
	return buf.Bytes()
}

// EncodeRejected renders rejectgeom.txt as "index pair reason: detail".
func EncodeRejected(list []Rejected) []byte {
	var buf bytes.Buffer
	for _, r := range list {
		fmt.Fprintf(&buf, "%05d %s %s: %s\n", r.Index, r.Pair, r.Reason, r.Detail)
	}
	return buf.Bytes()
}

// LoadValidated reads validated.txt.
func LoadValidated(path string) ([]Validated, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []Validated
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 4 {
			return nil, fmt.Errorf("%s line %d: want 4 fields, got %d", path, lineNo, len(fields))
		}
		var v Validated
		if v.Index, err = strconv.Atoi(fields[0]); err != nil {
			return nil, fmt.Errorf("%s line %d: index: %w", path, lineNo, err)
		}
		if v.Pair, err = stereo.ParseCombination(fields[1]); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}
		if v.Ratio, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return nil, fmt.Errorf("%s line %d: ratio: %w", path, lineNo, err)
		}
		if v.Zenith, err = strconv.ParseFloat(fields[3], 64); err != nil {
			return nil, fmt.Errorf("%s line %d: zenith: %w", path, lineNo, err)
		}
		out = append(out, v)
	}
	return out, scanner.Err()
}
