package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"stereomatch/internal/config"
	"stereomatch/internal/night"
)

// nightFlags selects the nights of one invocation.
type nightFlags struct {
	dates       []string
	datesFile   string
	calibration string
	model       string
	source      string
}

func (f *nightFlags) register(cmd *cobra.Command, withDates bool) {
	cmd.Flags().StringVar(&f.calibration, "calibration", "", "Calibration tag (defaults to [night] calibration)")
	cmd.Flags().StringVar(&f.model, "model", "", "Model tag (defaults to [night] model)")
	cmd.Flags().StringVar(&f.source, "source", "", "Source tag (defaults to [night] source)")
	if withDates {
		cmd.Flags().StringArrayVar(&f.dates, "date", nil, "Night date YYYYMMDD (repeatable)")
		cmd.Flags().StringVar(&f.datesFile, "dates-file", "", "File listing one YYYYMMDD date per line")
	}
}

// identity returns the night tags with configuration defaults applied.
func (f *nightFlags) identity(cfg *config.Config) night.Night {
	pick := func(flag, fallback string) string {
		if v := strings.TrimSpace(flag); v != "" {
			return v
		}
		return fallback
	}
	return night.Night{
		Calibration: pick(f.calibration, cfg.Night.Calibration),
		Model:       pick(f.model, cfg.Night.Model),
		Source:      pick(f.source, cfg.Night.Source),
	}
}

// resolve expands the flags into validated nights, sorted by date. Without
// explicit dates every date found for the identity is used.
func (f *nightFlags) resolve(cfg *config.Config) ([]night.Night, error) {
	base := f.identity(cfg)
	dates := append([]string(nil), f.dates...)
	if strings.TrimSpace(f.datesFile) != "" {
		fromFile, err := readDatesFile(f.datesFile)
		if err != nil {
			return nil, err
		}
		dates = append(dates, fromFile...)
	}
	if len(dates) == 0 {
		found, err := night.ListDates(night.NewLayout(cfg, base))
		if err != nil {
			return nil, fmt.Errorf("list dates: %w", err)
		}
		dates = found
	}

	seen := make(map[string]struct{}, len(dates))
	out := make([]night.Night, 0, len(dates))
	for _, d := range dates {
		d = strings.TrimSpace(d)
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		n := base.WithDate(d)
		if err := n.Validate(); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// readDatesFile reads one date per line; blank lines and # comments are
// ignored.
func readDatesFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dates file: %w", err)
	}
	defer file.Close()
	var dates []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		dates = append(dates, strings.Fields(line)[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dates file: %w", err)
	}
	return dates, nil
}
