package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stereomatch/internal/night"
)

func TestStepsCommandListsPipelineOrder(t *testing.T) {
	out, _, err := runCLI(t, []string{"steps"}, "")
	require.NoError(t, err)
	requireContains(t, out, "build-downlists")
	requireContains(t, out, "consolidate")
	assert.Less(t, strings.Index(out, "find-matches"), strings.Index(out, "remove-clf"))
}

func TestConfigInitAndValidate(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	require.NoError(t, err)
	requireContains(t, out, "Wrote sample configuration to "+target)

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	require.Error(t, err)
	requireContains(t, err.Error(), "already exists")

	_, cfgPath := setupCLIConfig(t)
	out, _, err = runCLI(t, []string{"config", "validate"}, cfgPath)
	require.NoError(t, err)
	requireContains(t, out, "Config path: "+cfgPath)
	requireContains(t, out, "Configuration valid")
}

func TestRunWithoutStationsIsNothingToDo(t *testing.T) {
	_, cfgPath := setupCLIConfig(t)

	out, _, err := runCLI(t, []string{"run", "--date", "20240105", "--json"}, cfgPath)
	require.NoError(t, err)
	var reports []nightReportJSON
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "halted", reports[0].Outcome)
	assert.Equal(t, "nothing to do", reports[0].Reason)
	assert.False(t, reports[0].Memoized)

	out, _, err = runCLI(t, []string{"run", "--date", "20240105", "--json"}, cfgPath)
	require.NoError(t, err)
	reports = nil
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Memoized)

	out, _, err = runCLI(t, []string{"status", "--date", "20240105"}, cfgPath)
	require.NoError(t, err)
	requireContains(t, out, "nothing to do")

	out, _, err = runCLI(t, []string{"status"}, cfgPath)
	require.NoError(t, err)
	requireContains(t, out, "20240105")
}

func TestRunRejectsUnknownStep(t *testing.T) {
	_, cfgPath := setupCLIConfig(t)
	_, _, err := runCLI(t, []string{"run", "--date", "20240105", "--start", "bogus"}, cfgPath)
	require.Error(t, err)
}

func TestNightFlagsResolveDates(t *testing.T) {
	cfg, _ := setupCLIConfig(t)
	base := night.Night{Calibration: cfg.Night.Calibration, Model: cfg.Night.Model, Source: cfg.Night.Source}
	root := night.NewLayout(cfg, base).SourceRoot()
	for _, d := range []string{"20240102", "20240101", "notadate"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}

	var flags nightFlags
	found, err := flags.resolve(cfg)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "20240101", found[0].Date)
	assert.Equal(t, "20240102", found[1].Date)

	datesFile := filepath.Join(t.TempDir(), "dates.txt")
	require.NoError(t, os.WriteFile(datesFile, []byte("# nights\n20240310\n\n20240309 rerun\n20240310\n"), 0o644))
	flags = nightFlags{datesFile: datesFile, dates: []string{"20240311"}}
	found, err = flags.resolve(cfg)
	require.NoError(t, err)
	dates := make([]string, 0, len(found))
	for _, n := range found {
		dates = append(dates, n.Date)
	}
	assert.Equal(t, []string{"20240309", "20240310", "20240311"}, dates)

	flags = nightFlags{dates: []string{"2024-03-10"}}
	_, err = flags.resolve(cfg)
	assert.Error(t, err)
}

func TestCheckReportsLedgerSchema(t *testing.T) {
	_, cfgPath := setupCLIConfig(t)

	out, _, _ := runCLI(t, []string{"check"}, cfgPath)
	requireContains(t, out, "Ledger")
	requireContains(t, out, "version 1 (")
	assert.NotContains(t, out, "dirty migration")
}

func TestWriteJSONKeepsAngleBrackets(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]string{"reason": "<step> panicked: boom"}))
	requireContains(t, buf.String(), `"reason": "<step> panicked: boom"`)
}
