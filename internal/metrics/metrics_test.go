package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestObserveStepCounts(t *testing.T) {
	before := counterValue(t, stepsTotal.WithLabelValues("find-matches", OutcomeContinue))
	ObserveStep("find-matches", OutcomeContinue, 2*time.Second)
	ObserveStep("find-matches", OutcomeContinue, -time.Second)
	after := counterValue(t, stepsTotal.WithLabelValues("find-matches", OutcomeContinue))
	assert.Equal(t, before+2, after)
}

func TestAddersIgnoreNonPositive(t *testing.T) {
	before := counterValue(t, rejectionsTotal.WithLabelValues("bad zenith"))
	AddRejections("bad zenith", 0)
	AddRejections("bad zenith", 3)
	assert.Equal(t, before+3, counterValue(t, rejectionsTotal.WithLabelValues("bad zenith")))

	submitted := counterValue(t, jobsSubmittedTotal)
	AddSubmitted(-1)
	AddSubmitted(2)
	assert.Equal(t, submitted+2, counterValue(t, jobsSubmittedTotal))
}

func TestWriteTextfile(t *testing.T) {
	AddMatches("bl", 4)
	ObserveNight("complete")
	path := filepath.Join(t.TempDir(), "textfile", "stereomatch.prom")
	require.NoError(t, WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, `stereomatch_matches_total{combination="bl"}`), text)
	assert.True(t, strings.Contains(text, `stereomatch_nights_total{outcome="complete"}`), text)

	require.NoError(t, WriteTextfile(""))
}
