// Package metrics holds the prometheus collectors for pipeline runs. A run is
// a short batch process, so the collectors are exported to a node-exporter
// textfile at the end of each invocation rather than scraped.
package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stereomatch"

// Step outcome labels.
const (
	OutcomeContinue  = "continue"
	OutcomeHalted    = "halted"
	OutcomeException = "exception"
	OutcomeSkipped   = "skipped"
)

var (
	stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Pipeline steps executed, partitioned by step and outcome.",
		},
		[]string{"step", "outcome"},
	)

	stepSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_seconds",
			Help:      "Step duration in seconds.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"step"},
	)

	nightsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nights_total",
			Help:      "Nights processed, partitioned by final outcome.",
		},
		[]string{"outcome"},
	)

	matchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Match records written, partitioned by combination.",
		},
		[]string{"combination"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Records rejected, partitioned by reason.",
		},
		[]string{"reason"},
	)

	jobsSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Profile reconstruction jobs submitted to the scheduler.",
		},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		stepsTotal,
		stepSeconds,
		nightsTotal,
		matchesTotal,
		rejectionsTotal,
		jobsSubmittedTotal,
	}
}

// Register attaches the collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	for _, collector := range collectors() {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveStep records one step execution.
func ObserveStep(step, outcome string, duration time.Duration) {
	stepsTotal.WithLabelValues(step, outcome).Inc()
	if outcome == OutcomeSkipped {
		return
	}
	if duration < 0 {
		duration = 0
	}
	stepSeconds.WithLabelValues(step).Observe(duration.Seconds())
}

// ObserveNight records a night's final outcome.
func ObserveNight(outcome string) {
	nightsTotal.WithLabelValues(outcome).Inc()
}

// AddMatches counts match records written for a combination.
func AddMatches(combination string, n int) {
	if n > 0 {
		matchesTotal.WithLabelValues(combination).Add(float64(n))
	}
}

// AddRejections counts rejected records for a reason.
func AddRejections(reason string, n int) {
	if n > 0 {
		rejectionsTotal.WithLabelValues(reason).Add(float64(n))
	}
}

// AddSubmitted counts submitted scheduler jobs.
func AddSubmitted(n int) {
	if n > 0 {
		jobsSubmittedTotal.Add(float64(n))
	}
}

// WriteTextfile registers the collectors on a fresh registry and writes them
// in the text exposition format to path.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		return fmt.Errorf("register collectors: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
