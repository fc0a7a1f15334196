package logging

import (
	"context"
	"log/slog"

	"stereomatch/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldNight is the standardized key for night identifiers (calibration/model/source/date).
	FieldNight = "night"
	// FieldCombination is the standardized key for station combination tags.
	FieldCombination = "combination"
	// FieldStep is the standardized key for pipeline step names.
	FieldStep = "step"
	// FieldRunID is the standardized key for coordinator invocation identifiers.
	FieldRunID = "run_id"
	// FieldEventType classifies a log line for downstream filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests an operator action for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if night, ok := services.NightFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldNight, night))
	}
	if tag, ok := services.CombinationFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCombination, tag))
	}
	if step, ok := services.StepFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStep, step))
	}
	if rid, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return slog.New(logger.Handler().WithAttrs(fields))
}
