package services

import "context"

type contextKey string

const (
	nightKey       contextKey = "night"
	combinationKey contextKey = "combination"
	stepKey        contextKey = "step"
	runIDKey       contextKey = "run_id"
)

// WithNight annotates context with the night identifier.
func WithNight(ctx context.Context, night string) context.Context {
	if night == "" {
		return ctx
	}
	return context.WithValue(ctx, nightKey, night)
}

// NightFromContext extracts the night identifier if present.
func NightFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(nightKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCombination annotates context with the station combination tag.
func WithCombination(ctx context.Context, tag string) context.Context {
	if tag == "" {
		return ctx
	}
	return context.WithValue(ctx, combinationKey, tag)
}

// CombinationFromContext returns the combination tag if present.
func CombinationFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(combinationKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStep annotates context with the pipeline step name.
func WithStep(ctx context.Context, step string) context.Context {
	if step == "" {
		return ctx
	}
	return context.WithValue(ctx, stepKey, step)
}

// StepFromContext returns the step name if present.
func StepFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stepKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRunID annotates context with the coordinator invocation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the invocation identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
