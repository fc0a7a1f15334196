package workflow

import (
	"context"

	"stereomatch/internal/stage"
)

// HealthChecks asks every registered step whether it can run.
func (c *Coordinator) HealthChecks(ctx context.Context) []stage.Health {
	out := make([]stage.Health, 0, len(c.handlers))
	for _, h := range c.handlers {
		out = append(out, h.HealthCheck(ctx))
	}
	return out
}
