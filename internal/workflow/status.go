package workflow

import (
	"context"
	"fmt"

	"stereomatch/internal/checkpoint"
	"stereomatch/internal/night"
)

// NightStatus is what the ledger knows about one night.
type NightStatus struct {
	Night       night.Night
	Memo        string
	Completions []checkpoint.Completion
	Runs        []checkpoint.Run
}

// Status reads a night's memoized outcome, completed checkpoints and its
// most recent runs from the ledger without touching the night tree.
func Status(ctx context.Context, ledger *checkpoint.Ledger, n night.Night, runs int) (NightStatus, error) {
	status := NightStatus{Night: n}
	memo, _, err := ledger.Outcome(ctx, n.Key())
	if err != nil {
		return status, fmt.Errorf("read outcome: %w", err)
	}
	status.Memo = memo
	if status.Completions, err = ledger.Completions(ctx, n.Key()); err != nil {
		return status, fmt.Errorf("read completions: %w", err)
	}
	if status.Runs, err = ledger.Runs(ctx, n.Key(), runs); err != nil {
		return status, fmt.Errorf("read runs: %w", err)
	}
	return status, nil
}
