package checkpoint

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"stereomatch/internal/fileutil"
)

// SentinelPath is the marker file of stage inside a checkpoint directory.
func SentinelPath(dir, stage string) string {
	return filepath.Join(dir, stage+".done")
}

// Markers writes sentinels and mirrors them into the ledger.
type Markers struct {
	ledger *Ledger
	runID  string
	now    func() time.Time
}

// NewMarkers returns a marker writer. A nil ledger keeps sentinels only.
func NewMarkers(ledger *Ledger, runID string) *Markers {
	return &Markers{ledger: ledger, runID: runID, now: time.Now}
}

// Done reports whether the stage sentinel exists.
func (m *Markers) Done(dir, stage string) bool {
	return fileutil.Exists(SentinelPath(dir, stage))
}

// Mark writes the sentinel, then records the completion.
func (m *Markers) Mark(ctx context.Context, key Key, dir string) error {
	if err := fileutil.Touch(SentinelPath(dir, key.Stage)); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", key, err)
	}
	if m.ledger == nil {
		return nil
	}
	if err := m.ledger.RecordCompletion(ctx, Completion{Key: key, CompletedAt: m.now(), RunID: m.runID}); err != nil {
		return fmt.Errorf("record checkpoint %s: %w", key, err)
	}
	return nil
}

// Clear removes the sentinel and the ledger row.
func (m *Markers) Clear(ctx context.Context, key Key, dir string) error {
	if err := fileutil.RemoveIfExists(SentinelPath(dir, key.Stage)); err != nil {
		return fmt.Errorf("remove checkpoint %s: %w", key, err)
	}
	if m.ledger == nil {
		return nil
	}
	return m.ledger.ForgetCompletion(ctx, key)
}
