package testsupport

import (
	"testing"

	"stereomatch/internal/checkpoint"
	"stereomatch/internal/config"
)

// MustOpenLedger opens the configured checkpoint ledger and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *checkpoint.Ledger {
	t.Helper()

	ledger, err := checkpoint.Open(cfg.LedgerPath(), nil)
	if err != nil {
		t.Fatalf("checkpoint.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = ledger.Close()
	})
	return ledger
}
