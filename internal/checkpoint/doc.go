// Package checkpoint persists stage completion.
//
// A stage is done when its zero-byte sentinel exists under the combination's
// .checkpoints directory; the sentinel is the source of truth and survives
// copying a night tree elsewhere. Every sentinel write is mirrored into a
// small sqlite ledger keyed by (night, scope, stage) with the completion time
// and run id, which backs auditing, the status command, memoized benign
// outcomes, and the per-run history.
package checkpoint
