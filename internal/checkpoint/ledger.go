package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ScopeNight is the scope used for night-wide stages and outcomes.
const ScopeNight = "night"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// Fixed width so timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Key names one checkpoint: a stage of one scope (combination tag or
// ScopeNight) of one night.
type Key struct {
	Night string
	Scope string
	Stage string
}

func (k Key) String() string {
	return k.Night + ":" + k.Scope + ":" + k.Stage
}

// Completion is one ledger row.
type Completion struct {
	Key
	CompletedAt time.Time
	RunID       string
}

// Run records how one coordinator invocation ended for one night.
type Run struct {
	RunID      string
	Night      string
	Outcome    string
	Reason     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Ledger is the sqlite audit store.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open creates or opens the ledger at path and applies pending migrations.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps the pragmas in force for every statement.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if err := migrateUp(db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Ledger{db: db, path: path}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Path returns the database file.
func (l *Ledger) Path() string { return l.path }

// SchemaVersion reports the applied migration version and dirty flag.
func (l *Ledger) SchemaVersion() (uint, bool, error) {
	return schemaVersion(l.db, nil)
}

// RecordCompletion upserts a completion row.
func (l *Ledger) RecordCompletion(ctx context.Context, c Completion) error {
	return l.exec(ctx, `INSERT INTO checkpoints (night, scope, stage, completed_at, run_id)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (night, scope, stage) DO UPDATE SET completed_at = excluded.completed_at, run_id = excluded.run_id`,
		c.Night, c.Scope, c.Stage, formatTime(c.CompletedAt), c.RunID)
}

// ForgetCompletion deletes a completion row.
func (l *Ledger) ForgetCompletion(ctx context.Context, key Key) error {
	return l.exec(ctx, `DELETE FROM checkpoints WHERE night = ? AND scope = ? AND stage = ?`,
		key.Night, key.Scope, key.Stage)
}

// Completions lists a night's rows ordered by completion time.
func (l *Ledger) Completions(ctx context.Context, night string) ([]Completion, error) {
	rows, err := l.db.QueryContext(ensureContext(ctx), `SELECT night, scope, stage, completed_at, run_id
FROM checkpoints WHERE night = ? ORDER BY completed_at, scope, stage`, night)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()
	var out []Completion
	for rows.Next() {
		var (
			c  Completion
			at string
		)
		if err := rows.Scan(&c.Night, &c.Scope, &c.Stage, &at, &c.RunID); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		c.CompletedAt = parseTime(at)
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetOutcome memoizes a benign terminal reason for a night.
func (l *Ledger) SetOutcome(ctx context.Context, night, reason string, at time.Time) error {
	return l.exec(ctx, `INSERT INTO outcomes (night, reason, recorded_at) VALUES (?, ?, ?)
ON CONFLICT (night) DO UPDATE SET reason = excluded.reason, recorded_at = excluded.recorded_at`,
		night, reason, formatTime(at))
}

// Outcome returns the memoized reason for a night, if any.
func (l *Ledger) Outcome(ctx context.Context, night string) (string, bool, error) {
	var reason string
	err := l.db.QueryRowContext(ensureContext(ctx), `SELECT reason FROM outcomes WHERE night = ?`, night).Scan(&reason)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query outcome: %w", err)
	}
	return reason, true, nil
}

// ClearOutcome drops a night's memoized reason.
func (l *Ledger) ClearOutcome(ctx context.Context, night string) error {
	return l.exec(ctx, `DELETE FROM outcomes WHERE night = ?`, night)
}

// RecordRun stores the result of one invocation for one night.
func (l *Ledger) RecordRun(ctx context.Context, r Run) error {
	return l.exec(ctx, `INSERT INTO runs (run_id, night, outcome, reason, error, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (run_id, night) DO UPDATE SET outcome = excluded.outcome, reason = excluded.reason,
error = excluded.error, finished_at = excluded.finished_at`,
		r.RunID, r.Night, r.Outcome, r.Reason, r.Error, formatTime(r.StartedAt), formatTime(r.FinishedAt))
}

// Runs returns a night's most recent runs, newest first. A limit of zero
// returns all of them.
func (l *Ledger) Runs(ctx context.Context, night string, limit int) ([]Run, error) {
	query := `SELECT run_id, night, outcome, reason, error, started_at, finished_at
FROM runs WHERE night = ? ORDER BY finished_at DESC`
	args := []any{night}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return l.queryRuns(ctx, query, args...)
}

// LatestRuns returns the newest run of every night whose key starts with
// prefix, ordered by night.
func (l *Ledger) LatestRuns(ctx context.Context, prefix string) ([]Run, error) {
	return l.queryRuns(ctx, `SELECT r.run_id, r.night, r.outcome, r.reason, r.error, r.started_at, r.finished_at
FROM runs r
JOIN (SELECT night, MAX(finished_at) AS latest FROM runs GROUP BY night) m
  ON r.night = m.night AND r.finished_at = m.latest
WHERE r.night LIKE ? ESCAPE '\'
ORDER BY r.night`, escapeLike(prefix)+"%")
}

func (l *Ledger) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := l.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
		)
		if err := rows.Scan(&r.RunID, &r.Night, &r.Outcome, &r.Reason, &r.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (l *Ledger) exec(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := l.db.ExecContext(ctx, query, args...)
		return err
	})
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func escapeLike(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(value)
}
