// Package jobs tracks the batch scheduler's outstanding work as seen by the
// coordinator: a snapshot of the job table refreshed at a bounded interval,
// headroom against the submission ceiling, and lookup of the job producing a
// given output.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Job is one outstanding scheduler job.
type Job struct {
	ID     int64
	Status string
	// Name is the scheduler job name. Profile jobs are named after the
	// output file they write.
	Name string
}

// Snapshot is the job table at one instant.
type Snapshot struct {
	TakenAt time.Time
	Jobs    []Job
}

// Outstanding counts the jobs in the snapshot.
func (s Snapshot) Outstanding() int { return len(s.Jobs) }

// Producing returns the job named exactly path.
func (s Snapshot) Producing(path string) (Job, bool) {
	if path == "" {
		return Job{}, false
	}
	for _, job := range s.Jobs {
		if job.Name == path {
			return job, true
		}
	}
	return Job{}, false
}

// Headroom is how many more jobs fit below ceiling.
func (s Snapshot) Headroom(ceiling int) int {
	if room := ceiling - s.Outstanding(); room > 0 {
		return room
	}
	return 0
}

// Stale reports whether the snapshot is older than interval at now.
func (s Snapshot) Stale(now time.Time, interval time.Duration) bool {
	return s.TakenAt.IsZero() || now.Sub(s.TakenAt) >= interval
}

// Lister reads the live job table.
type Lister interface {
	List(ctx context.Context) ([]Job, error)
}

// Tracker owns the snapshot shared by steps. The coordinator refreshes it;
// steps read it and report their own submissions.
type Tracker struct {
	lister   Lister
	interval time.Duration
	ceiling  int
	now      func() time.Time

	mu       sync.Mutex
	snapshot Snapshot
}

// NewTracker constructs a tracker.
func NewTracker(lister Lister, interval time.Duration, ceiling int) *Tracker {
	return &Tracker{lister: lister, interval: interval, ceiling: ceiling, now: time.Now}
}

// Refresh polls the scheduler when the snapshot is older than the poll
// interval. It reports whether a poll happened.
func (t *Tracker) Refresh(ctx context.Context) (bool, error) {
	t.mu.Lock()
	stale := t.snapshot.Stale(t.now(), t.interval)
	t.mu.Unlock()
	if !stale {
		return false, nil
	}
	if t.lister == nil {
		return false, fmt.Errorf("no scheduler configured")
	}
	list, err := t.lister.List(ctx)
	if err != nil {
		return false, fmt.Errorf("list scheduler jobs: %w", err)
	}
	t.mu.Lock()
	t.snapshot = Snapshot{TakenAt: t.now(), Jobs: list}
	t.mu.Unlock()
	return true, nil
}

// Snapshot returns a copy of the current snapshot.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	jobs := make([]Job, len(t.snapshot.Jobs))
	copy(jobs, t.snapshot.Jobs)
	return Snapshot{TakenAt: t.snapshot.TakenAt, Jobs: jobs}
}

// Headroom is the number of submissions still allowed.
func (t *Tracker) Headroom() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot.Headroom(t.ceiling)
}

// Ceiling returns the configured outstanding-job ceiling.
func (t *Tracker) Ceiling() int { return t.ceiling }

// Producing looks up the job writing path.
func (t *Tracker) Producing(path string) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot.Producing(path)
}

// Note adds a freshly submitted job so headroom stays accurate until the
// next poll.
func (t *Tracker) Note(job Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.Jobs = append(t.snapshot.Jobs, job)
}
