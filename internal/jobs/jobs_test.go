package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeLister struct {
	calls int
	jobs  []Job
	err   error
}

func (f *fakeLister) List(context.Context) ([]Job, error) {
	f.calls++
	return f.jobs, f.err
}

func TestSnapshotQueries(t *testing.T) {
	snap := Snapshot{Jobs: []Job{
		{ID: 10, Status: "RUNNING", Name: "/n/bl/profiles/br-00001.tbst.dst.gz"},
		{ID: 11, Status: "PENDING", Name: "/n/bm/profiles/md-00002.pfst.dst.gz"},
	}}
	if snap.Outstanding() != 2 {
		t.Fatalf("unexpected outstanding %d", snap.Outstanding())
	}
	job, ok := snap.Producing("/n/bm/profiles/md-00002.pfst.dst.gz")
	if !ok || job.ID != 11 {
		t.Fatalf("expected job 11, got %+v ok=%v", job, ok)
	}
	if _, ok := snap.Producing("/n/bm/profiles/md-00003.pfst.dst.gz"); ok {
		t.Fatal("unexpected producer")
	}
	for _, near := range []string{
		"/n/bm/profiles/md-00002.pfst",
		"md-00002.pfst.dst.gz",
		"/n/bm/profiles/md-00002.pfst.dst.gz.tmp",
	} {
		if _, ok := snap.Producing(near); ok {
			t.Fatalf("%q must not match a job named after a different path", near)
		}
	}
	if _, ok := snap.Producing(""); ok {
		t.Fatal("empty path must not match")
	}
	if snap.Headroom(5) != 3 || snap.Headroom(2) != 0 || snap.Headroom(1) != 0 {
		t.Fatal("unexpected headroom")
	}
}

func TestTrackerRefreshHonorsInterval(t *testing.T) {
	lister := &fakeLister{jobs: []Job{{ID: 1}}}
	tracker := NewTracker(lister, time.Minute, 3)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }

	polled, err := tracker.Refresh(context.Background())
	if err != nil || !polled {
		t.Fatalf("first refresh: polled=%v err=%v", polled, err)
	}
	now = now.Add(30 * time.Second)
	polled, err = tracker.Refresh(context.Background())
	if err != nil || polled {
		t.Fatalf("refresh inside interval should not poll: polled=%v err=%v", polled, err)
	}
	now = now.Add(31 * time.Second)
	if polled, _ := tracker.Refresh(context.Background()); !polled {
		t.Fatal("expected poll after interval")
	}
	if lister.calls != 2 {
		t.Fatalf("expected 2 list calls, got %d", lister.calls)
	}
}

func TestTrackerNoteConsumesHeadroom(t *testing.T) {
	tracker := NewTracker(&fakeLister{jobs: []Job{{ID: 1}}}, time.Minute, 3)
	if _, err := tracker.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if tracker.Headroom() != 2 {
		t.Fatalf("unexpected headroom %d", tracker.Headroom())
	}
	tracker.Note(Job{ID: 2, Name: "out.dst.gz"})
	tracker.Note(Job{ID: 3})
	if tracker.Headroom() != 0 {
		t.Fatalf("expected no headroom, got %d", tracker.Headroom())
	}
	if _, ok := tracker.Producing("out.dst.gz"); !ok {
		t.Fatal("noted job should be visible to Producing")
	}
}

func TestTrackerRefreshError(t *testing.T) {
	tracker := NewTracker(&fakeLister{err: errors.New("squeue down")}, time.Minute, 3)
	if _, err := tracker.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, err := NewTracker(nil, time.Minute, 1).Refresh(context.Background()); err == nil {
		t.Fatal("expected error without lister")
	}
}
