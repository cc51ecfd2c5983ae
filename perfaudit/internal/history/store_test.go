package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func f(v float64) *float64 { return &v }

func TestStore_RecordList(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	runs := []Run{
		{RunID: "a", URL: "https://example.com/", State: "Closed", Score: f(92), FCP: f(1200), LCP: f(2500), TBT: f(10), CLS: f(0.01),
			StartedAt: base, FinishedAt: base.Add(time.Minute)},
		{RunID: "b", URL: "https://example.com/", State: "ClosedFailed", Error: "navigation failed",
			StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour)},
		{RunID: "c", URL: "https://other.test/", State: "Closed", Score: f(50), Violations: []string{"performance 50 < 60"},
			StartedAt: base.Add(2 * time.Hour), FinishedAt: base.Add(2 * time.Hour)},
	}
	for _, r := range runs {
		if err := s.Record(ctx, r); err != nil {
			t.Fatalf("Record %s: %v", r.RunID, err)
		}
	}

	got, err := s.List(ctx, "https://example.com/", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].RunID != "b" || got[1].RunID != "a" {
		t.Fatalf("order: %+v", got)
	}
	if got[0].Succeeded() || got[0].Error != "navigation failed" {
		t.Errorf("failed run: %+v", got[0])
	}
	if !got[1].Succeeded() || *got[1].Score != 92 || *got[1].CLS != 0.01 {
		t.Errorf("metrics: %+v", got[1])
	}
	if !got[1].StartedAt.Equal(base) {
		t.Errorf("started: %v", got[1].StartedAt)
	}

	all, err := s.List(ctx, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].RunID != "c" || len(all[0].Violations) != 1 {
		t.Fatalf("all: %+v", all)
	}
}

func TestStore_RecordReplaces(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := time.Now()

	r := Run{RunID: "x", URL: "https://example.com/", State: "SessionOpen", StartedAt: now, FinishedAt: now}
	if err := s.Record(ctx, r); err != nil {
		t.Fatal(err)
	}
	r.State, r.Score = "Closed", f(70)
	if err := s.Record(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, _ := s.List(ctx, "", 0)
	if len(got) != 1 || got[0].State != "Closed" {
		t.Fatalf("got %+v", got)
	}
}

func TestStore_RecordRequiresIDs(t *testing.T) {
	if err := openTest(t).Record(context.Background(), Run{URL: "https://example.com/"}); err == nil {
		t.Fatal("expected error without run id")
	}
}

func TestStore_FilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now := time.Now()
	if err := s.Record(context.Background(), Run{RunID: "p", URL: "https://example.com/", State: "Closed", StartedAt: now, FinishedAt: now}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.List(context.Background(), "https://example.com/", 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("after reopen: %v %+v", err, got)
	}
}
