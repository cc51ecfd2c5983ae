package history

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newStageLog(t *testing.T, s *Store, buffer int) (*StageLog, *time.Time) {
	t.Helper()
	l := NewStageLog(s, buffer, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	t.Cleanup(func() { l.Close() })
	return l, &now
}

func TestStageLog_MarkFlush(t *testing.T) {
	s := openTest(t)
	l, now := newStageLog(t, s, 64)

	l.Mark("r1", "Idle", false)
	*now = now.Add(1500 * time.Millisecond)
	l.Mark("r1", "SessionOpen", false)
	*now = now.Add(time.Second)
	l.Mark("r1", "Closed", true)
	l.Flush()

	stages, err := s.Stages(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Stages: %v", err)
	}
	if len(stages) != 3 {
		t.Fatalf("stages: %+v", stages)
	}
	want := []struct {
		stage   string
		elapsed time.Duration
	}{{"Idle", 0}, {"SessionOpen", 1500 * time.Millisecond}, {"Closed", 2500 * time.Millisecond}}
	for i, w := range want {
		if stages[i].Seq != i || stages[i].Stage != w.stage || stages[i].Elapsed != w.elapsed {
			t.Errorf("stage %d: %+v, want %s +%v", i, stages[i], w.stage, w.elapsed)
		}
	}
}

func TestStageLog_FinalResetsClock(t *testing.T) {
	s := openTest(t)
	l, now := newStageLog(t, s, 64)

	l.Mark("r1", "Idle", false)
	l.Mark("r1", "Closed", true)
	*now = now.Add(time.Minute)
	l.Mark("r2", "Idle", false)
	l.Flush()

	stages, err := s.Stages(context.Background(), "r2")
	if err != nil {
		t.Fatal(err)
	}
	if len(stages) != 1 || stages[0].Seq != 0 || stages[0].Elapsed != 0 {
		t.Fatalf("r2: %+v", stages)
	}
}

func TestStageLog_FlushesWhenFull(t *testing.T) {
	s := openTest(t)
	l, _ := newStageLog(t, s, 2)

	l.Mark("r1", "Idle", false)
	l.Mark("r1", "SessionOpen", false)

	deadline := time.Now().Add(2 * time.Second)
	for {
		stages, err := s.Stages(context.Background(), "r1")
		if err != nil {
			t.Fatal(err)
		}
		if len(stages) == 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("buffer did not flush: %+v", stages)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStageLog_CloseFlushes(t *testing.T) {
	s := openTest(t)
	l := NewStageLog(s, 64, time.Hour, nil)
	l.Mark("r1", "Idle", false)
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	stages, err := s.Stages(context.Background(), "r1")
	if err != nil || len(stages) != 1 {
		t.Fatalf("stages: %+v %v", stages, err)
	}
}
