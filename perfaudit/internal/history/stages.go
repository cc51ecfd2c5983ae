package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Stage is one state transition of a run. Elapsed counts from the run's
// first recorded transition.
type Stage struct {
	RunID   string        `json:"run_id"`
	Seq     int           `json:"seq"`
	Stage   string        `json:"stage"`
	At      time.Time     `json:"at"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

type runClock struct {
	start time.Time
	seq   int
}

// StageLog buffers stage transitions and writes them to the store in
// batches from a background goroutine. Mark never waits on SQLite; a
// failed batch is logged and dropped.
type StageLog struct {
	store         *Store
	bufferSize    int
	flushInterval time.Duration
	logger        *slog.Logger
	now           func() time.Time

	mu     sync.Mutex
	buffer []Stage
	runs   map[string]*runClock

	kick      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewStageLog starts a log flushing every flushInterval, and as soon as
// bufferSize transitions are pending. Defaults: 64 and 2s.
func NewStageLog(store *Store, bufferSize int, flushInterval time.Duration, logger *slog.Logger) *StageLog {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &StageLog{
		store:         store,
		bufferSize:    bufferSize,
		flushInterval: flushInterval,
		logger:        logger,
		now:           time.Now,
		buffer:        make([]Stage, 0, bufferSize),
		runs:          make(map[string]*runClock),
		kick:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go l.flushLoop()
	return l
}

// Mark queues a transition of runID into stage. final releases the run's
// clock; later marks for the same id start a new sequence.
func (l *StageLog) Mark(runID, stage string, final bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.runs[runID]
	if !ok {
		c = &runClock{start: now}
		l.runs[runID] = c
	}
	l.buffer = append(l.buffer, Stage{
		RunID:   runID,
		Seq:     c.seq,
		Stage:   stage,
		At:      now,
		Elapsed: now.Sub(c.start),
	})
	c.seq++
	if final {
		delete(l.runs, runID)
	}
	if len(l.buffer) >= l.bufferSize {
		select {
		case l.kick <- struct{}{}:
		default:
		}
	}
}

// Flush writes pending transitions now.
func (l *StageLog) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushLocked()
}

// Close flushes pending transitions and stops the background goroutine.
// Later calls are no-ops.
func (l *StageLog) Close() error {
	l.closeOnce.Do(func() {
		close(l.stop)
		<-l.done
	})
	return nil
}

func (l *StageLog) flushLoop() {
	defer close(l.done)
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			l.Flush()
			return
		case <-ticker.C:
			l.Flush()
		case <-l.kick:
			l.Flush()
		}
	}
}

func (l *StageLog) flushLocked() {
	if len(l.buffer) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := l.store.insertStages(ctx, l.buffer); err != nil {
		l.logger.Warn("history: stage batch dropped", "stages", len(l.buffer), "error", err)
	}
	l.buffer = l.buffer[:0]
}

func (s *Store) insertStages(ctx context.Context, stages []Stage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO audit_stages (run_id, seq, stage, at, elapsed_ms) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, st := range stages {
		if _, err := stmt.ExecContext(ctx, st.RunID, st.Seq, st.Stage, st.At.UnixMilli(), st.Elapsed.Milliseconds()); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s/%d: %w", st.RunID, st.Seq, err)
		}
	}
	return tx.Commit()
}

// Stages returns the recorded transitions of runID in order.
func (s *Store) Stages(ctx context.Context, runID string) ([]Stage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, stage, at, elapsed_ms FROM audit_stages WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("history: stages: %w", err)
	}
	defer rows.Close()

	var out []Stage
	for rows.Next() {
		var (
			st          Stage
			at, elapsed int64
		)
		if err := rows.Scan(&st.RunID, &st.Seq, &st.Stage, &at, &elapsed); err != nil {
			return nil, fmt.Errorf("history: scan stage: %w", err)
		}
		st.At = time.UnixMilli(at)
		st.Elapsed = time.Duration(elapsed) * time.Millisecond
		out = append(out, st)
	}
	return out, rows.Err()
}
