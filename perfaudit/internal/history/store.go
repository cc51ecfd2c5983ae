// Package history keeps a SQLite log of audit runs, successful or not.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Schema for the audit_runs table, applied by Open.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_runs (
	run_id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	report_name TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL,
	score REAL,
	fcp_ms REAL,
	lcp_ms REAL,
	tbt_ms REAL,
	cls REAL,
	violations TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_runs_url ON audit_runs(url, started_at);

CREATE TABLE IF NOT EXISTS audit_stages (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	stage TEXT NOT NULL,
	at INTEGER NOT NULL,
	elapsed_ms INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// Run is one row of the log. Metrics are nil when the run failed before
// extraction.
type Run struct {
	RunID      string    `json:"run_id"`
	URL        string    `json:"url"`
	ReportName string    `json:"report_name,omitempty"`
	State      string    `json:"state"`
	Score      *float64  `json:"score,omitempty"`
	FCP        *float64  `json:"fcp,omitempty"`
	LCP        *float64  `json:"lcp,omitempty"`
	TBT        *float64  `json:"tbt,omitempty"`
	CLS        *float64  `json:"cls,omitempty"`
	Violations []string  `json:"violations,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Succeeded reports whether the run produced metrics.
func (r Run) Succeeded() bool { return r.Score != nil }

// Store persists runs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the run log at path. ":memory:" opens a
// private in-memory log.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("history: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record inserts r, replacing any row with the same run id.
func (s *Store) Record(ctx context.Context, r Run) error {
	if r.RunID == "" || r.URL == "" {
		return errors.New("history: run id and url are required")
	}
	_, err := execRetry(ctx, s.db, `
		INSERT OR REPLACE INTO audit_runs
			(run_id, url, report_name, state, score, fcp_ms, lcp_ms, tbt_ms, cls,
			 violations, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.URL, r.ReportName, r.State,
		r.Score, r.FCP, r.LCP, r.TBT, r.CLS,
		strings.Join(r.Violations, "\n"), r.Error,
		r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("history: record %s: %w", r.RunID, err)
	}
	return nil
}

// List returns the runs for url, newest first. An empty url lists every
// run. limit <= 0 means 50.
func (s *Store) List(ctx context.Context, url string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT run_id, url, report_name, state, score, fcp_ms, lcp_ms, tbt_ms, cls,
			violations, error, started_at, finished_at
		FROM audit_runs`
	args := []any{}
	if url != "" {
		q += ` WHERE url = ?`
		args = append(args, url)
	}
	q += ` ORDER BY started_at DESC, run_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                 Run
			score, fcp, lcp   sql.NullFloat64
			tbt, cls          sql.NullFloat64
			violations        string
			started, finished int64
		)
		if err := rows.Scan(&r.RunID, &r.URL, &r.ReportName, &r.State,
			&score, &fcp, &lcp, &tbt, &cls,
			&violations, &r.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		r.Score, r.FCP, r.LCP, r.TBT, r.CLS = ptr(score), ptr(fcp), ptr(lcp), ptr(tbt), ptr(cls)
		if violations != "" {
			r.Violations = strings.Split(violations, "\n")
		}
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func ptr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// execRetry retries a write up to 3 times while SQLite reports BUSY.
func execRetry(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	const attempts = 3
	for i := range attempts {
		res, err := db.ExecContext(ctx, query, args...)
		if err == nil || !isBusy(err) || i == attempts-1 {
			return res, err
		}
		t := time.NewTimer(time.Duration(100*(i+1)) * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return nil, errors.New("history: unreachable")
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
