// Package perfaudit audits the performance of a live web page: it opens a
// Chrome session, loads the target, dismisses the consent banner, runs
// Lighthouse against the session's debug port and returns the
// performance score with four core web vitals.
//
// Usage:
//
//	svc, closeFn, err := perfaudit.Build(perfaudit.DefaultConfig(), logger)
//	defer closeFn()
//	res, err := svc.Audit(ctx, perfaudit.AuditInput{URL: "https://example.com"})
package perfaudit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/perfaudit/perfaudit/internal/browser"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/consent"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/history"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/lighthouse"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/metrics"
)

// Session is an open browser session owned by one run.
type Session interface {
	Page() browser.Page
	DebugHost() string // "" for a local browser
	DebugPort() int
	Close() error
}

// OpenFunc opens a session whose browser listens on port.
type OpenFunc func(ctx context.Context, port int) (Session, error)

// OpenBrowser adapts a browser.Manager to OpenFunc.
func OpenBrowser(m *browser.Manager) OpenFunc {
	return func(ctx context.Context, port int) (Session, error) {
		s, err := m.Open(ctx, port)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Recorder receives one history entry per run, after teardown.
type Recorder interface {
	Record(ctx context.Context, r history.Run) error
}

// Config wires the stages of a run.
type Config struct {
	// Open creates the session. Required.
	Open OpenFunc

	// Invoker navigates and audits. Required.
	Invoker *lighthouse.Invoker

	// Consent dismisses the banner. Default: consent.NewResolver with
	// default settings.
	Consent *consent.Resolver

	// ConsentSpec is the locator list. Nil skips the consent step.
	ConsentSpec consent.Spec

	// ConsentTimeout bounds the banner search. Default: 5s.
	ConsentTimeout time.Duration

	// Defaults is the request template used by RunURL and the service.
	Defaults lighthouse.Request
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Auditor) { a.logger = l }
}

// WithRecorder appends every run to r.
func WithRecorder(r Recorder) Option {
	return func(a *Auditor) { a.recorder = r }
}

// WithStateHook calls fn on every state change of every run.
func WithStateHook(fn func(runID string, s State)) Option {
	return func(a *Auditor) { a.hook = fn }
}

// WithIDGenerator sets the run id generator. Default: UUIDv7.
func WithIDGenerator(gen func() string) Option {
	return func(a *Auditor) { a.newID = gen }
}

// Auditor runs audits. It is safe for concurrent use as long as
// concurrent runs use distinct debug ports.
type Auditor struct {
	cfg      Config
	logger   *slog.Logger
	recorder Recorder
	hook     func(string, State)
	newID    func() string
}

// New creates an Auditor.
func New(cfg Config, opts ...Option) *Auditor {
	if cfg.ConsentTimeout <= 0 {
		cfg.ConsentTimeout = 5 * time.Second
	}
	a := &Auditor{
		cfg:    cfg,
		logger: slog.Default(),
		newID:  func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, o := range opts {
		o(a)
	}
	if a.cfg.Consent == nil {
		a.cfg.Consent = consent.NewResolver(consent.Config{Logger: a.logger})
	}
	return a
}

// Request returns a copy of the request template targeting url.
func (a *Auditor) Request(url string) lighthouse.Request {
	req := a.cfg.Defaults
	req.URL = url
	req.Categories = append([]string(nil), req.Categories...)
	req.SkipAudits = append([]string(nil), req.SkipAudits...)
	if req.Thresholds != nil {
		th := make(map[string]float64, len(req.Thresholds))
		for k, v := range req.Thresholds {
			th[k] = v
		}
		req.Thresholds = th
	}
	return req
}

// Result describes a successful run.
type Result struct {
	RunID      string              `json:"run_id"`
	URL        string              `json:"url"`
	ReportName string              `json:"report_name"`
	Metrics    metrics.Performance `json:"metrics"`
	Categories map[string]float64  `json:"categories,omitempty"`

	ConsentDismissed bool                   `json:"consent_dismissed"`
	ContentReady     string                 `json:"content_ready,omitempty"`
	Violations       []lighthouse.Violation `json:"violations,omitempty"`
	RunnerError      string                 `json:"runner_error,omitempty"`
	PersistError     string                 `json:"persist_error,omitempty"`

	State      State         `json:"state"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration_ns"`
}

// RunURL audits url with the default request and returns its metrics.
func (a *Auditor) RunURL(ctx context.Context, url string) (metrics.Performance, error) {
	res, err := a.Run(ctx, a.Request(url))
	if err != nil {
		return metrics.Performance{}, err
	}
	return res.Metrics, nil
}

// Run executes one audit: open session, navigate, dismiss consent, audit,
// extract metrics. The session is closed exactly once on every path.
// Cancelling ctx aborts the current stage; teardown still happens.
func (a *Auditor) Run(ctx context.Context, req lighthouse.Request) (*Result, error) {
	if req.RunID == "" {
		req.RunID = a.newID()
	}
	req = req.WithDefaults()

	r := &run{a: a, req: req, started: time.Now(), state: StateIdle}
	r.log = a.logger.With("run_id", req.RunID, "url", req.URL)
	a.notify(req.RunID, StateIdle)

	res, err := r.execute(ctx)
	r.finish(ctx, res, err)
	return res, err
}

type run struct {
	a       *Auditor
	req     lighthouse.Request
	log     *slog.Logger
	started time.Time
	state   State
}

func (r *run) transition(s State) {
	r.state = s
	r.a.notify(r.req.RunID, s)
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	if err := r.req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	// A launch failure is reported from SessionOpen, the attempted state.
	r.transition(StateSessionOpen)
	sess, err := r.a.cfg.Open(ctx, r.req.Port)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			r.log.Warn("perfaudit: session teardown", "error", cerr)
		}
	}()
	r.req.Host = sess.DebugHost()
	if p := sess.DebugPort(); p > 0 {
		r.req.Port = p
	}
	page := sess.Page()

	if err := r.a.cfg.Invoker.Navigate(ctx, page, r.req); err != nil {
		return nil, err
	}
	r.transition(StateNavigated)

	dismissed := false
	if len(r.a.cfg.ConsentSpec) > 0 {
		dismissed = r.a.cfg.Consent.Dismiss(ctx, page, r.a.cfg.ConsentSpec, r.a.cfg.ConsentTimeout)
	}
	r.transition(StateConsentResolved)

	out, err := r.a.cfg.Invoker.Run(ctx, page, r.req)
	if err != nil {
		return nil, err
	}
	r.transition(StateAudited)

	perf, err := metrics.Extract(out.Report.JSON)
	if err != nil {
		return nil, err
	}
	if err := perf.Validate(); err != nil {
		return nil, err
	}
	r.transition(StateMetricsExtracted)

	res := &Result{
		RunID:            r.req.RunID,
		URL:              r.req.URL,
		ReportName:       r.req.ReportName,
		Metrics:          perf,
		Categories:       metrics.CategoryScores(out.Report.JSON),
		ConsentDismissed: dismissed,
		ContentReady:     out.ContentReady,
		Violations:       out.Violations,
		StartedAt:        r.started,
	}
	if out.RunnerErr != nil {
		res.RunnerError = out.RunnerErr.Error()
	}
	if out.PersistErr != nil {
		res.PersistError = out.PersistErr.Error()
	}
	return res, nil
}

// finish runs after teardown: it sets the terminal state, logs and
// records the run.
func (r *run) finish(ctx context.Context, res *Result, err error) {
	end := time.Now()
	last := r.state
	if err != nil {
		r.transition(StateClosedFailed)
		r.log.Error("perfaudit: run failed", "last_state", last.String(),
			"duration", end.Sub(r.started), "error", err)
	} else {
		r.transition(StateClosed)
		res.State = StateClosed
		res.FinishedAt = end
		res.Duration = end.Sub(r.started)
		r.log.Info("perfaudit: run complete", "score", res.Metrics.Score,
			"lcp", res.Metrics.LargestContentfulPaint, "consent_dismissed", res.ConsentDismissed,
			"duration", res.Duration)
	}

	if r.a.recorder == nil || r.req.URL == "" {
		return
	}
	entry := history.Run{
		RunID:      r.req.RunID,
		URL:        r.req.URL,
		ReportName: r.req.ReportName,
		State:      r.state.String(),
		StartedAt:  r.started,
		FinishedAt: end,
	}
	if err != nil {
		entry.Error = err.Error()
		var terr *lighthouse.ThresholdError
		if errors.As(err, &terr) {
			entry.Violations = violationStrings(terr.Violations)
		}
	} else {
		m := res.Metrics
		entry.Score, entry.FCP, entry.LCP = &m.Score, &m.FirstContentfulPaint, &m.LargestContentfulPaint
		entry.TBT, entry.CLS = &m.TotalBlockingTime, &m.CumulativeLayoutShift
		entry.Violations = violationStrings(res.Violations)
	}
	if rerr := r.a.recorder.Record(context.WithoutCancel(ctx), entry); rerr != nil {
		r.log.Warn("perfaudit: history write failed", "error", rerr)
	}
}

func (a *Auditor) notify(runID string, s State) {
	if a.hook != nil {
		a.hook(runID, s)
	}
}

func violationStrings(vs []lighthouse.Violation) []string {
	if len(vs) == 0 {
		return nil
	}
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}
