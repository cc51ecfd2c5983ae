package lighthouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/perfaudit/perfaudit/internal/browser"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/report"
)

// Config configures an Invoker.
type Config struct {
	// Runner is the audit collaborator. Required.
	Runner Runner

	// Sink receives the artefacts of every run. Nil = not persisted.
	Sink report.Sink

	// Poll is the content-ready sweep interval. Default: browser.DefaultPoll.
	Poll time.Duration

	Logger *slog.Logger

	// Now is the clock used to stamp artefacts. Default: time.Now.
	Now func() time.Time
}

// Invoker runs the navigation and audit stages of a run.
type Invoker struct {
	cfg Config
}

// NewInvoker creates an Invoker.
func NewInvoker(cfg Config) *Invoker {
	if cfg.Poll <= 0 {
		cfg.Poll = browser.DefaultPoll
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Invoker{cfg: cfg}
}

// Outcome is the result of the audit stage.
type Outcome struct {
	Report *Report
	Name   string

	// ContentReady is the locator that became visible, empty when the
	// wait fell back.
	ContentReady string

	// Violations lists the thresholds not met.
	Violations []Violation

	// RunnerErr is a collaborator error tolerated by the policy.
	RunnerErr error

	// PersistErr is the report persistence error, if any.
	PersistErr error
}

// Navigate loads req.URL on page, waiting for DOM content rather than
// network idle, within req.NavigationTimeout.
func (iv *Invoker) Navigate(ctx context.Context, page browser.Page, req Request) error {
	navCtx, cancel := context.WithTimeout(ctx, req.NavigationTimeout)
	defer cancel()

	start := time.Now()
	nav, err := page.Navigate(navCtx, req.URL)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNavigation, req.URL, err)
	}
	if !nav.OK() {
		return fmt.Errorf("%w: %s: status %d with no content", ErrNavigation, req.URL, nav.Status)
	}

	iv.cfg.Logger.Info("lighthouse: navigated", "url", req.URL, "landed", nav.URL,
		"status", nav.Status, "duration", time.Since(start))
	return nil
}

// Run waits for content, invokes the collaborator on the session browser,
// persists artefacts and applies thresholds under req.Policy.
//
// Under PolicyTolerant the returned Outcome always has a non-nil Report,
// possibly empty when the collaborator produced nothing; extraction then
// fails downstream. Under PolicyStrict collaborator errors and threshold
// violations return ErrAuditExecution.
func (iv *Invoker) Run(ctx context.Context, page browser.Page, req Request) (*Outcome, error) {
	log := iv.cfg.Logger
	out := &Outcome{Name: req.ReportName}

	out.ContentReady = iv.waitContent(ctx, page, req)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuditExecution, err)
	}

	auditCtx, cancel := context.WithTimeout(ctx, req.AuditTimeout)
	start := time.Now()
	rep, err := iv.cfg.Runner.Run(auditCtx, Input{
		URL:            req.URL,
		Host:           req.Host,
		Port:           req.Port,
		Categories:     req.Categories,
		SkipAudits:     req.SkipAudits,
		MaxWaitForLoad: req.MaxWaitForLoad,
		Name:           req.ReportName,
	})
	cancel()
	if err != nil {
		// The caller's deadline or cancellation ends the run under either
		// policy, and stays matchable with errors.Is.
		if cerr := ctx.Err(); cerr != nil {
			if errors.Is(err, cerr) {
				return nil, fmt.Errorf("%w: %w", ErrAuditExecution, err)
			}
			return nil, fmt.Errorf("%w: %w: %w", ErrAuditExecution, cerr, err)
		}
		if req.Policy == PolicyStrict {
			return nil, fmt.Errorf("%w: %w", ErrAuditExecution, err)
		}
		log.Warn("lighthouse: collaborator error tolerated", "url", req.URL, "error", err)
		out.RunnerErr = err
	}
	if rep == nil {
		rep = &Report{}
	}
	out.Report = rep
	log.Info("lighthouse: audit finished", "url", req.URL, "duration", time.Since(start),
		"report_bytes", len(rep.JSON))

	if len(rep.JSON) > 0 {
		out.PersistErr = iv.persist(ctx, req, rep)
	}

	out.Violations = CheckThresholds(rep.JSON, req.Thresholds)
	if len(out.Violations) > 0 {
		terr := &ThresholdError{Violations: out.Violations}
		if req.Policy == PolicyStrict {
			return nil, terr
		}
		log.Warn("lighthouse: thresholds not met, continuing", "url", req.URL, "violations", terr.Error())
	}
	return out, nil
}

// waitContent waits for any content-ready candidate. A timeout is logged
// and the audit proceeds on whatever has rendered.
func (iv *Invoker) waitContent(ctx context.Context, page browser.Page, req Request) string {
	if len(req.ContentReady) == 0 {
		return ""
	}
	readyCtx, cancel := context.WithTimeout(ctx, req.ContentReadyTimeout)
	defer cancel()

	idx, _, err := browser.WaitVisible(readyCtx, page, req.ContentReady, iv.cfg.Poll)
	if err != nil {
		iv.cfg.Logger.Warn("lighthouse: no content-ready element visible, continuing",
			"url", req.URL, "timeout", req.ContentReadyTimeout)
		return ""
	}
	loc := req.ContentReady[idx].String()
	iv.cfg.Logger.Debug("lighthouse: content ready", "url", req.URL, "locator", loc)
	return loc
}

func (iv *Invoker) persist(ctx context.Context, req Request, rep *Report) error {
	if iv.cfg.Sink == nil {
		return nil
	}
	err := iv.cfg.Sink.Persist(ctx, report.Artifact{
		RunID:     req.RunID,
		Name:      req.ReportName,
		URL:       req.URL,
		CreatedAt: iv.cfg.Now(),
		JSON:      rep.JSON,
		HTML:      rep.HTML,
	})
	if err != nil {
		iv.cfg.Logger.Warn("lighthouse: report persistence failed", "name", req.ReportName, "error", err)
	}
	return err
}
