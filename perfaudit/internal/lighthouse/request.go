// Package lighthouse drives the audit stage of a run: navigating the
// session page, waiting for content, invoking the Lighthouse collaborator
// against the session's debug port, applying thresholds under the
// request's failure policy and handing artefacts to the report sinks.
package lighthouse

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/hazyhaar/perfaudit/perfaudit/internal/browser"
)

var (
	// ErrNavigation is returned when the target cannot be loaded.
	ErrNavigation = errors.New("lighthouse: navigation failed")

	// ErrAuditExecution is returned when the collaborator fails, or when
	// thresholds are not met, under the strict policy.
	ErrAuditExecution = errors.New("lighthouse: audit execution failed")
)

// FailurePolicy decides whether collaborator errors and threshold
// violations fail the run.
type FailurePolicy string

const (
	// PolicyTolerant logs collaborator errors and threshold violations
	// and still returns a report. Thresholds are for reporting only.
	PolicyTolerant FailurePolicy = "tolerant"
	// PolicyStrict turns them into ErrAuditExecution.
	PolicyStrict FailurePolicy = "strict"
)

// ParsePolicy parses "tolerant" or "strict". Empty means tolerant.
func ParsePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", PolicyTolerant:
		return PolicyTolerant, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", fmt.Errorf("lighthouse: unknown failure policy %q", s)
}

// Default values applied by Request.WithDefaults.
const (
	DefaultNavigationTimeout   = 30 * time.Second
	DefaultAuditTimeout        = 3 * time.Minute
	DefaultContentReadyTimeout = 15 * time.Second
	DefaultReportPrefix        = "lighthouse-"
)

// DefaultCategories are audited when a request names none.
var DefaultCategories = []string{"performance", "accessibility", "best-practices", "seo"}

// DefaultContentReady are the content-ready candidates used when a request
// names none.
func DefaultContentReady() []browser.Locator {
	return browser.CSS(
		`input[name="q"]`,
		`div[role="main"]`,
		"main",
		"#main",
		"#searchform",
		`form[role="search"]`,
		"body",
	)
}

// Request describes one audit. It is built once per run and passed by
// value.
type Request struct {
	URL  string
	Port int    // remote-debugging port of the session browser
	Host string // DevTools host of a remote browser, "" = local

	NavigationTimeout time.Duration
	AuditTimeout      time.Duration // budget for the collaborator
	MaxWaitForLoad    time.Duration // passed to the collaborator, 0 = its default

	ContentReady        []browser.Locator // nil = DefaultContentReady, empty = no wait
	ContentReadyTimeout time.Duration

	Categories []string
	SkipAudits []string
	Thresholds map[string]float64 // category -> minimum score, 0-100
	Policy     FailurePolicy

	RunID      string
	ReportName string // default DefaultReportPrefix + RunID
}

// WithDefaults returns a copy with zero fields filled in.
func (r Request) WithDefaults() Request {
	if r.Port <= 0 {
		r.Port = browser.DefaultPort
	}
	if r.NavigationTimeout <= 0 {
		r.NavigationTimeout = DefaultNavigationTimeout
	}
	if r.AuditTimeout <= 0 {
		r.AuditTimeout = DefaultAuditTimeout
	}
	if r.ContentReadyTimeout <= 0 {
		r.ContentReadyTimeout = DefaultContentReadyTimeout
	}
	if r.ContentReady == nil {
		r.ContentReady = DefaultContentReady()
	}
	if len(r.Categories) == 0 {
		r.Categories = append([]string(nil), DefaultCategories...)
	}
	if r.Policy == "" {
		r.Policy = PolicyTolerant
	}
	if r.ReportName == "" && r.RunID != "" {
		r.ReportName = DefaultReportPrefix + r.RunID
	}
	return r
}

// Validate checks the target, port, policy and thresholds. A zero port
// is the default and is filled in by WithDefaults.
func (r Request) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("lighthouse: request has no url")
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("lighthouse: invalid url %q: %w", r.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("lighthouse: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("lighthouse: url %q has no host", r.URL)
	}
	if r.Port < 0 || r.Port > 65535 {
		return fmt.Errorf("lighthouse: port %d outside 1-65535", r.Port)
	}
	if _, err := ParsePolicy(string(r.Policy)); err != nil {
		return err
	}
	for cat, want := range r.Thresholds {
		if want < 0 || want > 100 {
			return fmt.Errorf("lighthouse: threshold %s=%v outside 0-100", cat, want)
		}
	}
	return nil
}
