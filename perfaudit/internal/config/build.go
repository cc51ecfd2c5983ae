package config

import (
	"log/slog"

	"github.com/hazyhaar/perfaudit/perfaudit/internal/browser"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/consent"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/lighthouse"
	"github.com/hazyhaar/perfaudit/shield"
)

// BrowserManager returns the browser.Config described by c.
func (c *Config) BrowserManager(logger *slog.Logger) browser.Config {
	return browser.Config{
		Bin:           c.Browser.Bin,
		RemoteURL:     c.Browser.Remote,
		Port:          c.Browser.Port,
		Headful:       c.Browser.Headful,
		Incognito:     c.Browser.Incognito,
		Stealth:       c.Browser.Stealth,
		Flags:         c.Browser.Flags,
		LaunchTimeout: c.Browser.LaunchTimeout,
		Logger:        logger,
	}
}

// ConsentResolver returns the consent.Config described by c.
func (c *Config) ConsentResolver(logger *slog.Logger) consent.Config {
	return consent.Config{Settle: c.Consent.Settle, Logger: logger}
}

// ConsentSpec returns the locators to try, nil when consent handling is
// disabled.
func (c *Config) ConsentSpec() consent.Spec {
	if c.Consent.Disabled {
		return nil
	}
	spec := consent.DefaultSpec()
	if len(c.Consent.Locators) > 0 {
		spec = consent.Spec(c.Consent.Locators)
	}
	if len(c.Consent.Tags) > 0 {
		spec = spec.Filter(c.Consent.Tags...)
	}
	return spec
}

// LighthouseCLI returns the CLI runner configuration.
func (c *Config) LighthouseCLI(logger *slog.Logger) lighthouse.CLIConfig {
	return lighthouse.CLIConfig{
		Bin:    c.Audit.Lighthouse.Bin,
		Flags:  c.Audit.Lighthouse.Flags,
		Logger: logger,
	}
}

// Request returns an audit request for url. Run id, report name and port
// are left for the caller.
func (c *Config) Request(url string) lighthouse.Request {
	a := c.Audit
	req := lighthouse.Request{
		URL:                 url,
		Port:                c.Browser.Port,
		NavigationTimeout:   a.NavigationTimeout,
		AuditTimeout:        a.AuditTimeout,
		MaxWaitForLoad:      a.MaxWaitForLoad,
		ContentReadyTimeout: a.ContentReady.Timeout,
		Categories:          append([]string(nil), a.Categories...),
		SkipAudits:          append([]string(nil), a.SkipAudits...),
		Thresholds:          make(map[string]float64, len(a.Thresholds)),
		Policy:              lighthouse.FailurePolicy(a.Policy),
	}
	for k, v := range a.Thresholds {
		req.Thresholds[k] = v
	}
	switch {
	case a.ContentReady.Disabled:
		req.ContentReady = []browser.Locator{}
	case len(a.ContentReady.Selectors) > 0:
		req.ContentReady = browser.CSS(a.ContentReady.Selectors...)
	}
	return req
}

// Shield sizes the HTTP middleware stack of `perfaudit serve`.
func (c *Config) Shield() shield.Config {
	return shield.Config{
		MaxBody:   c.Server.MaxBody,
		RateLimit: c.Server.RateLimit,
		Window:    c.Server.RateWindow,
	}
}
