package consent

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/perfaudit/perfaudit/internal/browser"
)

// Config configures a Resolver.
type Config struct {
	// Settle is how long to wait after the click for the banner's exit
	// animation. Default: 1s.
	Settle time.Duration

	// Poll is the interval between locator sweeps. Default: browser.DefaultPoll.
	Poll time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Settle <= 0 {
		c.Settle = time.Second
	}
	if c.Poll <= 0 {
		c.Poll = browser.DefaultPoll
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Resolver finds and clicks consent buttons.
type Resolver struct {
	cfg Config
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config) *Resolver {
	cfg.defaults()
	return &Resolver{cfg: cfg}
}

// Dismiss looks for the first visible locator of spec within timeout,
// clicks it and waits for the page to settle. It reports whether a banner
// was dismissed. No banner, a click failure or a cancelled ctx all return
// false after logging; Dismiss never fails the caller.
func (r *Resolver) Dismiss(ctx context.Context, page browser.Page, spec Spec, timeout time.Duration) bool {
	log := r.cfg.Logger
	if len(spec) == 0 {
		log.Debug("consent: empty locator spec")
		return false
	}

	findCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	idx, el, err := browser.WaitVisible(findCtx, page, spec, r.cfg.Poll)
	if err != nil {
		log.Info("consent: no consent banner found", "timeout", timeout, "candidates", len(spec))
		return false
	}
	loc := spec[idx]

	if err := el.Click(findCtx); err != nil {
		log.Warn("consent: click failed", "locator", loc.String(), "tag", loc.Tag, "error", err)
		return false
	}

	select {
	case <-time.After(r.cfg.Settle):
	case <-ctx.Done():
		log.Warn("consent: settle interrupted", "error", ctx.Err())
		return false
	}

	log.Info("consent: banner dismissed", "locator", loc.String(), "tag", loc.Tag)
	return true
}
