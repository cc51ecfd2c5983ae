package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

const closeTimeout = 10 * time.Second

// Session is the browser, browsing context and page owned by one run.
// It is never shared across runs.
type Session struct {
	host     string
	port     int
	browser  *rod.Browser
	context  *rod.Browser
	page     *rod.Page
	lnch     *launcher.Launcher
	owned    bool // browser process launched by us
	isolated bool // context is a separate incognito context
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Page returns the session page.
func (s *Session) Page() Page {
	return &rodPage{p: s.page}
}

// DebugPort returns the remote-debugging port the browser listens on.
func (s *Session) DebugPort() int {
	return s.port
}

// DebugHost returns the host of a remote Chrome's DevTools endpoint, or
// "" for a locally launched one.
func (s *Session) DebugHost() string {
	return s.host
}

// Close releases page, context and browser, in that order. Only the first
// call does anything; later calls return nil.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.page != nil {
		if err := s.page.Timeout(closeTimeout).Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if s.isolated && s.context != nil {
		if err := s.context.Timeout(closeTimeout).Close(); err != nil {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
	}
	if s.owned && s.browser != nil {
		if err := s.browser.Timeout(closeTimeout).Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
	}

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Warn("browser: session close", "port", s.port, "error", err)
	} else {
		s.logger.Info("browser: session closed", "port", s.port)
	}
	return err
}
