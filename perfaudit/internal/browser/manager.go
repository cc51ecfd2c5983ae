// Package browser owns the Chrome side of an audit run: launching a
// headless Chrome with a remote-debugging port, creating one browsing
// context and one page per run, and releasing all of it exactly once.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// DefaultPort is the remote-debugging port used when none is configured.
const DefaultPort = 9222

// ErrLaunch is returned when Chrome cannot be started or reached. It is
// fatal for the run and never retried here.
var ErrLaunch = errors.New("browser: launch failed")

// Config configures the browser manager.
type Config struct {
	// Bin is the Chrome executable. Empty = first Chrome found on the
	// system, falling back to the launcher's managed download.
	Bin string

	// RemoteURL is the DevTools endpoint (ws:// or http://host:port) of an
	// already running Chrome. Empty = launch a local Chrome per session.
	RemoteURL string

	// Port is the remote-debugging port. Default: 9222.
	Port int

	// Headful disables headless mode. Unattended runs keep it false.
	Headful bool

	// Incognito creates a separate browser context for the session page.
	// Off by default: runs are isolated by the fresh profile (user data
	// dir) of each launch, and the audit collaborator, which opens its own
	// tab in the default context, must see the consent cookies.
	Incognito bool

	// Stealth creates the page through go-rod/stealth.
	Stealth bool

	// Flags are extra Chrome command-line switches (name -> value).
	Flags map[string]string

	// LaunchTimeout bounds process start and DevTools connect. Default: 30s.
	LaunchTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.LaunchTimeout <= 0 {
		c.LaunchTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager opens audit sessions. It holds no browser state itself: every
// Session owns its own Chrome process (or remote connection).
type Manager struct {
	cfg Config
}

// NewManager creates a Manager.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Open launches (or connects to) Chrome on port, creates the browsing
// context and a single page. port <= 0 uses the configured port. Any
// partially acquired resource is released before an error is returned.
func (m *Manager) Open(ctx context.Context, port int) (*Session, error) {
	if port <= 0 {
		port = m.cfg.Port
	}
	log := m.cfg.Logger

	b, lnch, host, err := m.connect(ctx, &port)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	s := &Session{
		host:    host,
		port:    port,
		browser: b,
		context: b,
		lnch:    lnch,
		owned:   lnch != nil,
		logger:  log,
	}

	if m.cfg.Incognito {
		inc, err := b.Incognito()
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: incognito context: %w", ErrLaunch, err)
		}
		s.context = inc
		s.isolated = true
	}

	page, err := m.newPage(s.context)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: create page: %w", ErrLaunch, err)
	}
	s.page = page

	log.Info("browser: session open", "host", host, "port", port, "remote", !s.owned, "incognito", s.isolated)
	return s, nil
}

// connect returns a connected browser and, for local launches, the
// launcher that must be cleaned up with it. For a remote Chrome, *port is
// replaced by the endpoint's port and host is the endpoint's host; a local
// launch returns an empty host.
func (m *Manager) connect(ctx context.Context, port *int) (*rod.Browser, *launcher.Launcher, string, error) {
	launchCtx, cancel := context.WithTimeout(ctx, m.cfg.LaunchTimeout)
	defer cancel()

	if m.cfg.RemoteURL != "" {
		wsURL, err := launcher.ResolveURL(m.cfg.RemoteURL)
		if err != nil {
			return nil, nil, "", fmt.Errorf("resolve %s: %w", m.cfg.RemoteURL, err)
		}
		host, p, err := Endpoint(wsURL)
		if err != nil {
			return nil, nil, "", err
		}
		b, err := dial(launchCtx, wsURL)
		if err != nil {
			return nil, nil, "", err
		}
		*port = p
		return b, nil, host, nil
	}

	l := m.newLauncher(*port)
	wsURL, err := launch(launchCtx, l)
	if err != nil {
		l.Cleanup()
		return nil, nil, "", err
	}
	m.cfg.Logger.Debug("browser: launched local chrome", "url", wsURL, "port", *port)

	b, err := dial(launchCtx, wsURL)
	if err != nil {
		l.Cleanup()
		return nil, nil, "", err
	}
	return b, l, "", nil
}

// Endpoint returns the host and port of a DevTools URL (ws, wss, http or
// https). A URL without a port gets its scheme's default.
func Endpoint(devtoolsURL string) (string, int, error) {
	u, err := url.Parse(devtoolsURL)
	if err != nil {
		return "", 0, fmt.Errorf("devtools url %q: %w", devtoolsURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", 0, fmt.Errorf("devtools url %q: no host", devtoolsURL)
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return "", 0, fmt.Errorf("devtools url %q: bad port", devtoolsURL)
		}
		return host, n, nil
	}
	switch u.Scheme {
	case "wss", "https":
		return host, 443, nil
	case "ws", "http":
		return host, 80, nil
	}
	return "", 0, fmt.Errorf("devtools url %q: unsupported scheme", devtoolsURL)
}

func (m *Manager) newLauncher(port int) *launcher.Launcher {
	l := launcher.New()

	bin := m.cfg.Bin
	if bin == "" {
		if found, ok := launcher.LookPath(); ok {
			bin = found
		}
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	l = l.Headless(!m.cfg.Headful).RemoteDebuggingPort(port)
	l = l.Set("disable-blink-features", "AutomationControlled")
	for name, value := range m.cfg.Flags {
		if value == "" {
			l = l.Set(flags.Flag(name))
			continue
		}
		l = l.Set(flags.Flag(name), value)
	}
	return l
}

func (m *Manager) newPage(b *rod.Browser) (*rod.Page, error) {
	if m.cfg.Stealth {
		return stealth.Page(b)
	}
	return b.Page(proto.TargetCreateTarget{URL: ""})
}

// launch starts Chrome and waits for its DevTools URL, bounded by ctx.
func launch(ctx context.Context, l *launcher.Launcher) (string, error) {
	type result struct {
		url string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		u, err := l.Launch()
		ch <- result{u, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("start chrome: %w", r.err)
		}
		return r.url, nil
	case <-ctx.Done():
		l.Kill()
		return "", fmt.Errorf("start chrome: %w", ctx.Err())
	}
}

// dial connects to a DevTools websocket. The connection is not bound to
// ctx so teardown still works after the caller's context is cancelled.
func dial(ctx context.Context, wsURL string) (*rod.Browser, error) {
	b := rod.New().ControlURL(wsURL)
	errc := make(chan error, 1)
	go func() { errc <- b.Connect() }()

	select {
	case err := <-errc:
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", wsURL, err)
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("connect %s: %w", wsURL, ctx.Err())
	}

	if err := b.IgnoreCertErrors(true); err != nil {
		return nil, fmt.Errorf("ignore cert errors: %w", err)
	}
	return b, nil
}

// LookPath reports the Chrome binary the manager would use by default.
func LookPath() (string, bool) {
	return launcher.LookPath()
}
