// Package shield provides the HTTP middleware stack of the audit API:
// security headers, body limits, request ids and per-client rate limits.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.APIStack(shield.Config{}, logger) {
//	    r.Use(mw)
//	}
package shield

import (
	"log/slog"
	"net/http"
	"time"
)

// Config sizes the stack. Zero values take the defaults.
type Config struct {
	// MaxBody caps request bodies. Default: 64 KiB.
	MaxBody int64

	// RateLimit bounds POST requests per client IP per Window. 0 disables
	// the limiter. Health checks are never limited.
	RateLimit int
	Window    time.Duration // default 1m
}

// APIStack returns the middleware stack for the JSON API, outermost first:
// RequestID → SecurityHeaders → MaxBody → RateLimiter.
func APIStack(cfg Config, logger *slog.Logger) []func(http.Handler) http.Handler {
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = 64 << 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	stack := []func(http.Handler) http.Handler{
		RequestID(logger),
		SecurityHeaders(APIHeaders()),
		MaxBody(cfg.MaxBody),
	}
	if cfg.RateLimit > 0 {
		rl := NewRateLimiter(cfg.RateLimit, cfg.Window, "/healthz")
		stack = append(stack, rl.Middleware)
	}
	return stack
}
