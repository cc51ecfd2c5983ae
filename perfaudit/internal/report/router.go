package report

import (
	"context"
	"fmt"
	"log/slog"
)

// Router fans artefacts out to all sinks. One failing sink does not stop
// the others; the first error is returned wrapped in ErrPersistence.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Len returns the number of sinks.
func (r *Router) Len() int { return len(r.sinks) }

func (r *Router) Persist(ctx context.Context, a Artifact) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Persist(ctx, a); err != nil {
			r.logger.Warn("report: persist failed", "run_id", a.RunID, "name", a.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, firstErr)
	}
	return nil
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
