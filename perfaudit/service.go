package perfaudit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/perfaudit/perfaudit/internal/history"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/lighthouse"
)

// AuditInput is the request accepted by the HTTP and MCP surfaces. Zero
// fields take the configured defaults.
type AuditInput struct {
	URL        string             `json:"url"`
	Port       int                `json:"port,omitempty"`
	Categories []string           `json:"categories,omitempty"`
	SkipAudits []string           `json:"skip_audits,omitempty"`
	Thresholds map[string]float64 `json:"thresholds,omitempty"`
	Policy     string             `json:"policy,omitempty"`
}

// HistoryInput selects past runs.
type HistoryInput struct {
	URL   string `json:"url,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Service exposes an Auditor to remote callers. Runs sharing a debug port
// are serialised; runs on distinct ports proceed in parallel.
type Service struct {
	auditor *Auditor
	store   *history.Store
	logger  *slog.Logger

	mu    sync.Mutex
	ports map[int]chan struct{}
}

// NewService creates a Service. store may be nil, in which case History
// returns an error.
func NewService(a *Auditor, store *history.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		auditor: a,
		store:   store,
		logger:  logger,
		ports:   make(map[int]chan struct{}),
	}
}

// Auditor returns the underlying auditor.
func (s *Service) Auditor() *Auditor { return s.auditor }

// Audit runs one audit, waiting for any run holding the same port.
func (s *Service) Audit(ctx context.Context, in AuditInput) (*Result, error) {
	req, err := s.request(in)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, req.Port)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.auditor.Run(ctx, req)
}

// History lists past runs, newest first.
func (s *Service) History(ctx context.Context, in HistoryInput) ([]history.Run, error) {
	if s.store == nil {
		return nil, errors.New("perfaudit: history disabled")
	}
	return s.store.List(ctx, in.URL, in.Limit)
}

// Stages returns the state transitions recorded for runID.
func (s *Service) Stages(ctx context.Context, runID string) ([]history.Stage, error) {
	if s.store == nil {
		return nil, errors.New("perfaudit: history disabled")
	}
	if runID == "" {
		return nil, fmt.Errorf("%w: run id is required", ErrInvalidRequest)
	}
	return s.store.Stages(ctx, runID)
}

func (s *Service) request(in AuditInput) (lighthouse.Request, error) {
	req := s.auditor.Request(in.URL)
	if in.Port > 0 {
		req.Port = in.Port
	}
	if len(in.Categories) > 0 {
		req.Categories = in.Categories
	}
	if in.SkipAudits != nil {
		req.SkipAudits = in.SkipAudits
	}
	if in.Thresholds != nil {
		req.Thresholds = in.Thresholds
	}
	if in.Policy != "" {
		p, err := lighthouse.ParsePolicy(in.Policy)
		if err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		req.Policy = p
	}
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return req, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return req, nil
}

// acquire takes the per-port slot, or fails when ctx ends first.
func (s *Service) acquire(ctx context.Context, port int) (func(), error) {
	s.mu.Lock()
	slot, ok := s.ports[port]
	if !ok {
		slot = make(chan struct{}, 1)
		s.ports[port] = slot
	}
	s.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	default:
	}

	s.logger.Info("perfaudit: waiting for debug port", "port", port)
	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("perfaudit: port %d busy: %w", port, ctx.Err())
	}
}
