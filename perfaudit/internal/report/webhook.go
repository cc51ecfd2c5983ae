package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/perfaudit/perfaudit/internal/metrics"
)

// Webhook POSTs a JSON summary of each artefact (not the full report).
type Webhook struct {
	url        string
	client     *http.Client
	maxRetries int
	logger     *slog.Logger
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the number of retries. Default: 0.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// WithWebhookClient sets the HTTP client. Default timeout: 10s.
func WithWebhookClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// NewWebhook creates a Webhook sink targeting url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Summary is the webhook payload.
type Summary struct {
	RunID      string             `json:"run_id"`
	Name       string             `json:"name"`
	URL        string             `json:"url"`
	CreatedAt  time.Time          `json:"created_at"`
	Categories map[string]float64 `json:"categories"`
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (w *Webhook) Persist(ctx context.Context, a Artifact) error {
	body, err := json.Marshal(envelope{Type: "audit_report", Data: Summary{
		RunID:      a.RunID,
		Name:       a.Name,
		URL:        a.URL,
		CreatedAt:  a.CreatedAt,
		Categories: metrics.CategoryScores(a.JSON),
	}})
	if err != nil {
		return fmt.Errorf("report: webhook: marshal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("report: webhook: new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = err
			w.logger.Warn("report: webhook request failed", "attempt", attempt+1, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("status %d", resp.StatusCode)
		w.logger.Warn("report: webhook bad status", "attempt", attempt+1, "status", resp.StatusCode)
	}
	return fmt.Errorf("report: webhook: %w", lastErr)
}

func (w *Webhook) Close() error { return nil }
