// Package report persists audit artefacts. Persistence is a side channel
// of the run: failures are reported to the caller for logging but never
// change the run outcome.
package report

import (
	"context"
	"errors"
	"time"
)

// ErrPersistence wraps every error returned by a Router.
var ErrPersistence = errors.New("report: persistence failed")

// Format names accepted by the Dir sink.
const (
	FormatJSON = "json"
	FormatHTML = "html"
)

// Artifact is the collaborator output of one run.
type Artifact struct {
	RunID     string
	Name      string // deterministic per run, e.g. "lighthouse-<run id>"
	URL       string
	CreatedAt time.Time
	JSON      []byte
	HTML      []byte
}

// Sink is an output backend for artefacts.
type Sink interface {
	Persist(ctx context.Context, a Artifact) error
	Close() error
}

// PersistFunc is called for each artefact.
type PersistFunc func(ctx context.Context, a Artifact) error

// Callback delivers artefacts to an in-process function.
type Callback struct {
	fn PersistFunc
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn PersistFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Persist(ctx context.Context, a Artifact) error {
	if c.fn != nil {
		return c.fn(ctx, a)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
