package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Dir writes artefacts as <dir>/<name>.<format>.
type Dir struct {
	dir     string
	formats []string
}

// NewDir creates a Dir sink. Empty formats means json and html.
func NewDir(dir string, formats ...string) *Dir {
	if len(formats) == 0 {
		formats = []string{FormatJSON, FormatHTML}
	}
	return &Dir{dir: dir, formats: formats}
}

// Paths returns the files Persist writes for a.
func (d *Dir) Paths(a Artifact) []string {
	out := make([]string, 0, len(d.formats))
	for _, f := range d.formats {
		out = append(out, filepath.Join(d.dir, a.Name+"."+f))
	}
	return out
}

func (d *Dir) Persist(ctx context.Context, a Artifact) error {
	if a.Name == "" {
		return fmt.Errorf("report: dir: artifact has no name")
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("report: dir: mkdir: %w", err)
	}

	for _, f := range d.formats {
		if err := ctx.Err(); err != nil {
			return err
		}
		var data []byte
		switch f {
		case FormatJSON:
			data = a.JSON
		case FormatHTML:
			data = a.HTML
		default:
			return fmt.Errorf("report: dir: unknown format %q", f)
		}
		if len(data) == 0 {
			return fmt.Errorf("report: dir: no %s output for %s", f, a.Name)
		}
		if err := writeFile(filepath.Join(d.dir, a.Name+"."+f), data); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dir) Close() error { return nil }

// writeFile replaces path atomically so a reader never sees half a report.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("report: dir: create: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("report: dir: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("report: dir: close: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("report: dir: chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("report: dir: rename: %w", err)
	}
	return nil
}
