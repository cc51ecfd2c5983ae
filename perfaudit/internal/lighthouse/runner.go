package lighthouse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Input is what the collaborator needs to audit the live page: it
// attaches to the session browser through the debug port.
type Input struct {
	URL            string
	Host           string // "" = local browser
	Port           int
	Categories     []string
	SkipAudits     []string
	MaxWaitForLoad time.Duration
	Name           string
}

// Report is the raw collaborator output: the LHR document and its HTML
// rendering.
type Report struct {
	JSON []byte
	HTML []byte
}

// Runner is the audit collaborator. A Runner may return a partial report
// together with an error.
type Runner interface {
	Run(ctx context.Context, in Input) (*Report, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, in Input) (*Report, error)

func (f RunnerFunc) Run(ctx context.Context, in Input) (*Report, error) { return f(ctx, in) }

// CLIConfig configures the lighthouse command-line runner.
type CLIConfig struct {
	// Bin is the lighthouse executable. Default: "lighthouse".
	Bin string
	// Flags are appended to every invocation.
	Flags []string
	// WorkDir is the parent of per-run scratch dirs. Default: os.TempDir().
	WorkDir string
	Logger  *slog.Logger
}

// CLI runs the lighthouse Node CLI against an existing Chrome (--port).
type CLI struct {
	cfg CLIConfig
}

// NewCLI creates a CLI runner.
func NewCLI(cfg CLIConfig) *CLI {
	if cfg.Bin == "" {
		cfg.Bin = "lighthouse"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CLI{cfg: cfg}
}

// Args returns the command line for in, writing outputs under outBase.
func (c *CLI) Args(in Input, outBase string) []string {
	args := []string{
		in.URL,
		"--port=" + strconv.Itoa(in.Port),
		"--output=json",
		"--output=html",
		"--output-path=" + outBase,
		// Keep cookies set while dismissing the consent banner.
		"--disable-storage-reset",
		"--quiet",
	}
	if in.Host != "" {
		args = append(args, "--hostname="+in.Host)
	}
	if len(in.Categories) > 0 {
		args = append(args, "--only-categories="+strings.Join(in.Categories, ","))
	}
	if len(in.SkipAudits) > 0 {
		args = append(args, "--skip-audits="+strings.Join(in.SkipAudits, ","))
	}
	if in.MaxWaitForLoad > 0 {
		args = append(args, "--max-wait-for-load="+strconv.FormatInt(in.MaxWaitForLoad.Milliseconds(), 10))
	}
	return append(args, c.cfg.Flags...)
}

func (c *CLI) Run(ctx context.Context, in Input) (*Report, error) {
	dir, err := os.MkdirTemp(c.cfg.WorkDir, "lighthouse-*")
	if err != nil {
		return nil, fmt.Errorf("lighthouse: scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	name := in.Name
	if name == "" {
		name = "report"
	}
	base := filepath.Join(dir, name)

	cmd := exec.CommandContext(ctx, c.cfg.Bin, c.Args(in, base)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	c.cfg.Logger.Debug("lighthouse: cli finished", "url", in.URL, "port", in.Port,
		"duration", time.Since(start), "error", runErr)

	rep := &Report{}
	var readErr error
	if rep.JSON, readErr = os.ReadFile(base + ".report.json"); readErr != nil {
		rep.JSON = nil
	}
	if html, err := os.ReadFile(base + ".report.html"); err == nil {
		rep.HTML = html
	}

	if runErr != nil {
		err := fmt.Errorf("lighthouse: %s: %w%s", c.cfg.Bin, runErr, stderrTail(stderr.Bytes()))
		if rep.JSON == nil {
			return nil, err
		}
		return rep, err
	}
	if readErr != nil {
		return nil, fmt.Errorf("lighthouse: read json report: %w", readErr)
	}
	return rep, nil
}

// stderrTail returns the last line of stderr as an error suffix.
func stderrTail(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return ""
	}
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		b = b[i+1:]
	}
	const max = 300
	if len(b) > max {
		b = b[len(b)-max:]
	}
	return ": " + string(b)
}

// IsNotInstalled reports whether err means the lighthouse binary was not found.
func IsNotInstalled(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}
