package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hazyhaar/perfaudit/perfaudit"
)

type runFlags struct {
	port       int
	policy     string
	categories []string
	skipAudits []string
	thresholds map[string]string
	timeout    time.Duration
	reportsDir string
	headful    bool
	remote     string
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.IntVarP(&f.port, "port", "p", 0, "Chrome remote-debugging port (default from config, 9222)")
	fs.StringVar(&f.policy, "policy", "", "failure policy: tolerant or strict")
	fs.StringSliceVar(&f.categories, "categories", nil, "Lighthouse categories to audit")
	fs.StringSliceVar(&f.skipAudits, "skip-audits", nil, "Lighthouse audits to skip")
	fs.StringToStringVar(&f.thresholds, "threshold", nil, "minimum category score, e.g. performance=50")
	fs.DurationVar(&f.timeout, "timeout", 5*time.Minute, "overall run timeout")
	fs.StringVar(&f.reportsDir, "reports-dir", "", "directory for json/html reports")
	fs.BoolVar(&f.headful, "headful", false, "show the browser window")
	fs.StringVar(&f.remote, "remote", "", "DevTools endpoint of an already running Chrome")
}

// apply overrides the file configuration with the flags that were set.
func (f *runFlags) apply(fs *pflag.FlagSet, cfg *perfaudit.FileConfig) {
	if fs.Changed("reports-dir") {
		cfg.Reports.Dir = f.reportsDir
	}
	if fs.Changed("headful") {
		cfg.Browser.Headful = f.headful
	}
	if fs.Changed("remote") {
		cfg.Browser.Remote = f.remote
	}
}

func (f *runFlags) input(url string) (perfaudit.AuditInput, error) {
	in := perfaudit.AuditInput{
		URL:        url,
		Port:       f.port,
		Categories: f.categories,
		SkipAudits: f.skipAudits,
		Policy:     f.policy,
	}
	if len(f.thresholds) > 0 {
		in.Thresholds = make(map[string]float64, len(f.thresholds))
		for cat, v := range f.thresholds {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return in, fmt.Errorf("--threshold %s=%s: %w", cat, v, err)
			}
			in.Thresholds[cat] = n
		}
	}
	return in, nil
}

func getRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Audit a single URL and print its metrics",
		Example: `
  # Audit with the default configuration.
  perfaudit run https://example.com

  # Fail when the performance score is below 50.
  perfaudit run --policy strict --threshold performance=50 https://example.com`[1:],
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := g.logger()
			cfg, err := g.config()
			if err != nil {
				return fatal(logger, err)
			}
			f.apply(cmd.Flags(), cfg)
			in, err := f.input(args[0])
			if err != nil {
				return fatal(logger, err)
			}

			svc, closeFn, err := perfaudit.Build(cfg, logger)
			if err != nil {
				return fatal(logger, err)
			}
			defer closeFn()

			ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
			defer cancel()

			res, err := svc.Audit(ctx, in)
			if err != nil {
				return fatal(logger, err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	f.register(cmd.Flags())
	return cmd
}
