// Command perfaudit audits web page performance with Lighthouse in a
// headless Chrome.
//
// Usage:
//
//	perfaudit run https://example.com              # single audit, metrics as JSON
//	perfaudit serve -config perfaudit.yaml         # HTTP API
//	perfaudit mcp                                  # MCP tools over stdio
//	perfaudit history https://example.com          # past runs
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/perfaudit/perfaudit"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "perfaudit",
		Short:         "Audit web page performance with Lighthouse",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to perfaudit.yaml config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		getRunCmd(g),
		getServeCmd(g),
		getMCPCmd(g),
		getHistoryCmd(g),
	)
	return root
}

func (g *globalFlags) logger() *slog.Logger {
	var level slog.Level
	switch g.logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (g *globalFlags) config() (*perfaudit.FileConfig, error) {
	if g.configPath == "" {
		return perfaudit.DefaultConfig(), nil
	}
	cfg, err := perfaudit.LoadConfigFile(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// fatal logs err and returns it so cobra exits non-zero.
func fatal(logger *slog.Logger, err error) error {
	logger.Error("perfaudit: fatal", "error", err)
	return err
}
