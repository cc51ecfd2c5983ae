package perfaudit

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/perfaudit/perfaudit/internal/browser"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/config"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/consent"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/history"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/lighthouse"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/report"
)

// FileConfig is the YAML configuration.
type FileConfig = config.Config

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*FileConfig, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() *FileConfig {
	return config.Default()
}

// Build wires a Service from cfg: Chrome sessions, the lighthouse CLI,
// report sinks, the run history and its stage log. The returned func releases sinks and
// the history store.
func Build(cfg *FileConfig, logger *slog.Logger, opts ...Option) (*Service, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var store *history.Store
	if !cfg.History.Disabled {
		var err error
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("perfaudit: %w", err)
		}
	}

	sinks := []report.Sink{report.NewDir(cfg.Reports.Dir, cfg.Reports.Formats...)}
	if cfg.Reports.Webhook != "" {
		sinks = append(sinks, report.NewWebhook(cfg.Reports.Webhook,
			report.WithWebhookRetries(cfg.Reports.WebhookRetries),
			report.WithWebhookLogger(logger)))
	}
	router := report.NewRouter(logger, sinks...)

	invoker := lighthouse.NewInvoker(lighthouse.Config{
		Runner: lighthouse.NewCLI(cfg.LighthouseCLI(logger)),
		Sink:   router,
		Logger: logger,
	})

	all := []Option{WithLogger(logger)}
	var stages *history.StageLog
	if store != nil {
		stages = history.NewStageLog(store, 0, 0, logger)
		all = append(all,
			WithRecorder(store),
			WithStateHook(func(runID string, s State) { stages.Mark(runID, s.String(), s.Terminal()) }),
		)
	}
	auditor := New(Config{
		Open:           OpenBrowser(browser.NewManager(cfg.BrowserManager(logger))),
		Invoker:        invoker,
		Consent:        consent.NewResolver(cfg.ConsentResolver(logger)),
		ConsentSpec:    cfg.ConsentSpec(),
		ConsentTimeout: cfg.Consent.Timeout,
		Defaults:       cfg.Request(""),
	}, append(all, opts...)...)

	closeFn := func() error {
		errs := []error{router.Close()}
		if store != nil {
			errs = append(errs, stages.Close(), store.Close())
		}
		return errors.Join(errs...)
	}
	return NewService(auditor, store, logger), closeFn, nil
}
