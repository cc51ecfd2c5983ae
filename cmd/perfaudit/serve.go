package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/perfaudit/perfaudit"
	"github.com/hazyhaar/perfaudit/shield"
)

func getServeCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the audit HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := g.logger()
			cfg, err := g.config()
			if err != nil {
				return fatal(logger, err)
			}
			svc, closeFn, err := perfaudit.Build(cfg, logger)
			if err != nil {
				return fatal(logger, err)
			}
			defer closeFn()

			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			r := chi.NewRouter()
			for _, mw := range shield.APIStack(cfg.Shield(), logger) {
				r.Use(mw)
			}
			svc.RegisterHTTP(r)

			// Audits take minutes: no write timeout.
			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("perfaudit: server starting", "addr", cfg.Server.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fatal(logger, err)
				}
			case <-cmd.Context().Done():
			}

			logger.Info("perfaudit: shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("perfaudit: shutdown", "error", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address (overrides server.addr)")
	return cmd
}
