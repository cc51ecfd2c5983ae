package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/perfaudit/perfaudit"
)

var version = "dev"

func getMCPCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve perfaudit_run and perfaudit_history as MCP tools over stdio",
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

			srv := mcp.NewServer(&mcp.Implementation{Name: "perfaudit", Version: version}, nil)
			svc.RegisterMCP(srv)

			logger.Info("perfaudit: mcp serving on stdio")
			if err := srv.Run(cmd.Context(), &mcp.StdioTransport{}); err != nil && cmd.Context().Err() == nil {
				return fatal(logger, err)
			}
			return nil
		},
	}
}
