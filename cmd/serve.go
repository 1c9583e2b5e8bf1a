package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"blocknotes/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Serve the HTTP API, public pages and uploaded files. The orphan sweep
runs on its configured schedule and auth tokens are reloaded when the
config file changes. SIGINT or SIGTERM shuts down gracefully.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := load(os.Stderr)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		if len(cfg.Auth.Tokens) == 0 {
			log.Warn().Msg("no auth tokens configured; only public routes are usable")
		}
		return a.Run(ctx)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP tool server on stdin/stdout",
	Long: `Expose page and block tools to an MCP client over stdio, acting as the
owner named by mcp.owner. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := load(os.Stderr)
		if err != nil {
			return err
		}
		return app.ServeMCP(cmd.Context(), cfg, log)
	},
}
