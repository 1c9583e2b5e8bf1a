package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"blocknotes/internal/config"
	mcpserver "blocknotes/internal/mcp"
)

// ServeMCP runs the tool server on stdin/stdout as cfg.MCP.Owner. The
// store and services are the same ones the HTTP server uses; no listener
// or maintenance job is started. log must not write to stdout.
func ServeMCP(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.MCP.Owner == "" {
		return errors.New("mcp: owner is not configured (mcp.owner or BLOCKDOC_MCP_OWNER)")
	}

	a, err := New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open app: %w", err)
	}
	defer func() {
		if err := a.stores.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("close store")
		}
	}()

	srv := mcpserver.New(mcpserver.Deps{
		Owner:   cfg.MCP.Owner,
		Logger:  log,
		Pages:   a.pages,
		Blocks:  a.blocks,
		Reader:  a.reader,
		Actions: a.assistant,
	})
	return srv.ServeStdio()
}
