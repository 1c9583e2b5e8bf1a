package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"blocknotes/internal/domain"
	"blocknotes/internal/service"
)

// Server is the MCP server for blocknotes.
// It exposes the assistant action set as tools so AI agents can edit pages
// as the configured owner.
type Server struct {
	mcp   *server.MCPServer
	owner string
	log   zerolog.Logger

	// Services (injected from app layer)
	pages   *service.PageService
	blocks  *service.BlockService
	reader  *service.ReconcileService
	actions *service.AssistantService

	// Active page context (set by read_blocks and create_page)
	mu           sync.Mutex
	activePageID string
}

// Deps holds all dependencies passed from the App layer to the MCP server.
type Deps struct {
	Owner   string
	Logger  zerolog.Logger
	Pages   *service.PageService
	Blocks  *service.BlockService
	Reader  *service.ReconcileService
	Actions *service.AssistantService
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	s := &Server{
		owner:   deps.Owner,
		log:     deps.Logger,
		pages:   deps.Pages,
		blocks:  deps.Blocks,
		reader:  deps.Reader,
		actions: deps.Actions,
	}

	s.mcp = server.NewMCPServer(
		"blocknotes-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerNavigationTools()
	s.registerBlockTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info().Str("owner", s.owner).Msg("starting MCP stdio server")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func (s *Server) setActivePage(pageID string) {
	s.mu.Lock()
	s.activePageID = pageID
	s.mu.Unlock()
}

// resolvePageID returns the pageID from tool args or falls back to activePageID.
func (s *Server) resolvePageID(args map[string]any) (string, error) {
	if pid, ok := args["pageId"].(string); ok && pid != "" {
		return pid, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activePageID != "" {
		return s.activePageID, nil
	}
	return "", fmt.Errorf("%w: no pageId provided and no active page (read or create a page first)", domain.ErrValidation)
}

// getBlockForTool retrieves an owned block named by the blockId argument.
func (s *Server) getBlockForTool(ctx context.Context, args map[string]any) (*domain.Block, error) {
	blockID, ok := args["blockId"].(string)
	if !ok || blockID == "" {
		return nil, fmt.Errorf("%w: blockId is required", domain.ErrValidation)
	}
	return s.blocks.GetBlock(ctx, s.owner, blockID)
}
