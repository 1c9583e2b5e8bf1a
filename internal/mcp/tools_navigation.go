package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerNavigationTools() {
	// ── list_pages ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List root pages, or the child pages of parentId"),
		mcp.WithString("parentId",
			mcp.Description("ID of the parent page (optional, lists root pages if omitted)"),
		),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListPages)

	// ── create_page ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_page",
		mcp.WithDescription("Create a page. A child page is linked from the end of its parent. The new page becomes the active page."),
		mcp.WithString("title",
			mcp.Description("Title of the new page (blank means Untitled)"),
		),
		mcp.WithString("parentId",
			mcp.Description("ID of the parent page (optional)"),
		),
	), s.handleCreatePage)
}

func (s *Server) handleListPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	parentID := req.GetString("parentId", "")
	if parentID == "" {
		pages, err := s.pages.ListRootPages(ctx, s.owner)
		if err != nil {
			return nil, fmt.Errorf("list pages: %w", err)
		}
		return jsonResult(pages)
	}
	pages, err := s.pages.ListChildPages(ctx, s.owner, parentID)
	if err != nil {
		return nil, fmt.Errorf("list child pages: %w", err)
	}
	return jsonResult(pages)
}

func (s *Server) handleCreatePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	var parent *string
	if p := req.GetString("parentId", ""); p != "" {
		parent = &p
	}
	page, err := s.pages.CreatePage(ctx, s.owner, title, parent)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	s.setActivePage(page.ID)
	return jsonResult(page)
}
