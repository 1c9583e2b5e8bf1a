package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"blocknotes/internal/domain"
	"blocknotes/internal/service"
)

const (
	pagesURI        = "blocknotes://pages"
	pageBlocksURI   = "blocknotes://page/{pageId}/blocks"
	pageBlocksStart = "blocknotes://page/"
)

func (s *Server) registerResources() {
	// ── blocknotes://pages ─────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		pagesURI,
		"Root Pages",
		mcp.WithMIMEType("application/json"),
	), s.handlePagesResource)

	// ── blocknotes://page/{pageId}/blocks ──────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			pageBlocksURI,
			"Blocks on a Page",
		),
		s.handlePageBlocksResource,
	)
}

type pageSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	IsPublic bool   `json:"isPublic"`
}

func (s *Server) handlePagesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	pages, err := s.pages.ListRootPages(ctx, s.owner)
	if err != nil {
		return nil, err
	}

	summaries := make([]pageSummary, len(pages))
	for i, p := range pages {
		summaries[i] = pageSummary{ID: p.ID, Title: p.Title, IsPublic: p.IsPublic}
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      pagesURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handlePageBlocksResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	pageID := extractPageIDFromURI(uri)
	if pageID == "" {
		return nil, fmt.Errorf("could not extract pageId from URI: %s", uri)
	}

	res, err := s.reader.ReadBlocks(ctx, service.ReadRequest{
		View:    domain.ViewOwner,
		OwnerID: s.owner,
		PageID:  pageID,
	})
	if err != nil {
		return nil, err
	}

	data, _ := json.MarshalIndent(res.Blocks, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// extractPageIDFromURI extracts the page ID from "blocknotes://page/{id}/blocks".
func extractPageIDFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, pageBlocksStart)
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, "/blocks")
	if !ok || id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
