package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"blocknotes/internal/assistant"
	"blocknotes/internal/domain"
	"blocknotes/internal/service"
)

func (s *Server) registerBlockTools() {
	// ── read_blocks ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("read_blocks",
		mcp.WithDescription("Read the blocks of a page in order. The page becomes the active page."),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of blocks (optional, 0 reads the whole page)")),
		mcp.WithNumber("cursor", mcp.Description("Order of the last block already read (optional)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleReadBlocks)

	// ── insert_blocks ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("insert_blocks",
		mcp.WithDescription("Insert blocks after afterBlockId, or append them to the page. "+
			"Block types: paragraph, heading_1, heading_2, heading_3, todo, code, quote, image, link. "+
			"Child pages are created with create_page."),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("afterBlockId", mcp.Description("Insert after this block (optional, appends if omitted)")),
		mcp.WithString("blocks",
			mcp.Description(`JSON array of blocks [{"type":"paragraph","content":{"text":"..."}}, ...]`),
			mcp.Required(),
		),
	), s.handleInsertBlocks)

	// ── update_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_block",
		mcp.WithDescription("Update a block. Setting text keeps existing formatting aligned with the edit."),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("text", mcp.Description("New text of a text block (optional)")),
		mcp.WithBoolean("checked", mcp.Description("Checked state of a todo block (optional)")),
		mcp.WithString("content", mcp.Description("JSON content replacing the whole payload (optional)")),
	), s.handleUpdateBlock)

	// ── delete_block (destructive) ─────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_block",
		mcp.WithDescription("Delete a block"),
		mcp.WithString("blockId", mcp.Description("Block ID to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteBlock)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleReadBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	pageID, err := s.resolvePageID(args)
	if err != nil {
		return nil, err
	}

	read := service.ReadRequest{
		View:    domain.ViewOwner,
		OwnerID: s.owner,
		PageID:  pageID,
		Limit:   req.GetInt("limit", 0),
	}
	if c, ok := args["cursor"].(float64); ok {
		cursor := int(c)
		read.Cursor = &cursor
	}
	res, err := s.reader.ReadBlocks(ctx, read)
	if err != nil {
		return nil, fmt.Errorf("read blocks: %w", err)
	}
	s.setActivePage(pageID)
	return jsonResult(res)
}

func (s *Server) handleInsertBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	pageID, err := s.resolvePageID(args)
	if err != nil {
		return nil, err
	}

	var blocks []assistant.BlockInput
	if err := parseJSON("blocks", req.GetString("blocks", ""), &blocks); err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: blocks must not be empty", domain.ErrValidation)
	}

	action := assistant.Action{Type: assistant.ActionInsertBlocks, Blocks: blocks}
	if after := req.GetString("afterBlockId", ""); after != "" {
		action.AfterBlockID = &after
	}
	n, err := s.actions.Apply(ctx, s.owner, pageID, action)
	if err != nil {
		return nil, fmt.Errorf("insert blocks (%d of %d inserted): %w", n, len(blocks), err)
	}
	return textResult(fmt.Sprintf("Inserted %d blocks on page %s", n, pageID)), nil
}

func (s *Server) handleUpdateBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	block, err := s.getBlockForTool(ctx, args)
	if err != nil {
		return nil, err
	}

	action := assistant.Action{Type: assistant.ActionUpdateBlock, BlockID: block.ID}
	if text, ok := args["text"].(string); ok {
		action.Text = &text
	}
	if checked, ok := args["checked"].(bool); ok {
		action.Checked = &checked
	}
	if content := req.GetString("content", ""); content != "" {
		raw, err := rawJSON("content", content)
		if err != nil {
			return nil, err
		}
		action.Content = raw
	}

	if _, err := s.actions.Apply(ctx, s.owner, block.PageID, action); err != nil {
		return nil, fmt.Errorf("update block: %w", err)
	}
	updated, err := s.blocks.GetBlock(ctx, s.owner, block.ID)
	if err != nil {
		return nil, err
	}
	return jsonResult(updated)
}

func (s *Server) handleDeleteBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	block, err := s.getBlockForTool(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	if err := s.blocks.DeleteBlock(ctx, s.owner, block.ID); err != nil {
		return nil, fmt.Errorf("delete block: %w", err)
	}
	return textResult(fmt.Sprintf("Block %s deleted", block.ID)), nil
}
