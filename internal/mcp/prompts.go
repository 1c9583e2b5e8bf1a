package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("outline_page",
		mcp.WithPromptDescription("Draft a structured page about a topic"),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("Topic or title of the page"),
			mcp.RequiredArgument(),
		),
	), s.handleOutlinePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("tidy_page",
		mcp.WithPromptDescription("Clean up an existing page without losing content"),
		mcp.WithArgument("pageId",
			mcp.ArgumentDescription("ID of the page to tidy"),
			mcp.RequiredArgument(),
		),
	), s.handleTidyPrompt)
}

func (s *Server) handleOutlinePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := req.Params.Arguments["topic"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Outline a page about: %s", topic),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Write a page about "%s". Follow these steps:

1. Use create_page with the title "%s"
2. Use insert_blocks to add a heading_1 block and a short introductory paragraph
3. Add one heading_2 block per section, each followed by paragraphs or todo blocks
4. For any section that deserves its own page, use create_page with parentId set to the new page

Keep blocks short: one idea per paragraph.`, topic, topic),
				},
			},
		},
	}, nil
}

func (s *Server) handleTidyPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	pageID := req.Params.Arguments["pageId"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Tidy page %s", pageID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Tidy page %s. Follow these steps:

1. Use read_blocks to read the whole page
2. Fix spelling and grammar with update_block, changing only the text
3. Merge duplicated paragraphs by updating one and deleting the other with delete_block
4. Never delete page blocks: they link to child pages`, pageID),
				},
			},
		},
	}, nil
}
