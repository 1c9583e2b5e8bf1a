// Package assistant talks to the generative assistant that proposes edits
// to a page. Its output is untrusted: every Action is replayed through the
// ordinary write paths by the caller.
package assistant

import (
	"context"
	"encoding/json"

	"blocknotes/internal/domain"
)

type ActionType string

const (
	ActionInsertBlocks ActionType = "insert_blocks"
	ActionUpdateBlock  ActionType = "update_block"
	ActionDeleteBlock  ActionType = "delete_block"
	ActionCreatePage   ActionType = "create_page"
)

// BlockInput is a block proposed by the assistant. Content is decoded
// against Type by the caller.
type BlockInput struct {
	Type            domain.BlockType `json:"type"`
	Content         json.RawMessage  `json:"content,omitempty"`
	BackgroundColor *domain.Color    `json:"backgroundColor,omitempty"`
}

// Action is one high-level edit. Which fields are used depends on Type.
type Action struct {
	Type ActionType `json:"type"`

	// insert_blocks
	AfterBlockID *string      `json:"afterBlockId,omitempty"`
	Blocks       []BlockInput `json:"blocks,omitempty"`

	// update_block, delete_block
	BlockID string          `json:"blockId,omitempty"`
	Text    *string         `json:"text,omitempty"`
	Checked *bool           `json:"checked,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`

	// create_page
	Title string `json:"title,omitempty"`
}

// Request is the page snapshot and instruction sent to the assistant.
type Request struct {
	PageID      string         `json:"pageId"`
	Title       string         `json:"title"`
	Blocks      []domain.Block `json:"blocks"`
	Instruction string         `json:"instruction"`
}

// Assistant proposes actions for a request.
type Assistant interface {
	Propose(ctx context.Context, req Request) ([]Action, error)
}
