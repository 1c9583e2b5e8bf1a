package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type BlockType string

const (
	BlockTypeParagraph BlockType = "paragraph"
	BlockTypeHeading1  BlockType = "heading_1"
	BlockTypeHeading2  BlockType = "heading_2"
	BlockTypeHeading3  BlockType = "heading_3"
	BlockTypeTodo      BlockType = "todo"
	BlockTypeCode      BlockType = "code"
	BlockTypeQuote     BlockType = "quote"
	BlockTypeImage     BlockType = "image"
	BlockTypeLink      BlockType = "link"
	BlockTypePage      BlockType = "page"
)

// BlockTypes lists the closed block type enumeration in display order.
var BlockTypes = []BlockType{
	BlockTypeParagraph, BlockTypeHeading1, BlockTypeHeading2, BlockTypeHeading3,
	BlockTypeTodo, BlockTypeCode, BlockTypeQuote, BlockTypeImage, BlockTypeLink, BlockTypePage,
}

// Valid reports whether t is a member of the block type enumeration.
func (t BlockType) Valid() bool {
	for _, bt := range BlockTypes {
		if t == bt {
			return true
		}
	}
	return false
}

// IsText reports whether blocks of this type carry text + marks.
func (t BlockType) IsText() bool {
	switch t {
	case BlockTypeParagraph, BlockTypeHeading1, BlockTypeHeading2, BlockTypeHeading3,
		BlockTypeQuote, BlockTypeTodo:
		return true
	}
	return false
}

// Color is a background color token.
type Color string

var colors = map[Color]bool{
	"default": true, "gray": true, "brown": true, "orange": true, "yellow": true,
	"green": true, "blue": true, "purple": true, "pink": true, "red": true,
}

// Valid reports whether c is a known color token.
func (c Color) Valid() bool { return colors[c] }

// Block is an ordered content unit belonging to exactly one page.
type Block struct {
	ID              string    `json:"id"`
	PageID          string    `json:"pageId"`
	Type            BlockType `json:"type"`
	Order           int       `json:"order"`
	Content         Content   `json:"content"`
	BackgroundColor *Color    `json:"backgroundColor"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// blockJSON mirrors Block with a raw content payload so the variant can be
// chosen from Type after the envelope is decoded.
type blockJSON struct {
	ID              string          `json:"id"`
	PageID          string          `json:"pageId"`
	Type            BlockType       `json:"type"`
	Order           int             `json:"order"`
	Content         json.RawMessage `json:"content"`
	BackgroundColor *Color          `json:"backgroundColor"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var raw blockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	content, err := DecodeContent(raw.Type, raw.Content)
	if err != nil {
		return err
	}
	*b = Block{
		ID:              raw.ID,
		PageID:          raw.PageID,
		Type:            raw.Type,
		Order:           raw.Order,
		Content:         content,
		BackgroundColor: raw.BackgroundColor,
		CreatedAt:       raw.CreatedAt,
		UpdatedAt:       raw.UpdatedAt,
	}
	return nil
}

// Validate checks the block type, the content variant and the color token.
func (b *Block) Validate() error {
	if !b.Type.Valid() {
		return fmt.Errorf("%w: unknown block type %q", ErrInvalidReference, b.Type)
	}
	if b.Content == nil {
		return fmt.Errorf("%w: block of type %s has no content", ErrInvalidReference, b.Type)
	}
	if !b.Content.accepts(b.Type) {
		return fmt.Errorf("%w: content does not match block type %s", ErrInvalidReference, b.Type)
	}
	if b.BackgroundColor != nil && !b.BackgroundColor.Valid() {
		return fmt.Errorf("%w: unknown background color %q", ErrValidation, *b.BackgroundColor)
	}
	return b.Content.validate()
}

// RefPageID returns the referenced page id for page-reference blocks.
func (b *Block) RefPageID() (string, bool) {
	if ref, ok := b.Content.(*PageRef); ok && b.Type == BlockTypePage {
		return ref.PageID, true
	}
	return "", false
}

// Clone returns a deep copy of b.
func (b Block) Clone() Block {
	if b.Content != nil {
		b.Content = b.Content.clone()
	}
	if b.BackgroundColor != nil {
		c := *b.BackgroundColor
		b.BackgroundColor = &c
	}
	return b
}

// BlockQuery selects an ordered window of a page's blocks.
type BlockQuery struct {
	PageID       string
	After        *int // only blocks with order strictly greater
	Limit        int  // 0 means no cap
	ExcludeTypes []BlockType
}

// BlockStore is the Block Store Accessor.
type BlockStore interface {
	ListBlocks(ctx context.Context, q BlockQuery) ([]Block, error)
	GetBlock(ctx context.Context, id string) (*Block, error)
	CreateBlock(ctx context.Context, b *Block) error
	UpdateBlock(ctx context.Context, b *Block) error
	DeleteBlock(ctx context.Context, id string) error
	DeleteBlocks(ctx context.Context, ids []string) error
	InsertBlocks(ctx context.Context, blocks []Block) error

	// ApplySnapshot upserts every block and then deletes every block of
	// pageID whose id is not among them, as one batch.
	ApplySnapshot(ctx context.Context, pageID string, blocks []Block) error

	DeleteBlocksByPages(ctx context.Context, pageIDs []string) (int64, error)
	DeletePageRefs(ctx context.Context, parentPageID, refPageID string) (int64, error)
	MaxOrder(ctx context.Context, pageID string) (int, bool, error)
	ForeignBlockIDs(ctx context.Context, pageID string, ids []string) ([]string, error)
	ListDanglingRefs(ctx context.Context, limit int) ([]Block, error)

	// CountImageRefs counts image blocks on any page whose URL is url.
	CountImageRefs(ctx context.Context, url string) (int, error)
}
