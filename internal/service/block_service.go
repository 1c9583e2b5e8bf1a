package service

import (
	"context"
	"fmt"

	"blocknotes/internal/domain"
	"blocknotes/internal/marks"
)

// ─────────────────────────────────────────────────────────────
// Block Service — single-block edits on top of the sync path
// ─────────────────────────────────────────────────────────────

// ObjectRemover deletes an uploaded object by the URL it was served under.
// Objects that ownerID did not upload, and URLs outside the store, are
// ignored.
type ObjectRemover interface {
	Remove(ctx context.Context, ownerID, url string) error
}

// NewBlock describes a block to insert. A nil AfterBlockID appends.
type NewBlock struct {
	AfterBlockID    *string
	Type            domain.BlockType
	Content         domain.Content
	BackgroundColor *domain.Color
}

// BlockPatch changes parts of a block. Text keeps existing marks aligned
// with the edit; Content replaces the whole payload; Type converts between
// text-bearing types.
type BlockPatch struct {
	Type            *domain.BlockType
	Text            *string
	Checked         *bool
	Content         domain.Content
	BackgroundColor *domain.Color
	ClearBackground bool
}

// FormatAction is apply or remove.
type FormatAction string

const (
	FormatApply  FormatAction = "apply"
	FormatRemove FormatAction = "remove"
)

// FormatRequest styles [Start, End) of a text block. The range is clamped
// to the text.
type FormatRequest struct {
	Action FormatAction
	Mark   domain.MarkType
	Start  int
	End    int
}

type BlockService struct {
	pages   domain.PageStore
	blocks  domain.BlockStore
	sync    *SyncService
	files   ObjectRemover
	emitter EventEmitter
}

func NewBlockService(pages domain.PageStore, blocks domain.BlockStore, sync *SyncService, files ObjectRemover, emitter EventEmitter) *BlockService {
	return &BlockService{pages: pages, blocks: blocks, sync: sync, files: files, emitter: emitter}
}

// GetBlock returns an owned block.
func (s *BlockService) GetBlock(ctx context.Context, ownerID, id string) (*domain.Block, error) {
	b, _, err := ownedBlock(ctx, s.pages, s.blocks, ownerID, id)
	return b, err
}

// CreateBlock inserts a block after AfterBlockID, renumbering the page
// through a save. Page references are created with child pages instead.
func (s *BlockService) CreateBlock(ctx context.Context, ownerID, pageID string, in NewBlock) (*domain.Block, error) {
	if in.Type == domain.BlockTypePage {
		return nil, fmt.Errorf("%w: page blocks are created with their page", domain.ErrValidation)
	}
	if in.Content == nil {
		c, err := domain.NewContent(in.Type)
		if err != nil {
			return nil, err
		}
		in.Content = c
	}
	nb := domain.Block{ID: domain.NewID(), Type: in.Type, Content: in.Content, BackgroundColor: in.BackgroundColor}
	if err := nb.Validate(); err != nil {
		return nil, err
	}

	page, err := ownedPage(ctx, s.pages, ownerID, pageID)
	if err != nil {
		return nil, err
	}
	current, err := s.blocks.ListBlocks(ctx, domain.BlockQuery{PageID: page.ID})
	if err != nil {
		return nil, fmt.Errorf("read page blocks: %w", err)
	}

	at := len(current)
	if in.AfterBlockID != nil {
		after, err := domain.ParseID(*in.AfterBlockID)
		if err != nil {
			return nil, err
		}
		at = -1
		for i, b := range current {
			if b.ID == after {
				at = i + 1
				break
			}
		}
		if at < 0 {
			return nil, fmt.Errorf("block %s on page %s: %w", after, page.ID, domain.ErrNotFound)
		}
	}

	next := make([]domain.Block, 0, len(current)+1)
	next = append(next, current[:at]...)
	next = append(next, nb)
	next = append(next, current[at:]...)

	saved, err := s.sync.Save(ctx, ownerID, page.ID, next)
	if err != nil {
		return nil, err
	}
	for i := range saved {
		if saved[i].ID == nb.ID {
			return &saved[i], nil
		}
	}
	return nil, fmt.Errorf("created block %s missing after save", nb.ID)
}

// UpdateBlock applies patch to an owned block.
func (s *BlockService) UpdateBlock(ctx context.Context, ownerID, id string, patch BlockPatch) (*domain.Block, error) {
	b, _, err := ownedBlock(ctx, s.pages, s.blocks, ownerID, id)
	if err != nil {
		return nil, err
	}

	if patch.Type != nil && *patch.Type != b.Type {
		if err := convertType(b, *patch.Type); err != nil {
			return nil, err
		}
	}
	if patch.Content != nil {
		b.Content = patch.Content
	}
	if patch.Text != nil {
		text, old, ok := domain.TextOf(b.Content)
		if !ok {
			return nil, fmt.Errorf("%w: %s blocks have no text", domain.ErrValidation, b.Type)
		}
		adjusted := marks.AdjustForChange(old, text, *patch.Text)
		domain.SetText(b.Content, *patch.Text, marks.Clamp(adjusted, marks.Len(*patch.Text)))
	}
	if patch.Checked != nil {
		todo, ok := b.Content.(*domain.TodoContent)
		if !ok {
			return nil, fmt.Errorf("%w: only todo blocks can be checked", domain.ErrValidation)
		}
		todo.Checked = *patch.Checked
	}
	if patch.ClearBackground {
		b.BackgroundColor = nil
	} else if patch.BackgroundColor != nil {
		b.BackgroundColor = patch.BackgroundColor
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.Type == domain.BlockTypePage {
		if err := canonicalizeRef(b); err != nil {
			return nil, err
		}
	}
	if err := s.blocks.UpdateBlock(ctx, b); err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, EventBlockChanged, map[string]any{"blockId": b.ID, "pageId": b.PageID})
	return b, nil
}

// convertType switches b between text-bearing types, keeping text and marks.
func convertType(b *domain.Block, to domain.BlockType) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown block type %q", domain.ErrInvalidReference, to)
	}
	text, ms, ok := domain.TextOf(b.Content)
	if !ok || !to.IsText() {
		return fmt.Errorf("%w: cannot convert %s to %s", domain.ErrValidation, b.Type, to)
	}
	c, err := domain.NewContent(to)
	if err != nil {
		return err
	}
	domain.SetText(c, text, ms)
	b.Type = to
	b.Content = c
	return nil
}

// DeleteBlock removes an owned block. An image block also releases its
// uploaded object once no block on any page refers to it.
func (s *BlockService) DeleteBlock(ctx context.Context, ownerID, id string) error {
	b, _, err := ownedBlock(ctx, s.pages, s.blocks, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.blocks.DeleteBlock(ctx, b.ID); err != nil {
		return err
	}
	if img, ok := b.Content.(*domain.ImageContent); ok && img.URL != "" {
		s.releaseImage(ctx, ownerID, img.URL)
	}
	s.emitter.Emit(ctx, EventBlockChanged, map[string]any{"blockId": b.ID, "pageId": b.PageID, "deleted": true})
	return nil
}

// releaseImage removes url from the object store when ownerID uploaded it
// and no block refers to it any more. Failures are left to the sweep.
func (s *BlockService) releaseImage(ctx context.Context, ownerID, url string) {
	if s.files == nil {
		return
	}
	n, err := s.blocks.CountImageRefs(ctx, url)
	if err != nil || n > 0 {
		return
	}
	_ = s.files.Remove(ctx, ownerID, url)
}

// FormatBlock applies or removes a mark on an owned text block. A range
// that is empty after clamping leaves the block unchanged.
func (s *BlockService) FormatBlock(ctx context.Context, ownerID, id string, req FormatRequest) (*domain.Block, error) {
	if !req.Mark.Valid() {
		return nil, fmt.Errorf("%w: unknown mark type %q", domain.ErrValidation, req.Mark)
	}
	if req.Action != FormatApply && req.Action != FormatRemove {
		return nil, fmt.Errorf("%w: unknown format action %q", domain.ErrValidation, req.Action)
	}

	b, _, err := ownedBlock(ctx, s.pages, s.blocks, ownerID, id)
	if err != nil {
		return nil, err
	}
	text, current, ok := domain.TextOf(b.Content)
	if !ok {
		return nil, fmt.Errorf("%w: %s blocks cannot be formatted", domain.ErrValidation, b.Type)
	}

	n := marks.Len(text)
	start := max(0, min(req.Start, n))
	end := max(0, min(req.End, n))
	if start >= end {
		return b, nil
	}

	var updated []domain.Mark
	if req.Action == FormatApply {
		updated = marks.Apply(current, req.Mark, start, end)
	} else {
		updated = marks.Remove(current, req.Mark, start, end)
	}
	domain.SetText(b.Content, text, updated)

	if err := s.blocks.UpdateBlock(ctx, b); err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, EventBlockChanged, map[string]any{"blockId": b.ID, "pageId": b.PageID})
	return b, nil
}
