package service

import (
	"context"
	"fmt"

	"blocknotes/internal/domain"
)

// MaxImportBlocks caps how many blocks one import clones.
const MaxImportBlocks = 50

// ImportResult reports an import.
type ImportResult struct {
	ImportedCount int            `json:"importedCount"`
	Blocks        []domain.Block `json:"blocks"`
	UpdatedTitle  *string        `json:"updatedTitle"`
}

// ImportService clones the content of a public page into an owned page.
type ImportService struct {
	pages   domain.PageStore
	blocks  domain.BlockStore
	emitter EventEmitter
}

func NewImportService(pages domain.PageStore, blocks domain.BlockStore, emitter EventEmitter) *ImportService {
	return &ImportService{pages: pages, blocks: blocks, emitter: emitter}
}

// Import appends copies of up to MaxImportBlocks of the source page's
// blocks after the target's last block. Page references are not copied.
// Existing target blocks keep their order. A target still titled with the
// default takes the source title.
func (s *ImportService) Import(ctx context.Context, ownerID, targetPageID, sourcePageID string) (*ImportResult, error) {
	targetID, err := domain.ParseID(targetPageID)
	if err != nil {
		return nil, err
	}
	sourceID, err := domain.ParseID(sourcePageID)
	if err != nil {
		return nil, err
	}
	if targetID == sourceID {
		return nil, fmt.Errorf("%w: a page cannot import itself", domain.ErrValidation)
	}

	target, err := ownedPage(ctx, s.pages, ownerID, targetID)
	if err != nil {
		return nil, err
	}
	source, err := publicPage(ctx, s.pages, sourceID)
	if err != nil {
		return nil, err
	}

	src, err := s.blocks.ListBlocks(ctx, domain.BlockQuery{
		PageID:       source.ID,
		Limit:        MaxImportBlocks,
		ExcludeTypes: []domain.BlockType{domain.BlockTypePage},
	})
	if err != nil {
		return nil, fmt.Errorf("read source blocks: %w", err)
	}
	if len(src) == 0 {
		return nil, fmt.Errorf("%w: source page has no blocks to import", domain.ErrValidation)
	}

	next := 0
	if maxOrder, ok, err := s.blocks.MaxOrder(ctx, target.ID); err != nil {
		return nil, fmt.Errorf("read target order: %w", err)
	} else if ok {
		next = maxOrder + 1
	}

	clones := make([]domain.Block, len(src))
	for i, b := range src {
		c := b.Clone()
		c.ID = domain.NewID()
		c.PageID = target.ID
		c.Order = next + i
		clones[i] = c
	}
	if err := s.blocks.InsertBlocks(ctx, clones); err != nil {
		return nil, fmt.Errorf("insert imported blocks: %w", err)
	}

	res := &ImportResult{ImportedCount: len(clones), Blocks: clones}
	if target.Title == domain.DefaultPageTitle && source.Title != domain.DefaultPageTitle {
		target.Title = source.Title
		if err := s.pages.UpdatePage(ctx, target); err != nil {
			return nil, fmt.Errorf("copy source title: %w", err)
		}
		res.UpdatedTitle = &target.Title
	}

	s.emitter.Emit(ctx, EventPageImported, map[string]any{
		"pageId": target.ID, "sourcePageId": source.ID, "count": len(clones),
	})
	return res, nil
}
