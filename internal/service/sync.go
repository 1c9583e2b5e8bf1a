package service

import (
	"context"
	"fmt"
	"time"

	"blocknotes/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Sync Service — full-replace save of a page's block list
// ─────────────────────────────────────────────────────────────

// SyncService makes the stored block set of a page equal to a snapshot.
// Saves are last-writer-wins: there is no version check, and two
// concurrent saves of one page race.
type SyncService struct {
	pages   domain.PageStore
	blocks  domain.BlockStore
	reader  *ReconcileService
	emitter EventEmitter
}

func NewSyncService(pages domain.PageStore, blocks domain.BlockStore, reader *ReconcileService, emitter EventEmitter) *SyncService {
	return &SyncService{pages: pages, blocks: blocks, reader: reader, emitter: emitter}
}

// Save replaces the blocks of pageID with snapshot and returns the stored
// result. Order is taken from the position in snapshot; any order the
// client sent is ignored. Every block is validated before anything is
// written. An empty snapshot clears the page.
func (s *SyncService) Save(ctx context.Context, ownerID, pageID string, snapshot []domain.Block) ([]domain.Block, error) {
	page, err := ownedPage(ctx, s.pages, ownerID, pageID)
	if err != nil {
		return nil, err
	}

	prepared, err := s.prepare(ctx, page.ID, snapshot)
	if err != nil {
		return nil, err
	}
	if err := s.blocks.ApplySnapshot(ctx, page.ID, prepared); err != nil {
		return nil, fmt.Errorf("save blocks: %w", err)
	}
	s.emitter.Emit(ctx, EventBlocksSaved, map[string]any{"pageId": page.ID, "count": len(prepared)})

	saved, err := s.reader.ReadBlocks(ctx, ReadRequest{View: domain.ViewOwner, OwnerID: ownerID, PageID: page.ID})
	if err != nil {
		return nil, err
	}
	return saved.Blocks, nil
}

// prepare validates the snapshot and resolves ids. Valid ids are kept in
// canonical form; missing, malformed and repeated ids, and ids that belong
// to a block of another page, are replaced with fresh ones.
func (s *SyncService) prepare(ctx context.Context, pageID string, snapshot []domain.Block) ([]domain.Block, error) {
	prepared := make([]domain.Block, len(snapshot))
	seen := make(map[string]bool, len(snapshot))
	var clientIDs []string

	for i, in := range snapshot {
		b := in.Clone()
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		if err := canonicalizeRef(&b); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}

		if id, err := domain.ParseID(b.ID); err == nil && !seen[id] {
			b.ID = id
			clientIDs = append(clientIDs, id)
		} else {
			b.ID = domain.NewID()
		}
		seen[b.ID] = true

		b.PageID = pageID
		b.Order = i
		b.CreatedAt, b.UpdatedAt = time.Time{}, time.Time{}
		prepared[i] = b
	}

	foreign, err := s.blocks.ForeignBlockIDs(ctx, pageID, clientIDs)
	if err != nil {
		return nil, fmt.Errorf("check block ids: %w", err)
	}
	if len(foreign) > 0 {
		taken := make(map[string]bool, len(foreign))
		for _, id := range foreign {
			taken[id] = true
		}
		for i := range prepared {
			if taken[prepared[i].ID] {
				prepared[i].ID = domain.NewID()
			}
		}
	}
	return prepared, nil
}

// canonicalizeRef rewrites the target id of a page reference into its
// canonical form. The cached title is kept as sent; reads refresh it.
func canonicalizeRef(b *domain.Block) error {
	ref, ok := b.Content.(*domain.PageRef)
	if !ok {
		return nil
	}
	id, err := domain.ParseID(ref.PageID)
	if err != nil {
		return err
	}
	ref.PageID = id
	return nil
}
