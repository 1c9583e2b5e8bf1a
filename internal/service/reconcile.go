package service

import (
	"context"
	"fmt"

	"blocknotes/internal/domain"
)

// DefaultReadLimit is the window size when a read does not name one.
const DefaultReadLimit = 20

// ─────────────────────────────────────────────────────────────
// Reconcile Service — every block read goes through here
// ─────────────────────────────────────────────────────────────

// ReadRequest selects a window of a page's blocks. Limit 0 reads the whole
// page. Cursor is the order of the last block already seen.
type ReadRequest struct {
	View    domain.View
	OwnerID string
	PageID  string
	Limit   int
	Cursor  *int
}

// ReconcileService reads blocks and reconciles page references against the
// live page tree.
type ReconcileService struct {
	pages   domain.PageStore
	blocks  domain.BlockStore
	emitter EventEmitter
}

func NewReconcileService(pages domain.PageStore, blocks domain.BlockStore, emitter EventEmitter) *ReconcileService {
	return &ReconcileService{pages: pages, blocks: blocks, emitter: emitter}
}

// ReadBlocks returns one window of blocks.
//
// The window is fixed before any filtering, so NextCursor is the order of
// the last stored block in the window and paging never stalls on a window
// made entirely of hidden references. NextCursor is nil only when the
// window is empty.
func (s *ReconcileService) ReadBlocks(ctx context.Context, req ReadRequest) (*domain.BlockPage, error) {
	if req.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", domain.ErrValidation)
	}

	var (
		page *domain.Page
		err  error
	)
	if req.View == domain.ViewPublic {
		page, err = publicPage(ctx, s.pages, req.PageID)
	} else {
		page, err = ownedPage(ctx, s.pages, req.OwnerID, req.PageID)
	}
	if err != nil {
		return nil, err
	}

	q := domain.BlockQuery{PageID: page.ID, After: req.Cursor}
	if req.Limit > 0 {
		q.Limit = req.Limit + 1
	}
	window, err := s.blocks.ListBlocks(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("read blocks: %w", err)
	}

	out := &domain.BlockPage{Blocks: []domain.Block{}}
	if req.Limit > 0 && len(window) > req.Limit {
		window = window[:req.Limit]
		out.HasMore = true
	}
	if len(window) > 0 {
		last := window[len(window)-1].Order
		out.NextCursor = &last
	}

	out.Blocks, err = s.reconcile(ctx, req.View, page, window)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// reconcile drops orphaned and hidden page references and refreshes the
// cached title of the rest. In the owner view orphans are also deleted.
func (s *ReconcileService) reconcile(ctx context.Context, view domain.View, page *domain.Page, window []domain.Block) ([]domain.Block, error) {
	var targetIDs []string
	seen := map[string]bool{}
	for i := range window {
		ref, ok := window[i].RefPageID()
		if !ok {
			continue
		}
		if id, err := domain.ParseID(ref); err == nil && !seen[id] {
			seen[id] = true
			targetIDs = append(targetIDs, id)
		}
	}

	targets := map[string]domain.Page{}
	if len(targetIDs) > 0 {
		pages, err := s.pages.GetPagesByIDs(ctx, targetIDs)
		if err != nil {
			return nil, fmt.Errorf("load referenced pages: %w", err)
		}
		for _, p := range pages {
			targets[p.ID] = p
		}
	}

	result := make([]domain.Block, 0, len(window))
	var orphans []string
	for _, b := range window {
		ref, ok := b.RefPageID()
		if !ok {
			result = append(result, b)
			continue
		}
		id, _ := domain.ParseID(ref)
		target, exists := targets[id]
		if !exists {
			orphans = append(orphans, b.ID)
			continue
		}
		if !visible(view, page, target) {
			continue
		}
		b = b.Clone()
		b.Content = &domain.PageRef{PageID: target.ID, Title: target.Title}
		result = append(result, b)
	}

	if len(orphans) > 0 && view == domain.ViewOwner {
		s.removeOrphans(ctx, page.ID, orphans)
	}
	return result, nil
}

// visible reports whether a reference to target may be shown on page.
// Public readers only follow references into public pages; owners do not
// see titles of other owners' private pages.
func visible(view domain.View, page *domain.Page, target domain.Page) bool {
	if target.IsPublic {
		return true
	}
	return view == domain.ViewOwner && target.OwnerID == page.OwnerID
}

// removeOrphans deletes dangling references. A failure is reported through
// the emitter and does not fail the read.
func (s *ReconcileService) removeOrphans(ctx context.Context, pageID string, ids []string) {
	if err := s.blocks.DeleteBlocks(ctx, ids); err != nil {
		s.emitter.Emit(ctx, EventOrphanCleanFail, map[string]any{
			"pageId": pageID, "blockIds": ids, "error": err.Error(),
		})
		return
	}
	s.emitter.Emit(ctx, EventOrphansRemoved, map[string]any{"pageId": pageID, "blockIds": ids})
}
