package service

import (
	"context"
	"fmt"

	"blocknotes/internal/domain"
)

// MaxTreePages bounds how many pages one cascading delete may collect.
const MaxTreePages = 5000

// DeleteResult reports a cascading delete.
type DeleteResult struct {
	DeletedCount int64   `json:"deletedCount"`
	ParentPageID *string `json:"parentPageId"`
}

// ─────────────────────────────────────────────────────────────
// Tree Service — cascading page deletion
// ─────────────────────────────────────────────────────────────

type TreeService struct {
	pages   domain.PageStore
	blocks  domain.BlockStore
	emitter EventEmitter
}

func NewTreeService(pages domain.PageStore, blocks domain.BlockStore, emitter EventEmitter) *TreeService {
	return &TreeService{pages: pages, blocks: blocks, emitter: emitter}
}

// DeletePage removes pageID, every descendant page, all of their blocks,
// and the reference block in the parent page. The subtree is collected
// before anything is deleted, so an oversized or unreadable tree leaves
// the store untouched.
//
// The steps are separate writes: a failure part way through can leave
// blocks deleted while pages remain.
func (s *TreeService) DeletePage(ctx context.Context, ownerID, pageID string) (*DeleteResult, error) {
	page, err := ownedPage(ctx, s.pages, ownerID, pageID)
	if err != nil {
		return nil, err
	}

	ids, err := s.Subtree(ctx, ownerID, page.ID)
	if err != nil {
		return nil, err
	}

	if _, err := s.blocks.DeleteBlocksByPages(ctx, ids); err != nil {
		return nil, fmt.Errorf("delete subtree blocks: %w", err)
	}
	n, err := s.pages.DeletePages(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("delete subtree pages: %w", err)
	}
	if page.ParentPageID != nil {
		if _, err := s.blocks.DeletePageRefs(ctx, *page.ParentPageID, page.ID); err != nil {
			return nil, fmt.Errorf("delete parent reference: %w", err)
		}
	}

	s.emitter.Emit(ctx, EventPageDeleted, map[string]any{"pageId": page.ID, "deletedCount": n})
	return &DeleteResult{DeletedCount: n, ParentPageID: page.ParentPageID}, nil
}

// Subtree returns rootID followed by every descendant page of ownerID,
// depth first. It walks an explicit stack with a visited set, so a cycle in
// the parent links cannot loop, and fails once more than MaxTreePages pages
// are found.
func (s *TreeService) Subtree(ctx context.Context, ownerID, rootID string) ([]string, error) {
	visited := map[string]bool{}
	var ordered []string
	stack := []string{rootID}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		ordered = append(ordered, id)
		if len(ordered) > MaxTreePages {
			return nil, fmt.Errorf("%w: page tree exceeds %d pages", domain.ErrValidation, MaxTreePages)
		}

		children, err := s.pages.ListChildPages(ctx, ownerID, id)
		if err != nil {
			return nil, fmt.Errorf("collect descendants of %s: %w", id, err)
		}
		for i := len(children) - 1; i >= 0; i-- {
			if !visited[children[i].ID] {
				stack = append(stack, children[i].ID)
			}
		}
	}
	return ordered, nil
}
