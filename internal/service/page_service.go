package service

import (
	"context"
	"fmt"

	"blocknotes/internal/domain"
)

// MaxTreeDepth bounds the ancestor walk that keeps parent links acyclic.
const MaxTreeDepth = 256

// ─────────────────────────────────────────────────────────────
// Page Service — page lifecycle and tree placement
// ─────────────────────────────────────────────────────────────

type PageService struct {
	pages   domain.PageStore
	blocks  domain.BlockStore
	emitter EventEmitter
}

func NewPageService(pages domain.PageStore, blocks domain.BlockStore, emitter EventEmitter) *PageService {
	return &PageService{pages: pages, blocks: blocks, emitter: emitter}
}

// CreatePage creates a page. A child page gets a reference block appended
// to its parent, which is the only way to reach it.
func (s *PageService) CreatePage(ctx context.Context, ownerID, title string, parentID *string) (*domain.Page, error) {
	title, err := domain.NormalizeTitle(title)
	if err != nil {
		return nil, err
	}

	var parent *domain.Page
	if parentID != nil {
		if parent, err = ownedPage(ctx, s.pages, ownerID, *parentID); err != nil {
			return nil, err
		}
	}

	p := &domain.Page{ID: domain.NewID(), Title: title, OwnerID: ownerID}
	if parent != nil {
		p.ParentPageID = &parent.ID
	}
	if err := s.pages.CreatePage(ctx, p); err != nil {
		return nil, err
	}
	if parent != nil {
		if err := s.appendRef(ctx, parent.ID, p); err != nil {
			return nil, err
		}
	}

	s.emitter.Emit(ctx, EventPageCreated, map[string]any{"pageId": p.ID, "parentPageId": p.ParentPageID})
	return p, nil
}

func (s *PageService) appendRef(ctx context.Context, parentID string, child *domain.Page) error {
	order := 0
	if maxOrder, ok, err := s.blocks.MaxOrder(ctx, parentID); err != nil {
		return fmt.Errorf("read parent order: %w", err)
	} else if ok {
		order = maxOrder + 1
	}
	ref := &domain.Block{
		ID:      domain.NewID(),
		PageID:  parentID,
		Type:    domain.BlockTypePage,
		Order:   order,
		Content: &domain.PageRef{PageID: child.ID, Title: child.Title},
	}
	if err := s.blocks.CreateBlock(ctx, ref); err != nil {
		return fmt.Errorf("append page reference: %w", err)
	}
	return nil
}

// GetPage returns an owned page.
func (s *PageService) GetPage(ctx context.Context, ownerID, id string) (*domain.Page, error) {
	return ownedPage(ctx, s.pages, ownerID, id)
}

// GetPublicPage returns a page that anyone may read.
func (s *PageService) GetPublicPage(ctx context.Context, id string) (*domain.Page, error) {
	return publicPage(ctx, s.pages, id)
}

func (s *PageService) ListRootPages(ctx context.Context, ownerID string) ([]domain.Page, error) {
	return s.pages.ListRootPages(ctx, ownerID)
}

func (s *PageService) ListChildPages(ctx context.Context, ownerID, parentID string) ([]domain.Page, error) {
	parent, err := ownedPage(ctx, s.pages, ownerID, parentID)
	if err != nil {
		return nil, err
	}
	return s.pages.ListChildPages(ctx, ownerID, parent.ID)
}

// RenamePage sets the title. References pick up the new title on read.
func (s *PageService) RenamePage(ctx context.Context, ownerID, id, title string) (*domain.Page, error) {
	title, err := domain.NormalizeTitle(title)
	if err != nil {
		return nil, err
	}
	p, err := ownedPage(ctx, s.pages, ownerID, id)
	if err != nil {
		return nil, err
	}
	p.Title = title
	if err := s.pages.UpdatePage(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SetVisibility toggles public read access and returns the new value.
func (s *PageService) SetVisibility(ctx context.Context, ownerID, id string, isPublic bool) (bool, error) {
	p, err := ownedPage(ctx, s.pages, ownerID, id)
	if err != nil {
		return false, err
	}
	if p.IsPublic == isPublic {
		return isPublic, nil
	}
	p.IsPublic = isPublic
	if err := s.pages.UpdatePage(ctx, p); err != nil {
		return false, err
	}
	return p.IsPublic, nil
}

// MovePage re-parents a page, or makes it a root page when newParentID is
// nil. The reference block moves from the old parent to the end of the new
// one. Moving a page under itself or one of its descendants fails.
func (s *PageService) MovePage(ctx context.Context, ownerID, id string, newParentID *string) (*domain.Page, error) {
	p, err := ownedPage(ctx, s.pages, ownerID, id)
	if err != nil {
		return nil, err
	}

	var parent *domain.Page
	if newParentID != nil {
		if parent, err = ownedPage(ctx, s.pages, ownerID, *newParentID); err != nil {
			return nil, err
		}
		if err := s.checkAcyclic(ctx, p.ID, parent); err != nil {
			return nil, err
		}
	}

	oldParent := p.ParentPageID
	if sameParent(oldParent, parent) {
		return p, nil
	}

	if oldParent != nil {
		if _, err := s.blocks.DeletePageRefs(ctx, *oldParent, p.ID); err != nil {
			return nil, fmt.Errorf("detach from parent: %w", err)
		}
	}
	p.ParentPageID = nil
	if parent != nil {
		p.ParentPageID = &parent.ID
	}
	if err := s.pages.UpdatePage(ctx, p); err != nil {
		return nil, err
	}
	if parent != nil {
		if err := s.appendRef(ctx, parent.ID, p); err != nil {
			return nil, err
		}
	}

	s.emitter.Emit(ctx, EventPageMoved, map[string]any{"pageId": p.ID, "from": oldParent, "to": p.ParentPageID})
	return p, nil
}

// checkAcyclic walks up from parent and fails if it reaches pageID or runs
// deeper than MaxTreeDepth.
func (s *PageService) checkAcyclic(ctx context.Context, pageID string, parent *domain.Page) error {
	cur := parent
	for depth := 0; ; depth++ {
		if cur.ID == pageID {
			return fmt.Errorf("%w: a page cannot be moved under itself", domain.ErrValidation)
		}
		if cur.ParentPageID == nil {
			return nil
		}
		if depth >= MaxTreeDepth {
			return fmt.Errorf("%w: page tree deeper than %d levels", domain.ErrValidation, MaxTreeDepth)
		}
		next, err := s.pages.GetPage(ctx, *cur.ParentPageID)
		if err != nil {
			return fmt.Errorf("walk ancestors: %w", err)
		}
		cur = next
	}
}

func sameParent(old *string, parent *domain.Page) bool {
	if old == nil || parent == nil {
		return old == nil && parent == nil
	}
	return *old == parent.ID
}
