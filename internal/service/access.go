package service

import (
	"context"
	"fmt"

	"blocknotes/internal/domain"
)

// ownedPage loads id and checks that ownerID owns it. Malformed ids are
// InvalidReference; missing and foreign pages are both NotFound.
func ownedPage(ctx context.Context, pages domain.PageStore, ownerID, id string) (*domain.Page, error) {
	canonical, err := domain.ParseID(id)
	if err != nil {
		return nil, err
	}
	p, err := pages.GetPage(ctx, canonical)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, fmt.Errorf("page %s: %w", canonical, domain.ErrNotFound)
	}
	return p, nil
}

// publicPage loads id for an anonymous reader.
func publicPage(ctx context.Context, pages domain.PageStore, id string) (*domain.Page, error) {
	canonical, err := domain.ParseID(id)
	if err != nil {
		return nil, err
	}
	p, err := pages.GetPage(ctx, canonical)
	if err != nil {
		return nil, err
	}
	if !p.IsPublic {
		return nil, fmt.Errorf("page %s is not public: %w", canonical, domain.ErrForbidden)
	}
	return p, nil
}

// ownedBlock loads a block and the page that owns it.
func ownedBlock(ctx context.Context, pages domain.PageStore, blocks domain.BlockStore, ownerID, id string) (*domain.Block, *domain.Page, error) {
	canonical, err := domain.ParseID(id)
	if err != nil {
		return nil, nil, err
	}
	b, err := blocks.GetBlock(ctx, canonical)
	if err != nil {
		return nil, nil, err
	}
	p, err := pages.GetPage(ctx, b.PageID)
	if err != nil {
		return nil, nil, err
	}
	if p.OwnerID != ownerID {
		return nil, nil, fmt.Errorf("block %s: %w", canonical, domain.ErrNotFound)
	}
	return b, p, nil
}
