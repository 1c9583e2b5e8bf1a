package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocknotes/internal/domain"
	"blocknotes/internal/service"
)

func TestDeletePage_CascadesThroughSubtree(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	root := e.page(t, "alice", "Root", nil)
	c1 := e.page(t, "alice", "C1", &root.ID)
	c2 := e.page(t, "alice", "C2", &root.ID)
	g := e.page(t, "alice", "G", &c1.ID)
	keep := e.page(t, "alice", "Keep", nil)

	ids := []string{root.ID, c1.ID, c2.ID, g.ID}
	for _, id := range append(ids, keep.ID) {
		_, err := e.blockSvc.CreateBlock(ctx, "alice", id, service.NewBlock{Type: domain.BlockTypeParagraph})
		require.NoError(t, err)
	}

	res, err := e.tree.DeletePage(ctx, "alice", root.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, res.DeletedCount)
	assert.Nil(t, res.ParentPageID)

	for _, id := range ids {
		_, err := e.pages.GetPage(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Empty(t, e.stored(t, id))
	}
	assert.Len(t, e.stored(t, keep.ID), 1)
	assert.Len(t, e.emitter.Named(service.EventPageDeleted), 1)
}

func TestDeletePage_RemovesParentReference(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	parent := e.page(t, "alice", "Parent", nil)
	child := e.page(t, "alice", "Child", &parent.ID)
	sibling := e.page(t, "alice", "Sibling", &parent.ID)

	res, err := e.tree.DeletePage(ctx, "alice", child.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.DeletedCount)
	require.NotNil(t, res.ParentPageID)
	assert.Equal(t, parent.ID, *res.ParentPageID)

	stored := e.stored(t, parent.ID)
	require.Len(t, stored, 1)
	ref, ok := stored[0].RefPageID()
	require.True(t, ok)
	assert.Equal(t, sibling.ID, ref)
}

func TestDeletePage_Ownership(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.page(t, "alice", "Mine", nil)

	_, err := e.tree.DeletePage(ctx, "bob", p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.pages.GetPage(ctx, p.ID)
	assert.NoError(t, err)
}

// treePages serves a synthetic tree from a child map. Write methods are
// left to the nil embedded interface, so any mutation panics.
type treePages struct {
	domain.PageStore
	children func(id string) []domain.Page
}

func (s treePages) GetPage(_ context.Context, id string) (*domain.Page, error) {
	return &domain.Page{ID: id, OwnerID: "alice", Title: id}, nil
}

func (s treePages) ListChildPages(_ context.Context, _, parentID string) ([]domain.Page, error) {
	return s.children(parentID), nil
}

func TestSubtree_ToleratesCycles(t *testing.T) {
	a, b := domain.NewID(), domain.NewID()
	pages := treePages{children: func(id string) []domain.Page {
		if id == a {
			return []domain.Page{{ID: b}}
		}
		return []domain.Page{{ID: a}}
	}}
	tree := service.NewTreeService(pages, nil, &service.MockEmitter{})

	ids, err := tree.Subtree(context.Background(), "alice", a)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, ids)
}

func TestDeletePage_OversizedTreeFailsBeforeMutation(t *testing.T) {
	n := 0
	pages := treePages{children: func(string) []domain.Page {
		n++
		return []domain.Page{{ID: fmt.Sprintf("page-%d", n)}}
	}}
	tree := service.NewTreeService(pages, nil, &service.MockEmitter{})

	_, err := tree.DeletePage(context.Background(), "alice", domain.NewID())
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Greater(t, n, service.MaxTreePages-1)
}
