package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocknotes/internal/domain"
	"blocknotes/internal/service"
)

func TestReadBlocks_Pagination(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.page(t, "alice", "Paged", nil)

	var snapshot []domain.Block
	for i := 0; i < 5; i++ {
		snapshot = append(snapshot, text(domain.BlockTypeParagraph, string(rune('a'+i))))
	}
	_, err := e.sync.Save(ctx, "alice", p.ID, snapshot)
	require.NoError(t, err)

	var seen []string
	var cursor *int
	for i := 0; i < 10; i++ {
		res, err := e.reader.ReadBlocks(ctx, service.ReadRequest{
			View: domain.ViewOwner, OwnerID: "alice", PageID: p.ID, Limit: 2, Cursor: cursor,
		})
		require.NoError(t, err)
		for _, b := range res.Blocks {
			seen = append(seen, textOf(t, b))
		}
		if !res.HasMore {
			break
		}
		require.NotNil(t, res.NextCursor)
		cursor = res.NextCursor
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, seen)
}

func TestReadBlocks_EmptyPage(t *testing.T) {
	e := setup(t)
	p := e.page(t, "alice", "", nil)

	res, err := e.reader.ReadBlocks(context.Background(), service.ReadRequest{
		View: domain.ViewOwner, OwnerID: "alice", PageID: p.ID, Limit: service.DefaultReadLimit,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Blocks)
	assert.Nil(t, res.NextCursor)
	assert.False(t, res.HasMore)
}

func TestReadBlocks_Access(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.page(t, "alice", "Private", nil)

	_, err := e.reader.ReadBlocks(ctx, service.ReadRequest{View: domain.ViewOwner, OwnerID: "bob", PageID: p.ID})
	assert.ErrorIs(t, err, domain.ErrNotFound, "foreign pages look missing")

	_, err = e.reader.ReadBlocks(ctx, service.ReadRequest{View: domain.ViewOwner, OwnerID: "alice", PageID: domain.NewID()})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.reader.ReadBlocks(ctx, service.ReadRequest{View: domain.ViewPublic, PageID: p.ID})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = e.reader.ReadBlocks(ctx, service.ReadRequest{View: domain.ViewOwner, OwnerID: "alice", PageID: "not-an-id"})
	assert.ErrorIs(t, err, domain.ErrInvalidReference)

	_, err = e.reader.ReadBlocks(ctx, service.ReadRequest{View: domain.ViewOwner, OwnerID: "alice", PageID: p.ID, Limit: -1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReadBlocks_OrphanCleanup(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	parent := e.page(t, "alice", "Parent", nil)
	child := e.page(t, "alice", "Child", &parent.ID)
	_, err := e.pageSvc.SetVisibility(ctx, "alice", parent.ID, true)
	require.NoError(t, err)

	// remove the child behind the tree service's back
	_, err = e.pages.DeletePages(ctx, []string{child.ID})
	require.NoError(t, err)
	require.Len(t, e.stored(t, parent.ID), 1)

	pub, err := e.reader.ReadBlocks(ctx, service.ReadRequest{View: domain.ViewPublic, PageID: parent.ID})
	require.NoError(t, err)
	assert.Empty(t, pub.Blocks)
	assert.Len(t, e.stored(t, parent.ID), 1, "public reads never mutate")
	assert.Empty(t, e.emitter.Named(service.EventOrphansRemoved))

	own, err := e.reader.ReadBlocks(ctx, service.ReadRequest{View: domain.ViewOwner, OwnerID: "alice", PageID: parent.ID})
	require.NoError(t, err)
	assert.Empty(t, own.Blocks)
	assert.Empty(t, e.stored(t, parent.ID), "owner reads delete orphans")
	assert.Len(t, e.emitter.Named(service.EventOrphansRemoved), 1)
}

func TestReadBlocks_PublicViewHidesPrivateTargets(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	parent := e.page(t, "alice", "Parent", nil)
	child := e.page(t, "alice", "Child", &parent.ID)
	_, err := e.pageSvc.SetVisibility(ctx, "alice", parent.ID, true)
	require.NoError(t, err)

	pub, err := e.reader.ReadBlocks(ctx, service.ReadRequest{View: domain.ViewPublic, PageID: parent.ID})
	require.NoError(t, err)
	assert.Empty(t, pub.Blocks)

	_, err = e.pageSvc.SetVisibility(ctx, "alice", child.ID, true)
	require.NoError(t, err)
	pub, err = e.reader.ReadBlocks(ctx, service.ReadRequest{View: domain.ViewPublic, PageID: parent.ID})
	require.NoError(t, err)
	require.Len(t, pub.Blocks, 1)
	assert.Equal(t, &domain.PageRef{PageID: child.ID, Title: "Child"}, pub.Blocks[0].Content)
}

func TestReadBlocks_RefreshesReferenceTitles(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	parent := e.page(t, "alice", "Parent", nil)
	child := e.page(t, "alice", "Draft", &parent.ID)

	_, err := e.pageSvc.RenamePage(ctx, "alice", child.ID, "Final")
	require.NoError(t, err)

	blocks := e.readAll(t, "alice", parent.ID)
	require.Len(t, blocks, 1)
	ref, ok := blocks[0].Content.(*domain.PageRef)
	require.True(t, ok)
	assert.Equal(t, "Final", ref.Title)
}

func TestReadBlocks_CursorAdvancesPastHiddenWindow(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	parent := e.page(t, "alice", "Parent", nil)
	e.page(t, "alice", "A", &parent.ID)
	e.page(t, "alice", "B", &parent.ID)
	_, err := e.blockSvc.CreateBlock(ctx, "alice", parent.ID, service.NewBlock{
		Type: domain.BlockTypeParagraph, Content: &domain.TextContent{Text: "tail", Marks: []domain.Mark{}},
	})
	require.NoError(t, err)
	_, err = e.pageSvc.SetVisibility(ctx, "alice", parent.ID, true)
	require.NoError(t, err)

	first, err := e.reader.ReadBlocks(ctx, service.ReadRequest{View: domain.ViewPublic, PageID: parent.ID, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, first.Blocks, "both private references are hidden")
	assert.True(t, first.HasMore)
	require.NotNil(t, first.NextCursor)

	second, err := e.reader.ReadBlocks(ctx, service.ReadRequest{View: domain.ViewPublic, PageID: parent.ID, Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Blocks, 1)
	assert.Equal(t, "tail", textOf(t, second.Blocks[0]))
	assert.False(t, second.HasMore)
}
