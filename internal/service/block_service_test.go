package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocknotes/internal/domain"
	"blocknotes/internal/service"
)

func bold(start, end int) domain.Mark {
	return domain.Mark{Type: domain.MarkBold, Start: start, End: end}
}

func TestCreateBlock_InsertsAtPosition(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.page(t, "alice", "Doc", nil)
	saved, err := e.sync.Save(ctx, "alice", p.ID, []domain.Block{
		text(domain.BlockTypeParagraph, "first"),
		text(domain.BlockTypeParagraph, "third"),
	})
	require.NoError(t, err)

	b, err := e.blockSvc.CreateBlock(ctx, "alice", p.ID, service.NewBlock{
		AfterBlockID: &saved[0].ID,
		Type:         domain.BlockTypeParagraph,
		Content:      &domain.TextContent{Text: "second", Marks: []domain.Mark{}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Order)

	_, err = e.blockSvc.CreateBlock(ctx, "alice", p.ID, service.NewBlock{Type: domain.BlockTypeTodo})
	require.NoError(t, err)

	var got []string
	for _, b := range e.readAll(t, "alice", p.ID) {
		got = append(got, textOf(t, b))
	}
	assert.Equal(t, []string{"first", "second", "third", ""}, got)

	missing := domain.NewID()
	_, err = e.blockSvc.CreateBlock(ctx, "alice", p.ID, service.NewBlock{AfterBlockID: &missing, Type: domain.BlockTypeParagraph})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.blockSvc.CreateBlock(ctx, "alice", p.ID, service.NewBlock{Type: domain.BlockTypePage})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdateBlock_TextCarriesMarks(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.page(t, "alice", "Doc", nil)
	saved, err := e.sync.Save(ctx, "alice", p.ID, []domain.Block{{
		Type:    domain.BlockTypeParagraph,
		Content: &domain.TextContent{Text: "hello world", Marks: []domain.Mark{bold(6, 11)}},
	}})
	require.NoError(t, err)

	newText := "hello big world"
	b, err := e.blockSvc.UpdateBlock(ctx, "alice", saved[0].ID, service.BlockPatch{Text: &newText})
	require.NoError(t, err)
	_, marks, _ := domain.TextOf(b.Content)
	assert.Equal(t, []domain.Mark{bold(10, 15)}, marks)

	stored, err := e.blocks.GetBlock(ctx, saved[0].ID)
	require.NoError(t, err)
	assert.Equal(t, b.Content, stored.Content)
}

func TestUpdateBlock_TypeAndFields(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.page(t, "alice", "Doc", nil)
	saved, err := e.sync.Save(ctx, "alice", p.ID, []domain.Block{
		text(domain.BlockTypeParagraph, "title"),
		{Type: domain.BlockTypeCode, Content: &domain.CodeContent{Code: "x"}},
	})
	require.NoError(t, err)

	toTodo := domain.BlockTypeTodo
	checked := true
	yellow := domain.Color("yellow")
	b, err := e.blockSvc.UpdateBlock(ctx, "alice", saved[0].ID, service.BlockPatch{
		Type: &toTodo, Checked: &checked, BackgroundColor: &yellow,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BlockTypeTodo, b.Type)
	assert.Equal(t, &domain.TodoContent{Text: "title", Marks: []domain.Mark{}, Checked: true}, b.Content)
	require.NotNil(t, b.BackgroundColor)

	b, err = e.blockSvc.UpdateBlock(ctx, "alice", saved[0].ID, service.BlockPatch{ClearBackground: true})
	require.NoError(t, err)
	assert.Nil(t, b.BackgroundColor)

	toHeading := domain.BlockTypeHeading1
	_, err = e.blockSvc.UpdateBlock(ctx, "alice", saved[1].ID, service.BlockPatch{Type: &toHeading})
	assert.ErrorIs(t, err, domain.ErrValidation, "code blocks have no text to carry over")

	_, err = e.blockSvc.UpdateBlock(ctx, "alice", saved[1].ID, service.BlockPatch{Checked: &checked})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = e.blockSvc.UpdateBlock(ctx, "bob", saved[1].ID, service.BlockPatch{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFormatBlock(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.page(t, "alice", "Doc", nil)
	saved, err := e.sync.Save(ctx, "alice", p.ID, []domain.Block{text(domain.BlockTypeParagraph, "0123456789")})
	require.NoError(t, err)
	id := saved[0].ID

	_, err = e.blockSvc.FormatBlock(ctx, "alice", id, service.FormatRequest{Action: service.FormatApply, Mark: domain.MarkBold, Start: 0, End: 5})
	require.NoError(t, err)
	b, err := e.blockSvc.FormatBlock(ctx, "alice", id, service.FormatRequest{Action: service.FormatApply, Mark: domain.MarkBold, Start: 5, End: 100})
	require.NoError(t, err)
	_, marks, _ := domain.TextOf(b.Content)
	assert.Equal(t, []domain.Mark{bold(0, 10)}, marks, "merged and clamped")

	b, err = e.blockSvc.FormatBlock(ctx, "alice", id, service.FormatRequest{Action: service.FormatRemove, Mark: domain.MarkBold, Start: 3, End: 7})
	require.NoError(t, err)
	_, marks, _ = domain.TextOf(b.Content)
	assert.Equal(t, []domain.Mark{bold(0, 3), bold(7, 10)}, marks)

	_, err = e.blockSvc.FormatBlock(ctx, "alice", id, service.FormatRequest{Action: "toggle", Mark: domain.MarkBold, Start: 0, End: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = e.blockSvc.FormatBlock(ctx, "alice", id, service.FormatRequest{Action: service.FormatApply, Mark: "strike", Start: 0, End: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDeleteBlock_ReleasesImage(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.page(t, "alice", "Doc", nil)
	saved, err := e.sync.Save(ctx, "alice", p.ID, []domain.Block{
		{Type: domain.BlockTypeImage, Content: &domain.ImageContent{URL: "/files/cat.png", Width: 10, Height: 10}},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, e.blockSvc.DeleteBlock(ctx, "bob", saved[0].ID), domain.ErrNotFound)
	require.NoError(t, e.blockSvc.DeleteBlock(ctx, "alice", saved[0].ID))
	assert.Empty(t, e.stored(t, p.ID))
	assert.Equal(t, []string{"alice /files/cat.png"}, e.removed.urls)
}

func TestDeleteBlock_KeepsImageStillReferenced(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	image := domain.Block{Type: domain.BlockTypeImage, Content: &domain.ImageContent{URL: "/files/alice-cat.png", Width: 4, Height: 4}}
	source := publicSource(t, e, "alice", "Cats", []domain.Block{image})

	target := e.page(t, "bob", "Mine", nil)
	_, err := e.importer.Import(ctx, "bob", target.ID, source.ID)
	require.NoError(t, err)
	copied := e.readAll(t, "bob", target.ID)
	require.Len(t, copied, 1)

	// alice's block still shows the image
	require.NoError(t, e.blockSvc.DeleteBlock(ctx, "bob", copied[0].ID))
	assert.Empty(t, e.removed.urls)
	require.Len(t, e.stored(t, source.ID), 1)

	// the last reference goes, but the removal is scoped to alice's uploads
	original := e.stored(t, source.ID)[0]
	require.NoError(t, e.blockSvc.DeleteBlock(ctx, "alice", original.ID))
	assert.Equal(t, []string{"alice /files/alice-cat.png"}, e.removed.urls)
}
