package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"blocknotes/internal/domain"
)

// contentDoc flattens every content variant into one embedded document.
// The block type decides which fields are meaningful.
type contentDoc struct {
	Text     string        `bson:"text,omitempty"`
	Marks    []domain.Mark `bson:"marks,omitempty"`
	Checked  bool          `bson:"checked,omitempty"`
	Code     string        `bson:"code,omitempty"`
	Language string        `bson:"language,omitempty"`
	URL      string        `bson:"url,omitempty"`
	Caption  string        `bson:"caption,omitempty"`
	Width    int           `bson:"width,omitempty"`
	Height   int           `bson:"height,omitempty"`
	PageID   string        `bson:"pageId,omitempty"`
	Title    string        `bson:"title,omitempty"`
}

type blockDoc struct {
	ID              string     `bson:"_id"`
	PageID          string     `bson:"pageId"`
	Type            string     `bson:"type"`
	Order           int        `bson:"order"`
	Content         contentDoc `bson:"content"`
	BackgroundColor *string    `bson:"backgroundColor"`
	RefPageID       *string    `bson:"refPageId"`
	CreatedAt       time.Time  `bson:"createdAt"`
	UpdatedAt       time.Time  `bson:"updatedAt"`
}

func toContentDoc(c domain.Content) contentDoc {
	switch v := c.(type) {
	case *domain.TextContent:
		return contentDoc{Text: v.Text, Marks: v.Marks}
	case *domain.TodoContent:
		return contentDoc{Text: v.Text, Marks: v.Marks, Checked: v.Checked}
	case *domain.CodeContent:
		return contentDoc{Code: v.Code, Language: v.Language}
	case *domain.ImageContent:
		return contentDoc{URL: v.URL, Caption: v.Caption, Width: v.Width, Height: v.Height}
	case *domain.LinkContent:
		return contentDoc{URL: v.URL, Text: v.Text}
	case *domain.PageRef:
		return contentDoc{PageID: v.PageID, Title: v.Title}
	}
	return contentDoc{}
}

func (d contentDoc) content(t domain.BlockType) (domain.Content, error) {
	marks := d.Marks
	if marks == nil {
		marks = []domain.Mark{}
	}
	switch t {
	case domain.BlockTypeParagraph, domain.BlockTypeHeading1, domain.BlockTypeHeading2,
		domain.BlockTypeHeading3, domain.BlockTypeQuote:
		return &domain.TextContent{Text: d.Text, Marks: marks}, nil
	case domain.BlockTypeTodo:
		return &domain.TodoContent{Text: d.Text, Marks: marks, Checked: d.Checked}, nil
	case domain.BlockTypeCode:
		return &domain.CodeContent{Code: d.Code, Language: d.Language}, nil
	case domain.BlockTypeImage:
		return &domain.ImageContent{URL: d.URL, Caption: d.Caption, Width: d.Width, Height: d.Height}, nil
	case domain.BlockTypeLink:
		return &domain.LinkContent{URL: d.URL, Text: d.Text}, nil
	case domain.BlockTypePage:
		return &domain.PageRef{PageID: d.PageID, Title: d.Title}, nil
	}
	return nil, fmt.Errorf("%w: unknown block type %q", domain.ErrInvalidReference, t)
}

func toBlockDoc(b *domain.Block) blockDoc {
	d := blockDoc{
		ID: b.ID, PageID: b.PageID, Type: string(b.Type), Order: b.Order,
		Content: toContentDoc(b.Content), CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt,
	}
	if b.BackgroundColor != nil {
		c := string(*b.BackgroundColor)
		d.BackgroundColor = &c
	}
	if ref, ok := b.RefPageID(); ok {
		d.RefPageID = &ref
	}
	return d
}

func (d blockDoc) block() (domain.Block, error) {
	t := domain.BlockType(d.Type)
	c, err := d.Content.content(t)
	if err != nil {
		return domain.Block{}, fmt.Errorf("decode block %s: %w", d.ID, err)
	}
	b := domain.Block{
		ID: d.ID, PageID: d.PageID, Type: t, Order: d.Order, Content: c,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
	if d.BackgroundColor != nil {
		col := domain.Color(*d.BackgroundColor)
		b.BackgroundColor = &col
	}
	return b, nil
}

// BlockStore implements domain.BlockStore on a Mongo collection. Batches
// are not transactional: a failed BulkWrite can leave earlier models applied.
type BlockStore struct {
	coll  *mongo.Collection
	pages string
}

var _ domain.BlockStore = (*BlockStore)(nil)

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (s *BlockStore) decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]domain.Block, error) {
	var docs []blockDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	blocks := make([]domain.Block, 0, len(docs))
	for _, d := range docs {
		b, err := d.block()
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func (s *BlockStore) ListBlocks(ctx context.Context, q domain.BlockQuery) ([]domain.Block, error) {
	filter := bson.M{"pageId": q.PageID}
	if q.After != nil {
		filter["order"] = bson.M{"$gt": *q.After}
	}
	if len(q.ExcludeTypes) > 0 {
		types := make([]string, len(q.ExcludeTypes))
		for i, t := range q.ExcludeTypes {
			types[i] = string(t)
		}
		filter["type"] = bson.M{"$nin": types}
	}
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "_id", Value: 1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	blocks, err := s.decodeAll(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return blocks, nil
}

func (s *BlockStore) GetBlock(ctx context.Context, id string) (*domain.Block, error) {
	var d blockDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get block %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get block: %w", err)
	}
	b, err := d.block()
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BlockStore) CreateBlock(ctx context.Context, b *domain.Block) error {
	t := now()
	b.CreatedAt, b.UpdatedAt = t, t
	if _, err := s.coll.InsertOne(ctx, toBlockDoc(b)); err != nil {
		return fmt.Errorf("insert block %s: %w", b.ID, err)
	}
	return nil
}

// setFields is the $set document for an upsert; createdAt is written only
// on insert.
func setFields(d blockDoc) bson.M {
	return bson.M{
		"pageId":          d.PageID,
		"type":            d.Type,
		"order":           d.Order,
		"content":         d.Content,
		"backgroundColor": d.BackgroundColor,
		"refPageId":       d.RefPageID,
		"updatedAt":       d.UpdatedAt,
	}
}

func (s *BlockStore) UpdateBlock(ctx context.Context, b *domain.Block) error {
	b.UpdatedAt = now()
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": b.ID}, bson.M{"$set": setFields(toBlockDoc(b))})
	if err != nil {
		return fmt.Errorf("update block: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update block %s: %w", b.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *BlockStore) DeleteBlock(ctx context.Context, id string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	return nil
}

func (s *BlockStore) DeleteBlocks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("delete blocks: %w", err)
	}
	return nil
}

func (s *BlockStore) InsertBlocks(ctx context.Context, blocks []domain.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	t := now()
	docs := make([]any, len(blocks))
	for i := range blocks {
		blocks[i].CreatedAt, blocks[i].UpdatedAt = t, t
		docs[i] = toBlockDoc(&blocks[i])
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert blocks: %w", err)
	}
	return nil
}

// ApplySnapshot issues one ordered BulkWrite: an upsert per block followed
// by a DeleteMany of the page's blocks outside the snapshot.
func (s *BlockStore) ApplySnapshot(ctx context.Context, pageID string, blocks []domain.Block) error {
	t := now()
	models := make([]mongo.WriteModel, 0, len(blocks)+1)
	ids := make([]string, 0, len(blocks))
	for i := range blocks {
		b := &blocks[i]
		b.PageID = pageID
		if b.CreatedAt.IsZero() {
			b.CreatedAt = t
		}
		b.UpdatedAt = t
		d := toBlockDoc(b)
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": d.ID}).
			SetUpdate(bson.M{"$set": setFields(d), "$setOnInsert": bson.M{"createdAt": d.CreatedAt}}).
			SetUpsert(true))
		ids = append(ids, b.ID)
	}

	del := bson.M{"pageId": pageID}
	if len(ids) > 0 {
		del["_id"] = bson.M{"$nin": ids}
	}
	models = append(models, mongo.NewDeleteManyModel().SetFilter(del))

	if _, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("apply snapshot: %w", err)
	}
	return nil
}

func (s *BlockStore) DeleteBlocksByPages(ctx context.Context, pageIDs []string) (int64, error) {
	if len(pageIDs) == 0 {
		return 0, nil
	}
	res, err := s.coll.DeleteMany(ctx, bson.M{"pageId": bson.M{"$in": pageIDs}})
	if err != nil {
		return 0, fmt.Errorf("delete page blocks: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *BlockStore) DeletePageRefs(ctx context.Context, parentPageID, refPageID string) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{
		"pageId":    parentPageID,
		"type":      string(domain.BlockTypePage),
		"refPageId": bson.M{"$in": domain.IDForms(refPageID)},
	})
	if err != nil {
		return 0, fmt.Errorf("delete page refs: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *BlockStore) MaxOrder(ctx context.Context, pageID string) (int, bool, error) {
	var d blockDoc
	opts := options.FindOne().SetSort(bson.D{{Key: "order", Value: -1}})
	err := s.coll.FindOne(ctx, bson.M{"pageId": pageID}, opts).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("max order: %w", err)
	}
	return d.Order, true, nil
}

func (s *BlockStore) ForeignBlockIDs(ctx context.Context, pageID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := s.coll.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "pageId": bson.M{"$ne": pageID}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("foreign block ids: %w", err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("foreign block ids: %w", err)
	}
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out, nil
}

// ListDanglingRefs joins page-reference blocks against the pages
// collection and keeps those with no match.
func (s *BlockStore) ListDanglingRefs(ctx context.Context, limit int) ([]domain.Block, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"type": string(domain.BlockTypePage)}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         s.pages,
			"localField":   "refPageId",
			"foreignField": "_id",
			"as":           "target",
		}}},
		{{Key: "$match", Value: bson.M{"target": bson.M{"$size": 0}}}},
		{{Key: "$project", Value: bson.M{"target": 0}}},
		{{Key: "$sort", Value: bson.D{{Key: "pageId", Value: 1}, {Key: "order", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list dangling refs: %w", err)
	}
	blocks, err := s.decodeAll(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("list dangling refs: %w", err)
	}
	return blocks, nil
}

// CountImageRefs counts image blocks, on any page, whose URL is exactly url.
func (s *BlockStore) CountImageRefs(ctx context.Context, url string) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"type": string(domain.BlockTypeImage), "content.url": url})
	if err != nil {
		return 0, fmt.Errorf("count image refs: %w", err)
	}
	return int(n), nil
}
