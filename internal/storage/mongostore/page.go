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

type pageDoc struct {
	ID           string    `bson:"_id"`
	Title        string    `bson:"title"`
	OwnerID      string    `bson:"ownerId"`
	ParentPageID *string   `bson:"parentPageId"`
	IsPublic     bool      `bson:"isPublic"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func (d pageDoc) page() domain.Page {
	return domain.Page{
		ID: d.ID, Title: d.Title, OwnerID: d.OwnerID, ParentPageID: d.ParentPageID,
		IsPublic: d.IsPublic, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

func toPageDoc(p *domain.Page) pageDoc {
	return pageDoc{
		ID: p.ID, Title: p.Title, OwnerID: p.OwnerID, ParentPageID: p.ParentPageID,
		IsPublic: p.IsPublic, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

// PageStore implements domain.PageStore on a Mongo collection.
type PageStore struct {
	coll *mongo.Collection
}

var _ domain.PageStore = (*PageStore)(nil)

func (s *PageStore) CreatePage(ctx context.Context, p *domain.Page) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.coll.InsertOne(ctx, toPageDoc(p)); err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	return nil
}

func (s *PageStore) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	var d pageDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get page %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	p := d.page()
	return &p, nil
}

func (s *PageStore) UpdatePage(ctx context.Context, p *domain.Page) error {
	p.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{
		"title":        p.Title,
		"parentPageId": p.ParentPageID,
		"isPublic":     p.IsPublic,
		"updatedAt":    p.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update page: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update page %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *PageStore) DeletePages(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("delete pages: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *PageStore) find(ctx context.Context, filter any) ([]domain.Page, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []pageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	pages := make([]domain.Page, 0, len(docs))
	for _, d := range docs {
		pages = append(pages, d.page())
	}
	return pages, nil
}

func (s *PageStore) ListRootPages(ctx context.Context, ownerID string) ([]domain.Page, error) {
	pages, err := s.find(ctx, bson.M{"ownerId": ownerID, "parentPageId": nil})
	if err != nil {
		return nil, fmt.Errorf("list root pages: %w", err)
	}
	return pages, nil
}

func (s *PageStore) ListChildPages(ctx context.Context, ownerID, parentID string) ([]domain.Page, error) {
	pages, err := s.find(ctx, bson.M{"ownerId": ownerID, "parentPageId": parentID})
	if err != nil {
		return nil, fmt.Errorf("list child pages: %w", err)
	}
	return pages, nil
}

func (s *PageStore) GetPagesByIDs(ctx context.Context, ids []string) ([]domain.Page, error) {
	if len(ids) == 0 {
		return []domain.Page{}, nil
	}
	pages, err := s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("get pages: %w", err)
	}
	return pages, nil
}
