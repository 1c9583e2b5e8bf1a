// Package mongostore implements the page and block accessors on MongoDB.
package mongostore

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	pagesCollection  = "pages"
	blocksCollection = "blocks"
)

// Store owns the client and hands out the two accessors.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to uri and ensures the indexes exist. When database is
// empty the name is taken from the URI path, falling back to "blocknotes".
func Open(ctx context.Context, uri, database string) (*Store, error) {
	if database == "" {
		database = databaseFromURI(uri)
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &Store{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(pagesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "parentPageId", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create page indexes: %w", err)
	}
	_, err = s.db.Collection(blocksCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "pageId", Value: 1}, {Key: "order", Value: 1}}},
		{Keys: bson.D{{Key: "refPageId", Value: 1}}},
		{Keys: bson.D{{Key: "type", Value: 1}, {Key: "content.url", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create block indexes: %w", err)
	}
	return nil
}

// Pages returns the page accessor.
func (s *Store) Pages() *PageStore {
	return &PageStore{coll: s.db.Collection(pagesCollection)}
}

// Blocks returns the block accessor.
func (s *Store) Blocks() *BlockStore {
	return &BlockStore{
		coll:  s.db.Collection(blocksCollection),
		pages: pagesCollection,
	}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Drop removes the database. Used by tests.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func databaseFromURI(uri string) string {
	rest := uri
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.Index(rest, "?"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.Index(rest, "/"); i >= 0 && i+1 < len(rest) {
		return rest[i+1:]
	}
	return "blocknotes"
}
