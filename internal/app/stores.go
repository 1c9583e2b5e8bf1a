package app

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"blocknotes/internal/config"
	"blocknotes/internal/domain"
	"blocknotes/internal/storage"
	"blocknotes/internal/storage/mongostore"
)

// Stores is an open document store: the two accessors plus lifecycle hooks.
type Stores struct {
	Pages  domain.PageStore
	Blocks domain.BlockStore
	Driver string

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

func (s *Stores) Ping(ctx context.Context) error  { return s.ping(ctx) }
func (s *Stores) Close(ctx context.Context) error { return s.close(ctx) }

// OpenStores connects to the configured store and applies its schema or
// indexes.
func OpenStores(ctx context.Context, cfg config.Storage) (*Stores, error) {
	if cfg.Driver == "mongo" {
		uri := cfg.DSN
		if uri == "" {
			uri = mongoURI(cfg)
		}
		ms, err := mongostore.Open(ctx, uri, cfg.Database)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Pages:  ms.Pages(),
			Blocks: ms.Blocks(),
			Driver: "mongo",
			ping:   ms.Ping,
			close:  ms.Close,
		}, nil
	}

	db, err := storage.Open(storage.Options{
		Driver:   cfg.Driver,
		DSN:      cfg.DSN,
		Path:     cfg.Path,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Database: cfg.Database,
		Username: cfg.Username,
		Password: cfg.Password,
		SSLMode:  cfg.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	return &Stores{
		Pages:  storage.NewPageStore(db),
		Blocks: storage.NewBlockStore(db),
		Driver: db.Driver(),
		ping:   db.Ping,
		close:  func(context.Context) error { return db.Close() },
	}, nil
}

func mongoURI(cfg config.Storage) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 27017
	}
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + cfg.Database,
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	return u.String()
}
