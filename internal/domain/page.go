package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultPageTitle = "Untitled"
	MaxTitleLength   = 200
)

// Page is a titled container node in the document tree. A nil ParentPageID
// marks a root page; child pages are reachable through their parent's
// page-reference blocks.
type Page struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	OwnerID      string    `json:"ownerId"`
	ParentPageID *string   `json:"parentPageId"`
	IsPublic     bool      `json:"isPublic"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NormalizeTitle trims a title, substitutes the default for blank input and
// enforces the length limit (in characters).
func NormalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultPageTitle, nil
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", fmt.Errorf("%w: title exceeds %d characters", ErrValidation, MaxTitleLength)
	}
	return title, nil
}

// PageStore is the Page Tree Accessor.
type PageStore interface {
	CreatePage(ctx context.Context, p *Page) error
	GetPage(ctx context.Context, id string) (*Page, error)
	UpdatePage(ctx context.Context, p *Page) error
	DeletePages(ctx context.Context, ids []string) (int64, error)
	ListRootPages(ctx context.Context, ownerID string) ([]Page, error)
	ListChildPages(ctx context.Context, ownerID, parentID string) ([]Page, error)
	GetPagesByIDs(ctx context.Context, ids []string) ([]Page, error)
}
