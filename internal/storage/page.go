package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"blocknotes/internal/domain"
)

// PageStore implements domain.PageStore over SQL.
type PageStore struct {
	db *DB
}

func NewPageStore(db *DB) *PageStore {
	return &PageStore{db: db}
}

var _ domain.PageStore = (*PageStore)(nil)

const pageColumns = `id, title, owner_id, parent_page_id, is_public, created_at, updated_at`

func scanPage(row rowScanner) (domain.Page, error) {
	var (
		p      domain.Page
		parent sql.NullString
		public int
	)
	if err := row.Scan(&p.ID, &p.Title, &p.OwnerID, &parent, &public, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	if parent.Valid {
		p.ParentPageID = &parent.String
	}
	p.IsPublic = public != 0
	return p, nil
}

func (s *PageStore) listPages(ctx context.Context, query string, args ...any) ([]domain.Page, error) {
	rows, err := s.db.query(ctx, s.db.conn, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pages := []domain.Page{}
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func (s *PageStore) CreatePage(ctx context.Context, p *domain.Page) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := s.db.exec(ctx, s.db.conn,
		`INSERT INTO pages (`+pageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.OwnerID, nullable(p.ParentPageID), boolInt(p.IsPublic), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	return nil
}

func (s *PageStore) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	p, err := scanPage(s.db.queryRow(ctx, s.db.conn, `SELECT `+pageColumns+` FROM pages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get page %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	return &p, nil
}

func (s *PageStore) UpdatePage(ctx context.Context, p *domain.Page) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := s.db.exec(ctx, s.db.conn,
		`UPDATE pages SET title = ?, parent_page_id = ?, is_public = ?, updated_at = ? WHERE id = ?`,
		p.Title, nullable(p.ParentPageID), boolInt(p.IsPublic), p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update page: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetPage(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *PageStore) DeletePages(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.db.exec(ctx, s.db.conn,
		`DELETE FROM pages WHERE id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...)
	if err != nil {
		return 0, fmt.Errorf("delete pages: %w", err)
	}
	return res.RowsAffected()
}

func (s *PageStore) ListRootPages(ctx context.Context, ownerID string) ([]domain.Page, error) {
	pages, err := s.listPages(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE owner_id = ? AND parent_page_id IS NULL ORDER BY created_at ASC, id ASC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list root pages: %w", err)
	}
	return pages, nil
}

func (s *PageStore) ListChildPages(ctx context.Context, ownerID, parentID string) ([]domain.Page, error) {
	pages, err := s.listPages(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE owner_id = ? AND parent_page_id = ? ORDER BY created_at ASC, id ASC`,
		ownerID, parentID)
	if err != nil {
		return nil, fmt.Errorf("list child pages: %w", err)
	}
	return pages, nil
}

func (s *PageStore) GetPagesByIDs(ctx context.Context, ids []string) ([]domain.Page, error) {
	if len(ids) == 0 {
		return []domain.Page{}, nil
	}
	pages, err := s.listPages(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("get pages: %w", err)
	}
	return pages, nil
}
