package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"blocknotes/internal/domain"
)

// BlockStore implements domain.BlockStore over SQL.
type BlockStore struct {
	db *DB
}

func NewBlockStore(db *DB) *BlockStore {
	return &BlockStore{db: db}
}

var _ domain.BlockStore = (*BlockStore)(nil)

const blockColumns = `id, page_id, type, sort_order, content, background_color, ref_page_id, created_at, updated_at`

var blockColumnList = strings.Split(strings.ReplaceAll(blockColumns, " ", ""), ",")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (domain.Block, error) {
	var (
		b       domain.Block
		content string
		color   sql.NullString
		ref     sql.NullString
	)
	if err := row.Scan(&b.ID, &b.PageID, &b.Type, &b.Order, &content, &color, &ref, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return b, err
	}
	c, err := domain.DecodeContent(b.Type, []byte(content))
	if err != nil {
		return b, fmt.Errorf("decode block %s: %w", b.ID, err)
	}
	b.Content = c
	if color.Valid {
		col := domain.Color(color.String)
		b.BackgroundColor = &col
	}
	return b, nil
}

// blockArgs returns the column values for b in blockColumns order.
func blockArgs(b *domain.Block) ([]any, error) {
	content, err := json.Marshal(b.Content)
	if err != nil {
		return nil, fmt.Errorf("encode block %s content: %w", b.ID, err)
	}
	var color, ref any
	if b.BackgroundColor != nil {
		color = string(*b.BackgroundColor)
	}
	if id, ok := b.RefPageID(); ok {
		ref = id
	}
	return []any{b.ID, b.PageID, string(b.Type), b.Order, string(content), color, ref, b.CreatedAt, b.UpdatedAt}, nil
}

func (s *BlockStore) scanAll(rows *sql.Rows) ([]domain.Block, error) {
	defer rows.Close()
	blocks := []domain.Block{}
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

func (s *BlockStore) ListBlocks(ctx context.Context, q domain.BlockQuery) ([]domain.Block, error) {
	var sb strings.Builder
	args := []any{q.PageID}
	sb.WriteString(`SELECT ` + blockColumns + ` FROM blocks WHERE page_id = ?`)
	if q.After != nil {
		sb.WriteString(` AND sort_order > ?`)
		args = append(args, *q.After)
	}
	if len(q.ExcludeTypes) > 0 {
		sb.WriteString(` AND type NOT IN (` + placeholders(len(q.ExcludeTypes)) + `)`)
		for _, t := range q.ExcludeTypes {
			args = append(args, string(t))
		}
	}
	sb.WriteString(` ORDER BY sort_order ASC, id ASC`)
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := s.db.query(ctx, s.db.conn, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return s.scanAll(rows)
}

func (s *BlockStore) GetBlock(ctx context.Context, id string) (*domain.Block, error) {
	row := s.db.queryRow(ctx, s.db.conn, `SELECT `+blockColumns+` FROM blocks WHERE id = ?`, id)
	b, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get block %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get block: %w", err)
	}
	return &b, nil
}

func (s *BlockStore) CreateBlock(ctx context.Context, b *domain.Block) error {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	return s.insert(ctx, s.db.conn, b)
}

func (s *BlockStore) insert(ctx context.Context, q execer, b *domain.Block) error {
	args, err := blockArgs(b)
	if err != nil {
		return err
	}
	_, err = s.db.exec(ctx, q,
		`INSERT INTO blocks (`+blockColumns+`) VALUES (`+placeholders(len(args))+`)`, args...)
	if err != nil {
		return fmt.Errorf("insert block %s: %w", b.ID, err)
	}
	return nil
}

func (s *BlockStore) UpdateBlock(ctx context.Context, b *domain.Block) error {
	b.UpdatedAt = time.Now().UTC()
	args, err := blockArgs(b)
	if err != nil {
		return err
	}
	// args: id, page_id, type, sort_order, content, color, ref, created_at, updated_at
	res, err := s.db.exec(ctx, s.db.conn,
		`UPDATE blocks SET page_id = ?, type = ?, sort_order = ?, content = ?, background_color = ?, ref_page_id = ?, updated_at = ? WHERE id = ?`,
		args[1], args[2], args[3], args[4], args[5], args[6], args[8], args[0],
	)
	if err != nil {
		return fmt.Errorf("update block: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports zero for unchanged rows, so confirm before failing.
		if _, err := s.GetBlock(ctx, b.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *BlockStore) DeleteBlock(ctx context.Context, id string) error {
	_, err := s.db.exec(ctx, s.db.conn, `DELETE FROM blocks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	return nil
}

func (s *BlockStore) DeleteBlocks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.exec(ctx, s.db.conn,
		`DELETE FROM blocks WHERE id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("delete blocks: %w", err)
	}
	return nil
}

// InsertBlocks inserts every block in one transaction.
func (s *BlockStore) InsertBlocks(ctx context.Context, blocks []domain.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		for i := range blocks {
			blocks[i].CreatedAt = now
			blocks[i].UpdatedAt = now
			if err := s.insert(ctx, tx, &blocks[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplySnapshot upserts every block and deletes the page's other blocks in
// one transaction. created_at is preserved for rows that already exist.
func (s *BlockStore) ApplySnapshot(ctx context.Context, pageID string, blocks []domain.Block) error {
	now := time.Now().UTC()
	updateCols := []string{"page_id", "type", "sort_order", "content", "background_color", "ref_page_id", "updated_at"}
	upsert := `INSERT INTO blocks (` + blockColumns + `) VALUES (` + placeholders(len(blockColumnList)) + `)` +
		s.db.dialect.upsert("id", updateCols)

	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		ids := make([]string, 0, len(blocks))
		for i := range blocks {
			b := &blocks[i]
			b.PageID = pageID
			if b.CreatedAt.IsZero() {
				b.CreatedAt = now
			}
			b.UpdatedAt = now
			args, err := blockArgs(b)
			if err != nil {
				return err
			}
			if _, err := s.db.exec(ctx, tx, upsert, args...); err != nil {
				return fmt.Errorf("upsert block %s: %w", b.ID, err)
			}
			ids = append(ids, b.ID)
		}

		if len(ids) == 0 {
			if _, err := s.db.exec(ctx, tx, `DELETE FROM blocks WHERE page_id = ?`, pageID); err != nil {
				return fmt.Errorf("clear page blocks: %w", err)
			}
			return nil
		}
		args := append([]any{pageID}, stringArgs(ids)...)
		_, err := s.db.exec(ctx, tx,
			`DELETE FROM blocks WHERE page_id = ? AND id NOT IN (`+placeholders(len(ids))+`)`, args...)
		if err != nil {
			return fmt.Errorf("delete stale blocks: %w", err)
		}
		return nil
	})
}

func (s *BlockStore) DeleteBlocksByPages(ctx context.Context, pageIDs []string) (int64, error) {
	if len(pageIDs) == 0 {
		return 0, nil
	}
	res, err := s.db.exec(ctx, s.db.conn,
		`DELETE FROM blocks WHERE page_id IN (`+placeholders(len(pageIDs))+`)`, stringArgs(pageIDs)...)
	if err != nil {
		return 0, fmt.Errorf("delete page blocks: %w", err)
	}
	return res.RowsAffected()
}

// DeletePageRefs removes the page-reference blocks in parentPageID that
// point at refPageID, under either its raw or canonical spelling.
func (s *BlockStore) DeletePageRefs(ctx context.Context, parentPageID, refPageID string) (int64, error) {
	forms := domain.IDForms(refPageID)
	args := append([]any{parentPageID, string(domain.BlockTypePage)}, stringArgs(forms)...)
	res, err := s.db.exec(ctx, s.db.conn,
		`DELETE FROM blocks WHERE page_id = ? AND type = ? AND ref_page_id IN (`+placeholders(len(forms))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete page refs: %w", err)
	}
	return res.RowsAffected()
}

func (s *BlockStore) MaxOrder(ctx context.Context, pageID string) (int, bool, error) {
	var maxOrder sql.NullInt64
	err := s.db.queryRow(ctx, s.db.conn, `SELECT MAX(sort_order) FROM blocks WHERE page_id = ?`, pageID).Scan(&maxOrder)
	if err != nil {
		return 0, false, fmt.Errorf("max order: %w", err)
	}
	return int(maxOrder.Int64), maxOrder.Valid, nil
}

func (s *BlockStore) ForeignBlockIDs(ctx context.Context, pageID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := append([]any{pageID}, stringArgs(ids)...)
	rows, err := s.db.query(ctx, s.db.conn,
		`SELECT id FROM blocks WHERE page_id <> ? AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("foreign block ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *BlockStore) ListDanglingRefs(ctx context.Context, limit int) ([]domain.Block, error) {
	query := `SELECT b.id, b.page_id, b.type, b.sort_order, b.content, b.background_color, b.ref_page_id, b.created_at, b.updated_at
		FROM blocks b LEFT JOIN pages p ON p.id = b.ref_page_id
		WHERE b.type = ? AND p.id IS NULL
		ORDER BY b.page_id, b.sort_order`
	args := []any{string(domain.BlockTypePage)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.query(ctx, s.db.conn, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dangling refs: %w", err)
	}
	return s.scanAll(rows)
}

// likeEscaper escapes LIKE wildcards for an ESCAPE '!' clause.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// CountImageRefs counts image blocks, on any page, whose URL is exactly
// url. The LIKE match on the encoded content only narrows the scan; each
// candidate is decoded and compared.
func (s *BlockStore) CountImageRefs(ctx context.Context, url string) (int, error) {
	encoded, err := json.Marshal(url)
	if err != nil {
		return 0, fmt.Errorf("encode image url: %w", err)
	}
	rows, err := s.db.query(ctx, s.db.conn,
		`SELECT `+blockColumns+` FROM blocks WHERE type = ? AND content LIKE ? ESCAPE '!'`,
		string(domain.BlockTypeImage), `%"url":`+likeEscaper.Replace(string(encoded))+`%`)
	if err != nil {
		return 0, fmt.Errorf("count image refs: %w", err)
	}
	candidates, err := s.scanAll(rows)
	if err != nil {
		return 0, fmt.Errorf("count image refs: %w", err)
	}
	n := 0
	for _, b := range candidates {
		if img, ok := b.Content.(*domain.ImageContent); ok && img.URL == url {
			n++
		}
	}
	return n, nil
}
