package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DB wraps a database/sql connection and the dialect it speaks.
type DB struct {
	conn    *sql.DB
	dialect dialect
}

// Open connects using opts, then applies the schema.
func Open(opts Options) (*DB, error) {
	d, err := lookupDialect(opts.driverName())
	if err != nil {
		return nil, err
	}
	dsn, err := opts.dsn()
	if err != nil {
		return nil, err
	}
	if d.name == "sqlite" && opts.Path != "" && opts.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	if d.name == "sqlite" {
		// SQLite only supports one writer; a single connection also keeps
		// :memory: databases alive across calls.
		conn.SetMaxOpenConns(1)
	}

	db := &DB{conn: conn, dialect: d}
	if err := db.Migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// New opens (or creates) the SQLite file at dbPath. ":memory:" gives a
// private in-memory database.
func New(dbPath string) (*DB, error) {
	return Open(Options{Driver: "sqlite", Path: dbPath})
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Driver returns the configured dialect name.
func (db *DB) Driver() string {
	return db.dialect.name
}

// Ping checks the connection, used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Migrate creates the tables and indexes. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	d := db.dialect
	migrations := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS pages (
			id VARCHAR(64) PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			owner_id VARCHAR(128) NOT NULL,
			parent_page_id VARCHAR(64) NULL,
			is_public INTEGER NOT NULL DEFAULT 0,
			created_at %[1]s NOT NULL,
			updated_at %[1]s NOT NULL
		)`, d.timeType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS blocks (
			id VARCHAR(64) PRIMARY KEY,
			page_id VARCHAR(64) NOT NULL,
			type VARCHAR(32) NOT NULL,
			sort_order INTEGER NOT NULL DEFAULT 0,
			content %[2]s NOT NULL,
			background_color VARCHAR(32) NULL,
			ref_page_id VARCHAR(64) NULL,
			created_at %[1]s NOT NULL,
			updated_at %[1]s NOT NULL
		)`, d.timeType, d.textType),
		d.createIndex("idx_pages_owner_parent", "pages", "owner_id, parent_page_id"),
		d.createIndex("idx_blocks_page_order", "blocks", "page_id, sort_order"),
		d.createIndex("idx_blocks_ref_page", "blocks", "ref_page_id"),
	}

	for _, m := range migrations {
		if _, err := db.conn.ExecContext(ctx, m); err != nil {
			// MySQL has no CREATE INDEX IF NOT EXISTS
			if strings.HasPrefix(m, "CREATE INDEX") && strings.Contains(err.Error(), "Duplicate key name") {
				continue
			}
			return fmt.Errorf("migration failed: %s: %w", m[:40], err)
		}
	}
	return nil
}

// ── query helpers ───────────────────────────────────────────

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *DB) exec(ctx context.Context, q execer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, db.dialect.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, q execer, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, db.dialect.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, q execer, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, db.dialect.rebind(query), args...)
}

// inTx runs fn inside a transaction, committing only if fn succeeds.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
