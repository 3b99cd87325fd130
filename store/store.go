package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scipunch/feedwiki/entry"
)

//go:embed schema.sql
var schemaSQL string

// Indexes are created once every column they cover exists
const indexSQL = `CREATE INDEX IF NOT EXISTS idx_news_fetched_at ON news(fetched_at);`

// Store keeps every entry ever seen, one row per link
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Row is a stored entry together with its bookkeeping columns
type Row struct {
	ID int64
	entry.Entry
	FetchedAt time.Time
}

// Open initializes the store database at the given path
func Open(ctx context.Context, dbPath string) (*Store, error) {
	// Ensure directory exists
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at '%s' with %w", dbPath, err)
	}
	// One connection keeps the run strictly sequential
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute DDL with %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, indexSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create indexes with %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// migrate upgrades a news table created without fetched_at.
// Rows that predate the column sort as the oldest.
func migrate(ctx context.Context, db *sql.DB) error {
	cols, err := columns(ctx, db, "news")
	if err != nil {
		return err
	}
	if cols["fetched_at"] {
		return nil
	}
	if _, err := db.ExecContext(ctx, "ALTER TABLE news ADD COLUMN fetched_at INTEGER NOT NULL DEFAULT 0"); err != nil {
		return fmt.Errorf("failed to add fetched_at column with %w", err)
	}
	return nil
}

func columns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %s with %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s with %w", table, err)
		}
		out[name] = true
	}
	return out, rows.Err()
}

// Upsert stores e unless its link is already known.
// A duplicate link is not an error: it reports inserted=false and leaves the existing row untouched.
func (s *Store) Upsert(ctx context.Context, e entry.Entry) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO news (title, link, summary, source, pub_date, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.Title, e.Link, e.Summary, e.Source, e.Published, s.now().Unix())
	if err != nil {
		return false, fmt.Errorf("failed to insert '%s' with %w", e.Link, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows with %w", err)
	}
	return affected > 0, nil
}

// Count returns the number of stored entries
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM news").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries with %w", err)
	}
	return n, nil
}

// Recent returns up to limit entries, most recently fetched first
func (s *Store) Recent(ctx context.Context, limit int) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, link, summary, source, pub_date, fetched_at
		FROM news
		ORDER BY fetched_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent entries with %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r         Row
			title     sql.NullString
			summary   sql.NullString
			source    sql.NullString
			published sql.NullString
			fetchedAt int64
		)
		if err := rows.Scan(&r.ID, &title, &r.Link, &summary, &source, &published, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry with %w", err)
		}
		r.Title = title.String
		r.Summary = summary.String
		r.Source = source.String
		r.Published = published.String
		r.FetchedAt = time.Unix(fetchedAt, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the store database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DefaultPath is the store location used when the config does not name one
func DefaultPath() string {
	return "news.db"
}
