package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS caches (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS entries (
	cache TEXT NOT NULL,
	key TEXT NOT NULL,
	url TEXT NOT NULL,
	status INTEGER NOT NULL,
	header TEXT,
	body BLOB,
	type TEXT NOT NULL,
	stored_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (cache, key)
);
CREATE INDEX IF NOT EXISTS idx_entries_key ON entries(key);
`

// SQLiteStore persists caches in a SQLite database so they survive restarts
// of the edge process.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Open(ctx context.Context, name string) (Cache, error) {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO caches (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", name, err)
	}
	return &sqliteCache{db: s.db, name: name}, nil
}

func (s *SQLiteStore) Match(ctx context.Context, key string) (*Response, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT e.url, e.status, e.header, e.body, e.type
		 FROM entries e JOIN caches c ON c.name = e.cache
		 WHERE e.key = ?
		 ORDER BY c.seq
		 LIMIT 1`,
		key,
	)
	return scanResponse(row)
}

func (s *SQLiteStore) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM caches WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete cache %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE cache = ?`, name); err != nil {
		return false, fmt.Errorf("failed to delete entries of %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit cache deletion: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM caches ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list caches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan cache name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

type sqliteCache struct {
	db   *sql.DB
	name string
}

func (c *sqliteCache) Name() string { return c.name }

func (c *sqliteCache) Get(ctx context.Context, key string) (*Response, bool, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT url, status, header, body, type FROM entries WHERE cache = ? AND key = ?`,
		c.name, key,
	)
	return scanResponse(row)
}

// Put is a no-op once the cache has been deleted.
func (c *sqliteCache) Put(ctx context.Context, key string, resp *Response) error {
	header, err := json.Marshal(resp.Header)
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO entries (cache, key, url, status, header, body, type)
		 SELECT ?, ?, ?, ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM caches WHERE name = ?)
		 ON CONFLICT (cache, key) DO UPDATE SET
			url = excluded.url,
			status = excluded.status,
			header = excluded.header,
			body = excluded.body,
			type = excluded.type,
			stored_at = CURRENT_TIMESTAMP`,
		c.name, key, resp.URL, resp.Status, string(header), resp.Body, string(resp.Type), c.name,
	)
	if err != nil {
		return fmt.Errorf("failed to store %s in %s: %w", key, c.name, err)
	}
	return nil
}

func (c *sqliteCache) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key FROM entries WHERE cache = ? ORDER BY key`, c.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys of %s: %w", c.name, err)
	}
	defer func() { _ = rows.Close() }()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func scanResponse(row *sql.Row) (*Response, bool, error) {
	var (
		resp   Response
		header sql.NullString
		kind   string
	)
	err := row.Scan(&resp.URL, &resp.Status, &header, &resp.Body, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached response: %w", err)
	}

	resp.Type = ResponseType(kind)
	if header.Valid && header.String != "" && header.String != "null" {
		if err := json.Unmarshal([]byte(header.String), &resp.Header); err != nil {
			return nil, false, fmt.Errorf("failed to decode cached headers: %w", err)
		}
	}
	return &resp, true, nil
}
