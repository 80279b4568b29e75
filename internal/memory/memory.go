// Package memory provides a SQLite-backed structured memory store for DSLA.
// Entries are keyed by (domain, key) and hold arbitrary JSON values plus
// metadata, persisted across server restarts so adapters can recall prior
// results.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// ErrNotFound is returned by Get when no entry exists for (domain, key).
var ErrNotFound = errors.New("memory: entry not found")

// Entry is a single structured memory record.
type Entry struct {
	// ID is the row identifier assigned by the store.
	ID int64 `json:"id"`
	// Domain is the adapter domain this memory belongs to.
	Domain string `json:"domain"`
	// Key uniquely identifies the memory within its domain.
	Key string `json:"key"`
	// Value is the memory content.
	Value map[string]any `json:"value"`
	// Metadata holds additional context for the entry.
	Metadata map[string]any `json:"metadata"`
	// Timestamp is when the entry was last stored.
	Timestamp time.Time `json:"timestamp"`
}

// Store persists and retrieves structured memory entries. Implementations
// must be safe for concurrent use.
type Store interface {
	// Put inserts or replaces the entry at (entry.Domain, entry.Key) and
	// returns its row ID.
	Put(ctx context.Context, entry *Entry) (int64, error)
	// Get returns the entry at (domain, key), or ErrNotFound.
	Get(ctx context.Context, domain, key string) (*Entry, error)
	// Query returns up to limit entries, newest first, optionally filtered
	// by domain (empty domain matches all), skipping offset rows.
	Query(ctx context.Context, domain string, limit, offset int) ([]Entry, error)
	// Delete removes the entry at (domain, key) and reports whether one existed.
	Delete(ctx context.Context, domain, key string) (bool, error)
	// ClearDomain removes all entries for a domain and returns the count removed.
	ClearDomain(ctx context.Context, domain string) (int64, error)
	// Ping checks the underlying database connection.
	Ping(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration, creating the parent directory as needed. Use ":memory:" for an
// in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("memory: create directory %s: %w", dir, err)
			}
		}
	}

	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("memory: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the memories table and its indexes if they do not exist.
func (s *SQLiteStore) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	domain    TEXT NOT NULL,
	key       TEXT NOT NULL,
	value     TEXT NOT NULL,
	metadata  TEXT,
	timestamp INTEGER NOT NULL,
	UNIQUE(domain, key)
);
CREATE INDEX IF NOT EXISTS idx_memories_domain ON memories(domain);
CREATE INDEX IF NOT EXISTS idx_memories_key ON memories(key);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("memory: migrate schema: %w", err)
	}
	return nil
}

// Put inserts or replaces the entry at (entry.Domain, entry.Key).
func (s *SQLiteStore) Put(ctx context.Context, entry *Entry) (int64, error) {
	valueJSON, err := json.Marshal(entry.Value)
	if err != nil {
		return 0, fmt.Errorf("memory: encode value: %w", err)
	}
	metaJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return 0, fmt.Errorf("memory: encode metadata: %w", err)
	}

	// Timestamps are stored as integer epoch nanoseconds so the newest-first
	// ORDER BY compares numerically, not lexicographically.
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO memories (domain, key, value, metadata, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		entry.Domain, entry.Key, string(valueJSON), string(metaJSON), ts.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("memory: store entry %s/%s: %w", entry.Domain, entry.Key, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("memory: last insert id: %w", err)
	}
	return id, nil
}

// Get returns the entry at (domain, key), or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, domain, key string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, domain, key, value, metadata, timestamp
		FROM memories
		WHERE domain = ? AND key = ?`,
		domain, key,
	)

	entry, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("memory: get entry %s/%s: %w", domain, key, err)
	}
	return entry, nil
}

// Query returns up to limit entries, newest first. An empty domain matches
// all domains.
func (s *SQLiteStore) Query(ctx context.Context, domain string, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, domain, key, value, metadata, timestamp
		FROM memories
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?`
	args := []any{limit, offset}
	if domain != "" {
		query = `
		SELECT id, domain, key, value, metadata, timestamp
		FROM memories
		WHERE domain = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?`
		args = []any{domain, limit, offset}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: query domain %q: %w", domain, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("memory: scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memory: iterate entries: %w", err)
	}
	return entries, nil
}

// Delete removes the entry at (domain, key) and reports whether one existed.
func (s *SQLiteStore) Delete(ctx context.Context, domain, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE domain = ? AND key = ?`, domain, key)
	if err != nil {
		return false, fmt.Errorf("memory: delete entry %s/%s: %w", domain, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("memory: rows affected: %w", err)
	}
	return n > 0, nil
}

// ClearDomain removes all entries for a domain and returns the count removed.
func (s *SQLiteStore) ClearDomain(ctx context.Context, domain string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE domain = ?`, domain)
	if err != nil {
		return 0, fmt.Errorf("memory: clear domain %q: %w", domain, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("memory: rows affected: %w", err)
	}
	return n, nil
}

// Ping checks the underlying database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanEntry decodes one memories row via the given Scan function.
func scanEntry(scan func(...any) error) (*Entry, error) {
	var (
		entry    Entry
		value    string
		metadata sql.NullString
		ts       int64
	)
	if err := scan(&entry.ID, &entry.Domain, &entry.Key, &value, &metadata, &ts); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(value), &entry.Value); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	entry.Metadata = map[string]any{}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}

	entry.Timestamp = time.Unix(0, ts).UTC()
	return &entry, nil
}
