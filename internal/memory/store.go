// Package memory provides the agent's persistent key-value memory. Every
// operation is scoped to a single run identifier so concurrent or
// sequential experiments sharing one database file never observe each
// other's entries.
package memory

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a run-scoped key-value store backed by SQLite.
type Store struct {
	db    *sql.DB
	runID string
}

// NewStore opens (creating if necessary) the memory database at dbPath
// and scopes all operations to runID.
func NewStore(dbPath, runID string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, runID: runID}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewStoreWithDB scopes a store to runID over an existing connection.
func NewStoreWithDB(db *sql.DB, runID string) (*Store, error) {
	s := &Store{db: db, runID: runID}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memory_entries (
		run_id     TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (run_id, key)
	);
	CREATE INDEX IF NOT EXISTS idx_memory_run ON memory_entries(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunID returns the run identifier this store is scoped to.
func (s *Store) RunID() string { return s.runID }

// Write upserts a key/value pair. It reports whether the key was newly
// created (false means an existing value was overwritten).
func (s *Store) Write(key, value string) (created bool, err error) {
	now := time.Now().UTC().Format(time.RFC3339)

	var exists int
	err = s.db.QueryRow(
		`SELECT 1 FROM memory_entries WHERE run_id = ? AND key = ?`,
		s.runID, key,
	).Scan(&exists)
	switch {
	case err == sql.ErrNoRows:
		created = true
	case err != nil:
		return false, fmt.Errorf("check %s: %w", key, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO memory_entries (run_id, key, value, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, key) DO UPDATE
		 SET value = excluded.value, updated_at = excluded.updated_at`,
		s.runID, key, value, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("write %s: %w", key, err)
	}
	return created, nil
}

// Read returns the value for key, with found=false when the key does not
// exist for this run.
func (s *Store) Read(key string) (value string, found bool, err error) {
	err = s.db.QueryRow(
		`SELECT value FROM memory_entries WHERE run_id = ? AND key = ?`,
		s.runID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return value, true, nil
}

// Keys returns all keys for this run in insertion order.
func (s *Store) Keys() ([]string, error) {
	return s.queryKeys(
		`SELECT key FROM memory_entries WHERE run_id = ? ORDER BY rowid`,
		s.runID,
	)
}

// Delete removes a key. It reports whether an entry actually existed.
func (s *Store) Delete(key string) (existed bool, err error) {
	res, err := s.db.Exec(
		`DELETE FROM memory_entries WHERE run_id = ? AND key = ?`,
		s.runID, key,
	)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	return n > 0, nil
}

// SearchKeys returns the keys for this run containing the given
// substring, in insertion order. LIKE metacharacters in the substring are
// escaped so the match is a literal substring match.
func (s *Store) SearchKeys(substring string) ([]string, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(substring)
	return s.queryKeys(
		`SELECT key FROM memory_entries
		 WHERE run_id = ? AND key LIKE '%' || ? || '%' ESCAPE '\'
		 ORDER BY rowid`,
		s.runID, escaped,
	)
}

func (s *Store) queryKeys(query string, args ...any) ([]string, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
