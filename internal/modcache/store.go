package modcache

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite persistence layer for cache entries. Entries are
// opaque content-addressed blobs keyed by (module FQN, version); the
// fingerprint column lets divergent-content faults surface across processes
// as well as within one.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("modcache: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("modcache: ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the cache schema. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("modcache: migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS cache_entries (
  module_fqn   TEXT NOT NULL,
  version      TEXT NOT NULL,
  fingerprint  TEXT NOT NULL,
  payload      BLOB NOT NULL,
  created_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (module_fqn, version)
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_version ON cache_entries(version);
`

// Get returns the payload and fingerprint for (fqn, version).
func (s *Store) Get(fqn, version string) (payload []byte, fingerprint string, found bool, err error) {
	row := s.db.QueryRow(
		`SELECT payload, fingerprint FROM cache_entries WHERE module_fqn = ? AND version = ?`,
		fqn, version,
	)
	switch err := row.Scan(&payload, &fingerprint); err {
	case nil:
		return payload, fingerprint, true, nil
	case sql.ErrNoRows:
		return nil, "", false, nil
	default:
		return nil, "", false, fmt.Errorf("modcache: get %s@%s: %w", fqn, version, err)
	}
}

// Put inserts an entry if absent. A concurrent insert of equal content is a
// no-op; an existing row with a different fingerprint is the consistency
// fault ErrDivergent.
func (s *Store) Put(fqn, version, fingerprint string, payload []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO cache_entries (module_fqn, version, fingerprint, payload)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (module_fqn, version) DO NOTHING`,
		fqn, version, fingerprint, payload,
	)
	if err != nil {
		return fmt.Errorf("modcache: put %s@%s: %w", fqn, version, err)
	}

	var existing string
	row := s.db.QueryRow(
		`SELECT fingerprint FROM cache_entries WHERE module_fqn = ? AND version = ?`,
		fqn, version,
	)
	if err := row.Scan(&existing); err != nil {
		return fmt.Errorf("modcache: verify %s@%s: %w", fqn, version, err)
	}
	if existing != fingerprint {
		return fmt.Errorf("%w: module %s version %s (persisted)", ErrDivergent, fqn, version)
	}
	return nil
}

// DeleteVersion removes every entry recorded under version.
func (s *Store) DeleteVersion(version string) error {
	if _, err := s.db.Exec(`DELETE FROM cache_entries WHERE version = ?`, version); err != nil {
		return fmt.Errorf("modcache: invalidate version %s: %w", version, err)
	}
	return nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("modcache: clear: %w", err)
	}
	return nil
}
