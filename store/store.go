// Package store keeps built artifacts and a ledger of substitution builds
// in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/substitute/artifact"
)

var log = commonlog.GetLogger("subst.store")

// ErrNotFound indicates the requested artifact or build doesn't exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	hash       TEXT PRIMARY KEY,
	project    TEXT NOT NULL,
	data       BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS builds (
	id          TEXT PRIMARY KEY,
	project     TEXT NOT NULL,
	mode        TEXT NOT NULL,
	artifact    TEXT NOT NULL REFERENCES artifacts(hash),
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS builds_project ON builds(project, finished_at);
CREATE TABLE IF NOT EXISTS sites (
	build  TEXT NOT NULL REFERENCES builds(id),
	class  TEXT NOT NULL,
	method TEXT NOT NULL,
	idx    INTEGER NOT NULL,
	kind   TEXT NOT NULL,
	member TEXT NOT NULL,
	rule   INTEGER NOT NULL,
	steps  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS skipped (
	build  TEXT NOT NULL REFERENCES builds(id),
	reason TEXT NOT NULL
);
`

// Store is a handle on a build database.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex // serialises writers
}

// Open opens or creates the database at path, creating parent directories
// as needed.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	log.Debugf("opened %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// PutArtifact stores encoded image bytes under their hash. Storing the same
// hash twice keeps the first copy.
func (s *Store) PutArtifact(ctx context.Context, project string, data []byte, hash artifact.Hash) error {
	if err := artifact.Verify(data, hash); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO artifacts (hash, project, data, created_at) VALUES (?, ?, ?, ?)",
		hash.String(), project, data, now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving artifact: %w", err)
	}
	return nil
}

// Artifact returns the encoded image stored under hash.
func (s *Store) Artifact(ctx context.Context, hash artifact.Hash) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM artifacts WHERE hash = ?", hash.String()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("artifact %s: %w", hash.Short(), ErrNotFound)
		}
		return nil, fmt.Errorf("querying artifact: %w", err)
	}
	if err := artifact.Verify(data, hash); err != nil {
		return nil, err
	}
	return data, nil
}

// HasArtifact reports whether an artifact is stored under hash.
func (s *Store) HasArtifact(ctx context.Context, hash artifact.Hash) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM artifacts WHERE hash = ?", hash.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying artifact: %w", err)
	}
	return n > 0, nil
}
