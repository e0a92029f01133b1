/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package delta provides change-detection sources for incremental runs.
package delta

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	mfs "bennypowers.dev/minnow/fs"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
	path TEXT PRIMARY KEY,
	hash TEXT NOT NULL,
	size INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

type entry struct {
	hash string
	size int64
}

// Manifest detects changes by comparing content hashes against a sqlite
// database written by the previous run. The first run against an empty
// manifest is a full run.
type Manifest struct {
	db  *sql.DB
	fs  mfs.FileSystem
	now func() time.Time

	incremental bool

	mu      sync.Mutex
	stored  map[string]entry
	current map[string]entry
	staged  map[string]entry
	removed map[string]struct{}
}

// ManifestOption configures a Manifest.
type ManifestOption func(*Manifest)

// WithFileSystem reads inputs through fsys instead of the OS.
func WithFileSystem(fsys mfs.FileSystem) ManifestOption {
	return func(m *Manifest) { m.fs = fsys }
}

// Open opens or creates the manifest database at dbPath.
func Open(ctx context.Context, dbPath string, opts ...ManifestOption) (*Manifest, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", dbPath, err)
	}

	m := &Manifest{
		db:      db,
		fs:      mfs.NewOSFileSystem(),
		now:     time.Now,
		stored:  make(map[string]entry),
		current: make(map[string]entry),
		staged:  make(map[string]entry),
		removed: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manifest) load(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("initialize manifest schema: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, "SELECT path, hash, size FROM files")
	if err != nil {
		return fmt.Errorf("query manifest: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var path string
		var e entry
		if err := rows.Scan(&path, &e.hash, &e.size); err != nil {
			return fmt.Errorf("scan manifest row: %w", err)
		}
		m.stored[path] = e
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate manifest rows: %w", err)
	}

	m.incremental = len(m.stored) > 0
	return nil
}

// IsIncremental reports whether the manifest held any entries when opened.
func (m *Manifest) IsIncremental() bool {
	return m.incremental
}

// HasChanged reports whether the content at path differs from the stored
// hash. Unknown and unreadable files count as changed.
func (m *Manifest) HasChanged(path string) bool {
	key := filepath.Clean(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.hashLocked(key)
	if !ok {
		return true
	}
	prev, known := m.stored[key]
	return !known || prev.hash != cur.hash
}

// Observe stages the current content hash of path for the next Commit.
func (m *Manifest) Observe(path string) {
	key := filepath.Clean(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.hashLocked(key); ok {
		m.staged[key] = cur
		delete(m.removed, key)
	}
}

// Removed drops path from the manifest on the next Commit.
func (m *Manifest) Removed(path string) {
	key := filepath.Clean(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.staged, key)
	delete(m.current, key)
	m.removed[key] = struct{}{}
}

func (m *Manifest) hashLocked(key string) (entry, bool) {
	if e, ok := m.current[key]; ok {
		return e, true
	}
	data, err := m.fs.ReadFile(key)
	if err != nil {
		return entry{}, false
	}
	sum := sha256.Sum256(data)
	e := entry{hash: hex.EncodeToString(sum[:]), size: int64(len(data))}
	m.current[key] = e
	return e, true
}

// Commit writes staged hashes and removals in a single transaction.
func (m *Manifest) Commit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.staged) == 0 && len(m.removed) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin manifest transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updated := m.now().Unix()
	for path, e := range m.staged {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO files (path, hash, size, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, size = excluded.size, updated_at = excluded.updated_at`,
			path, e.hash, e.size, updated,
		)
		if err != nil {
			return fmt.Errorf("record %s: %w", path, err)
		}
	}
	for path := range m.removed {
		if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE path = ?", path); err != nil {
			return fmt.Errorf("forget %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit manifest: %w", err)
	}

	for path, e := range m.staged {
		m.stored[path] = e
	}
	for path := range m.removed {
		delete(m.stored, path)
	}
	clear(m.staged)
	clear(m.removed)
	return nil
}

// Close closes the database. Uncommitted changes are discarded.
func (m *Manifest) Close() error {
	return m.db.Close()
}
