package optimize

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when the manifest has no entry for a key.
var ErrNotFound = sql.ErrNoRows

// Entry is one transcoded image recorded in the manifest.
type Entry struct {
	Key       string // source path + content hash + settings
	Source    string
	Output    string // file name under the output directory
	Width     int
	Height    int
	Size      int
	CreatedAt string
}

// Store wraps a SQLite database recording previously transcoded images so
// unchanged sources are not re-encoded across builds.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the manifest database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets concurrent feed builds read while one transcode writes.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS images (
    key TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    output TEXT NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    size INTEGER NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_images_source ON images(source);
`)
	return err
}

// Get returns the manifest entry for key.
func (s *Store) Get(key string) (Entry, error) {
	e := Entry{Key: key}
	err := s.db.QueryRow(`SELECT source, output, width, height, size, created_at FROM images WHERE key = ?`, key).
		Scan(&e.Source, &e.Output, &e.Width, &e.Height, &e.Size, &e.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Save upserts an entry. CreatedAt defaults to now.
func (s *Store) Save(e Entry) error {
	if e.CreatedAt == "" {
		e.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO images (key, source, output, width, height, size, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Key, e.Source, e.Output, e.Width, e.Height, e.Size, e.CreatedAt)
	return err
}

// ListBySource returns every entry produced from source, newest first.
func (s *Store) ListBySource(source string) ([]Entry, error) {
	rows, err := s.db.Query(`SELECT key, source, output, width, height, size, created_at FROM images WHERE source = ? ORDER BY created_at DESC, key`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Source, &e.Output, &e.Width, &e.Height, &e.Size, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the entry for key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM images WHERE key = ?`, key)
	return err
}

// IsNotFound reports whether err means the manifest has no such entry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
