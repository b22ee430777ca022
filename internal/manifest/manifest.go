// Package manifest records every page a build writes in a SQLite database.
package manifest

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS pages (
    page_key    TEXT PRIMARY KEY,
    output      TEXT NOT NULL,
    page_path   TEXT NOT NULL,
    layout      TEXT NOT NULL,
    source      TEXT NOT NULL,
    size        INTEGER NOT NULL,
    checksum    TEXT NOT NULL,
    built_at    DATETIME NOT NULL
);
`

// Entry describes one written page.
type Entry struct {
	Key      string
	Output   string
	PagePath string
	Layout   string
	Source   string
	Size     int
	Checksum string
	BuiltAt  time.Time
}

// NewEntry fills in size and checksum from the written bytes.
func NewEntry(key, output, pagePath, layout, source string, data []byte) Entry {
	sum := sha256.Sum256(data)
	return Entry{
		Key:      key,
		Output:   output,
		PagePath: pagePath,
		Layout:   layout,
		Source:   source,
		Size:     len(data),
		Checksum: hex.EncodeToString(sum[:]),
	}
}

type Recorder struct {
	db *sql.DB
}

// Open creates the database at path if needed.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create manifest schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Record stores e, replacing the row of a previous build of the same page.
func (r *Recorder) Record(e Entry) error {
	if e.BuiltAt.IsZero() {
		e.BuiltAt = time.Now().UTC()
	}
	_, err := r.db.Exec(`INSERT OR REPLACE INTO pages
		(page_key, output, page_path, layout, source, size, checksum, built_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Key, e.Output, e.PagePath, e.Layout, e.Source, e.Size, e.Checksum, e.BuiltAt)
	if err != nil {
		return fmt.Errorf("failed to record page %s: %w", e.Key, err)
	}
	return nil
}

// Entries lists recorded pages ordered by key.
func (r *Recorder) Entries() ([]Entry, error) {
	rows, err := r.db.Query(`SELECT page_key, output, page_path, layout, source, size, checksum, built_at
		FROM pages ORDER BY page_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query manifest: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Output, &e.PagePath, &e.Layout, &e.Source, &e.Size, &e.Checksum, &e.BuiltAt); err != nil {
			return nil, fmt.Errorf("failed to scan manifest row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Recorder) Close() error {
	return r.db.Close()
}
