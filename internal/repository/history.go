package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Download is one completed delivery.
type Download struct {
	ID        string
	UserID    int64
	Title     string
	Quality   string
	SizeBytes int64
	CreatedAt time.Time
}

// SQLiteHistory persists completed downloads to a local SQLite database.
type SQLiteHistory struct {
	db *sql.DB
}

// NewSQLiteHistory opens (creating if needed) the history database at path.
func NewSQLiteHistory(path string) (*SQLiteHistory, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS downloads (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			quality TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_downloads_user ON downloads(user_id, created_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteHistory{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteHistory) Close() error {
	return s.db.Close()
}

// Record stores one completed download.
func (s *SQLiteHistory) Record(ctx context.Context, d Download) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO downloads (id, user_id, title, quality, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.Title, d.Quality, d.SizeBytes, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert download: %w", err)
	}
	return nil
}

// Recent returns the user's most recent downloads, newest first.
func (s *SQLiteHistory) Recent(ctx context.Context, userID int64, limit int) ([]Download, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, quality, size_bytes, created_at
		 FROM downloads WHERE user_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query downloads: %w", err)
	}
	defer rows.Close()

	var out []Download
	for rows.Next() {
		var d Download
		if err := rows.Scan(&d.ID, &d.UserID, &d.Title, &d.Quality, &d.SizeBytes, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
