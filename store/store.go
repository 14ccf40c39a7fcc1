// Package store persists processed documents and their extraction
// results in SQLite so a document is only re-processed when its
// content changes.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Document status values.
const (
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// Document represents a row in the documents table.
type Document struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	ContentHash string `json:"content_hash"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Store wraps the SQLite database for result caching.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertDocument inserts or updates a document record. Returns the document ID.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (path, filename, content_hash, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			content_hash = excluded.content_hash,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP
	`, doc.Path, doc.Filename, doc.ContentHash, doc.Status)
	if err != nil {
		return 0, err
	}

	// On the UPDATE path LastInsertId reports the connection's previous
	// INSERT, which is some other row. Resolve the id by path instead.
	var id int64
	row := s.db.QueryRowContext(ctx, "SELECT id FROM documents WHERE path = ?", doc.Path)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetDocumentByPath retrieves a document by its file path.
func (s *Store) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	doc := &Document{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, path, filename, content_hash, status, created_at, updated_at
		FROM documents WHERE path = ?
	`, path).Scan(&doc.ID, &doc.Path, &doc.Filename, &doc.ContentHash,
		&doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns all documents ordered by creation time.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, filename, content_hash, status, created_at, updated_at
		FROM documents ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Path, &d.Filename, &d.ContentHash,
			&d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// GetResult returns the cached extraction payload for a document path,
// content hash and topic, or nil when no current entry exists. A stale
// hash (the file changed since caching) is a miss.
func (s *Store) GetResult(ctx context.Context, path, contentHash, topic string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT r.payload
		FROM results r
		JOIN documents d ON d.id = r.document_id
		WHERE d.path = ? AND d.content_hash = ? AND r.topic = ?
	`, path, contentHash, topic).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

// SaveResult upserts the document record and stores the extraction
// payload keyed by document and topic, replacing any previous entry.
func (s *Store) SaveResult(ctx context.Context, path, contentHash, topic string, payload []byte) error {
	docID, err := s.UpsertDocument(ctx, Document{
		Path:        path,
		Filename:    filepath.Base(path),
		ContentHash: contentHash,
		Status:      StatusProcessed,
	})
	if err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (document_id, topic, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(document_id, topic) DO UPDATE SET
			payload = excluded.payload,
			created_at = CURRENT_TIMESTAMP
	`, docID, topic, string(payload))
	if err != nil {
		return fmt.Errorf("saving result: %w", err)
	}
	return nil
}
