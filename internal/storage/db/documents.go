package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Document is the last successfully fetched copy of an upstream metadata document
type Document struct {
	Key       string
	URL       string
	Body      []byte
	FetchedAt time.Time
}

// SaveDocument stores or replaces a metadata document
func (d *DB) SaveDocument(doc *Document) error {
	fetched := doc.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now()
	}

	_, err := d.Exec(`
		INSERT INTO manifest_cache (doc_key, url, body, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(doc_key) DO UPDATE SET
			url = excluded.url,
			body = excluded.body,
			fetched_at = excluded.fetched_at
	`, doc.Key, doc.URL, doc.Body, fetched.UTC())
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument returns a stored document, or nil if it was never fetched
func (d *DB) GetDocument(key string) (*Document, error) {
	var doc Document
	err := d.QueryRow(`
		SELECT doc_key, url, body, fetched_at FROM manifest_cache WHERE doc_key = ?
	`, key).Scan(&doc.Key, &doc.URL, &doc.Body, &doc.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return &doc, nil
}
