package datastore

import (
	"fmt"
	"time"

	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
)

// BooksTable mirrors the enriched ledger.
const BooksTable = "enriched_books"

// BooksSchema is the schema of BooksTable.
const BooksSchema = `CREATE TABLE IF NOT EXISTS enriched_books (
	isbn TEXT PRIMARY KEY,
	book_name TEXT,
	authors TEXT,
	publisher TEXT,
	year TEXT,
	pages INTEGER,
	rating REAL,
	url TEXT,
	source TEXT,
	run_id TEXT,
	updated_at TEXT
)`

// MirrorRecords upserts records into BooksTable keyed by normalized ISBN,
// stamping each row with the run that wrote it. Records without an ISBN are
// skipped.
func MirrorRecords(store Store, runID string, at time.Time, records []book.Record) error {
	if err := store.CreateTable(BooksSchema); err != nil {
		return err
	}

	rows := make([]map[string]any, 0, len(records))
	for _, r := range records {
		key := r.Key()
		if key == "" {
			continue
		}
		rows = append(rows, map[string]any{
			"isbn":       key,
			"book_name":  r.BookName,
			"authors":    r.Authors,
			"publisher":  r.Publisher,
			"year":       r.Year,
			"pages":      r.Pages,
			"rating":     r.Rating,
			"url":        r.URL,
			"source":     r.Source,
			"run_id":     runID,
			"updated_at": at.UTC().Format(time.RFC3339),
		})
	}

	if err := store.BatchUpsert(BooksTable, "isbn", rows); err != nil {
		return fmt.Errorf("mirror %d records: %w", len(rows), err)
	}
	return nil
}

// MirrorToFile opens the SQLite database at path, mirrors records and closes it.
func MirrorToFile(path, runID string, records []book.Record) error {
	store := NewSQLiteStore(path)
	if err := store.Connect(); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return MirrorRecords(store, runID, time.Now(), records)
}
