// Package ledger keeps the enriched output: reading queries and existing
// records, computing what is still pending, merging new records append-only
// and writing the result back atomically.
package ledger

import (
	"log/slog"
	"slices"

	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
)

// Ledger is an ordered set of records keyed by normalized ISBN. It is never
// modified in place; Merge returns a new value.
type Ledger struct {
	records      []book.Record
	index        map[string]int
	extraColumns []string
}

// New builds a ledger from records in order. Later records with a key that
// is already present are dropped with a warning. Records without an ISBN
// are kept unindexed.
func New(records ...book.Record) *Ledger {
	l := &Ledger{index: make(map[string]int)}
	l.records, _ = l.appendUnique(nil, records)
	return l
}

// Empty returns a ledger with no records.
func Empty() *Ledger {
	return New()
}

func (l *Ledger) appendUnique(dst []book.Record, records []book.Record) ([]book.Record, []string) {
	var dupes []string
	for _, r := range records {
		key := r.Key()
		if key == "" {
			// Hand-entered rows without an ISBN are kept but never matched.
			dst = append(dst, r)
			continue
		}
		if _, ok := l.index[key]; ok {
			slog.Warn("Duplicate ISBN in ledger, keeping first", "isbn", r.ISBN, "book", r.BookName)
			dupes = append(dupes, key)
			continue
		}
		l.index[key] = len(dst)
		dst = append(dst, r)
	}
	return dst, dupes
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	return len(l.records)
}

// Records returns a copy of the records in ledger order.
func (l *Ledger) Records() []book.Record {
	return slices.Clone(l.records)
}

// Has reports whether a record with the normalized key exists.
func (l *Ledger) Has(key string) bool {
	_, ok := l.index[key]
	return ok
}

// Get returns the record for a normalized key.
func (l *Ledger) Get(key string) (book.Record, bool) {
	i, ok := l.index[key]
	if !ok {
		return book.Record{}, false
	}
	return l.records[i], true
}

// ExtraColumns returns the names of unmanaged columns found when the ledger
// was read, in file order.
func (l *Ledger) ExtraColumns() []string {
	return slices.Clone(l.extraColumns)
}

// Merge returns a new ledger holding l's records followed by added, in
// order. Records whose key is already present are not added; their keys are
// returned.
func (l *Ledger) Merge(added []book.Record) (*Ledger, []string) {
	next := &Ledger{
		index:        make(map[string]int, len(l.records)+len(added)),
		extraColumns: slices.Clone(l.extraColumns),
	}
	for k, v := range l.index {
		next.index[k] = v
	}
	var dupes []string
	next.records, dupes = next.appendUnique(slices.Clone(l.records), added)
	return next, dupes
}

// Pending returns the queries whose key is not in l, in input order.
// Repeated keys in queries collapse to their first occurrence and queries
// without an identifier are dropped.
func Pending(queries []book.Query, l *Ledger) []book.Query {
	seen := make(map[string]bool, len(queries))
	var out []book.Query
	for _, q := range queries {
		key := q.Key()
		if key == "" {
			slog.Warn("Skipping row without ISBN", "book", q.Title)
			continue
		}
		if seen[key] || (l != nil && l.Has(key)) {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}
