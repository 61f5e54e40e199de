package ledger

import (
	"strconv"
	"strings"

	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
)

// Managed output columns, in file order.
const (
	ColBookName  = "book_name"
	ColISBN      = "isbn"
	ColAuthors   = "authors"
	ColPublisher = "publisher"
	ColYear      = "year"
	ColPages     = "pages"
	ColRating    = "rating"
	ColURL       = "url"
	ColSource    = "source"
)

// RecordColumns is the header of every written ledger.
var RecordColumns = []string{
	ColBookName, ColISBN, ColAuthors, ColPublisher, ColYear, ColPages, ColRating, ColURL, ColSource,
}

func isManaged(col string) bool {
	for _, c := range RecordColumns {
		if c == col {
			return true
		}
	}
	return false
}

// normalizeHeader maps "Book Name" and " ISBN " to book_name and isbn.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.Join(strings.Fields(strings.ToLower(h)), "_")
}

// header indexes column positions by normalized name. The first occurrence of
// a name wins.
type header struct {
	names []string
	pos   map[string]int
}

func newHeader(row []string) header {
	h := header{pos: make(map[string]int, len(row))}
	for i, raw := range row {
		name := normalizeHeader(raw)
		h.names = append(h.names, name)
		if name == "" {
			continue
		}
		if _, ok := h.pos[name]; !ok {
			h.pos[name] = i
		}
	}
	return h
}

func (h header) require(cols ...string) []string {
	var missing []string
	for _, c := range cols {
		if _, ok := h.pos[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

func (h header) extras() []string {
	var out []string
	for i, name := range h.names {
		if name == "" || isManaged(name) || h.pos[name] != i {
			continue
		}
		out = append(out, name)
	}
	return out
}

func (h header) get(row []string, col string) string {
	i, ok := h.pos[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (h header) record(row []string, extras []string) book.Record {
	r := book.Record{
		BookName:  h.get(row, ColBookName),
		ISBN:      h.get(row, ColISBN),
		Authors:   h.get(row, ColAuthors),
		Publisher: h.get(row, ColPublisher),
		Year:      strings.TrimSuffix(h.get(row, ColYear), ".0"),
		Pages:     parsePages(h.get(row, ColPages)),
		Rating:    parseRating(h.get(row, ColRating)),
		URL:       h.get(row, ColURL),
		Source:    h.get(row, ColSource),
	}
	for _, col := range extras {
		if v := h.get(row, col); v != "" {
			if r.Extra == nil {
				r.Extra = make(map[string]string)
			}
			r.Extra[col] = v
		}
	}
	return r
}

func parsePages(s string) int {
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func parseRating(s string) float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return f
}

func formatPages(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func formatRating(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// row renders r in RecordColumns order followed by extras.
func row(r book.Record, extras []string) []string {
	out := []string{
		r.BookName, r.ISBN, r.Authors, r.Publisher, r.Year,
		formatPages(r.Pages), formatRating(r.Rating), r.URL, r.Source,
	}
	for _, col := range extras {
		out = append(out, r.Extra[col])
	}
	return out
}
