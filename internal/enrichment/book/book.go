// Package book defines the records that flow through the enrichment pipeline:
// the partial input query, the per-source candidate and the persisted record.
package book

import (
	"fmt"
	"strings"
)

// Query is one input row: a book name and its ISBN.
type Query struct {
	Title      string
	Identifier string
}

// Key returns the normalized identifier used to join queries with the ledger.
func (q Query) Key() string {
	return NormalizeISBN(q.Identifier)
}

// Candidate is a metadata guess produced by exactly one source for one query.
// Every field except Identifier and Source may be empty.
type Candidate struct {
	Title      string  `json:"title"`
	Identifier string  `json:"identifier"`
	Authors    string  `json:"authors,omitempty"`
	Publisher  string  `json:"publisher,omitempty"`
	Year       string  `json:"year,omitempty"`
	Pages      int     `json:"pages,omitempty"`
	Rating     float64 `json:"rating,omitempty"`
	URL        string  `json:"url,omitempty"`
	Source     string  `json:"source"`
	CoverURL   string  `json:"cover_url,omitempty"`
}

// Summary renders the candidate the way it is shown to the decision-maker.
func (c Candidate) Summary() string {
	authors := c.Authors
	if authors == "" {
		authors = "unknown author"
	}
	year := c.Year
	if year == "" {
		year = "n.d."
	}
	return fmt.Sprintf("%s by %s (%s) - from %s", c.Title, authors, year, c.Source)
}

// Record promotes the candidate to an output row.
func (c Candidate) Record() Record {
	return Record{
		BookName:  c.Title,
		ISBN:      c.Identifier,
		Authors:   c.Authors,
		Publisher: c.Publisher,
		Year:      c.Year,
		Pages:     c.Pages,
		Rating:    c.Rating,
		URL:       c.URL,
		Source:    c.Source,
		CoverURL:  c.CoverURL,
	}
}

// Record is one row of enriched output.
type Record struct {
	BookName  string  `json:"book_name"`
	ISBN      string  `json:"isbn"`
	Authors   string  `json:"authors"`
	Publisher string  `json:"publisher"`
	Year      string  `json:"year"`
	Pages     int     `json:"pages"`
	Rating    float64 `json:"rating"`
	URL       string  `json:"url"`
	Source    string  `json:"source"`

	// CoverURL is kept for the current run only and never persisted.
	CoverURL string `json:"-"`

	// Extra holds columns of an existing output file that this tool does not
	// manage, so that they survive a merge untouched.
	Extra map[string]string `json:"extra,omitempty"`
}

// Key returns the normalized identifier of the record.
func (r Record) Key() string {
	return NormalizeISBN(r.ISBN)
}

// JoinAuthors formats an author list the way records store it.
func JoinAuthors(authors []string) string {
	cleaned := make([]string, 0, len(authors))
	for _, a := range authors {
		if a = strings.TrimSpace(a); a != "" {
			cleaned = append(cleaned, a)
		}
	}
	return strings.Join(cleaned, ", ")
}
