// Package source implements the metadata sources queried for each book: the
// Google Books API as primary and a fixed set of fallbacks (Goodreads and
// WorldCat search pages, Open Library search, ISBNdb).
package source

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lepinkainen/bookenrich/internal/cache"
	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
)

// Source looks up candidates for one book. Search never fails: transport,
// status, block and parse errors are logged and yield an empty result.
type Source interface {
	Name() string
	Search(ctx context.Context, title, isbn string) []book.Candidate
}

type lookupFunc func(ctx context.Context, title, isbn string) ([]book.Candidate, error)

// search runs lookup behind the common adapter boundary: empty identifiers
// short-circuit, errors become an empty result and at most limit candidates
// come back, each stamped with the queried identifier and the source name.
func search(ctx context.Context, name, title, isbn string, limit int, lookup lookupFunc) []book.Candidate {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		slog.Debug("Skipping lookup without identifier", "source", name, "title", title)
		return []book.Candidate{}
	}

	found, err := lookup(ctx, strings.TrimSpace(title), isbn)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Lookup cancelled", "source", name, "isbn", isbn)
		} else {
			slog.Warn("Source lookup failed", "source", name, "isbn", isbn, "error", err)
		}
		return []book.Candidate{}
	}

	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}

	out := make([]book.Candidate, len(found))
	for i, c := range found {
		c.Identifier = isbn
		c.Source = name
		out[i] = c
	}
	return out
}

// cachedCandidates is the cache payload shared by every source.
type cachedCandidates struct {
	Candidates []book.Candidate `json:"candidates"`
	NotFound   bool             `json:"not_found"`
}

// cachedLookup wraps fetch with the response cache. Empty results are kept
// for the shorter negative TTL; errors are not cached.
func cachedLookup(c *cache.CacheDB, table, key string, fetch func() ([]book.Candidate, error)) ([]book.Candidate, error) {
	result, fromCache, err := cache.GetOrFetchWithTTL(c, table, key, func() (cachedCandidates, error) {
		found, err := fetch()
		if err != nil {
			return cachedCandidates{}, err
		}
		return cachedCandidates{Candidates: found, NotFound: len(found) == 0}, nil
	}, cache.SelectNegativeCacheTTL(func(r cachedCandidates) bool {
		return r.NotFound
	}))
	if err != nil {
		return nil, err
	}
	if fromCache {
		slog.Debug("Using cached lookup", "table", table, "key", key, "candidates", len(result.Candidates))
	}
	return result.Candidates, nil
}

// collapseSpace trims s and folds internal runs of whitespace to one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
