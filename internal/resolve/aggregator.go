// Package resolve turns one partial book query into at most one record: it
// asks the primary source, falls back to the other sources in priority order
// and lets a Chooser pick among their candidates.
package resolve

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
	"github.com/lepinkainen/bookenrich/internal/enrichment/source"
	"github.com/lepinkainen/bookenrich/internal/ratelimit"
)

// Aggregator queries the fallback sources one after another and concatenates
// their candidates in source order.
type Aggregator struct {
	sources []source.Source
	limit   int
	limiter *ratelimit.Limiter
}

// NewAggregator creates an aggregator over sources in priority order. Each
// source contributes at most limit candidates and consecutive source calls
// are spaced by delay.
func NewAggregator(sources []source.Source, limit int, delay time.Duration) *Aggregator {
	return &Aggregator{
		sources: sources,
		limit:   limit,
		limiter: ratelimit.NewEvery("fallbacks", delay),
	}
}

// Collect gathers candidates for q. A source that fails contributes nothing;
// only cancellation of ctx is returned as an error.
func (a *Aggregator) Collect(ctx context.Context, q book.Query) ([]book.Candidate, error) {
	all := []book.Candidate{}
	seen := make(map[string]bool)

	for _, s := range a.sources {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		found := s.Search(ctx, q.Title, q.Identifier)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if a.limit > 0 && len(found) > a.limit {
			found = found[:a.limit]
		}

		added := 0
		for _, c := range found {
			key := dedupeKey(c)
			if seen[key] {
				slog.Debug("Dropping duplicate candidate", "source", s.Name(), "title", c.Title)
				continue
			}
			seen[key] = true
			all = append(all, c)
			added++
		}

		slog.Debug("Fallback source searched", "source", s.Name(), "isbn", q.Identifier, "candidates", added)
	}

	return all, nil
}

// dedupeKey identifies a candidate across sources by normalized title,
// authors and year, ignoring case and Unicode width.
func dedupeKey(c book.Candidate) string {
	fold := cases.Fold()
	normalize := func(s string) string {
		s = fold.String(norm.NFKC.String(s))
		return strings.Join(strings.Fields(s), " ")
	}
	return normalize(c.Title) + "\x00" + normalize(c.Authors) + "\x00" + strings.TrimSpace(c.Year)
}
