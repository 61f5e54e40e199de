package resolve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
	"github.com/lepinkainen/bookenrich/internal/enrichment/source"
	apperrors "github.com/lepinkainen/bookenrich/internal/errors"
)

// State is a step of the per-query resolution.
type State int

const (
	StateStart State = iota
	StatePrimaryLookup
	StateFallbackSearch
	StateDisambiguate
	StateResolved
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StatePrimaryLookup:
		return "primary_lookup"
	case StateFallbackSearch:
		return "fallback_search"
	case StateDisambiguate:
		return "disambiguate"
	case StateResolved:
		return "resolved"
	case StateSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the terminal result for one query: a record when resolved, nil
// when skipped. Via is the state that produced it.
type Outcome struct {
	Record *book.Record
	Via    State
}

// Resolved reports whether the query produced a record.
func (o Outcome) Resolved() bool {
	return o.Record != nil
}

// Resolver drives one query through primary lookup, fallback search and
// disambiguation.
type Resolver struct {
	primary    source.Source
	aggregator *Aggregator
	chooser    Chooser
}

// NewResolver wires the pipeline. The chooser is consulted only when the
// primary source has no single match and the fallbacks found something.
func NewResolver(primary source.Source, aggregator *Aggregator, chooser Chooser) *Resolver {
	return &Resolver{primary: primary, aggregator: aggregator, chooser: chooser}
}

// Resolve returns exactly one outcome per query, or an error when ctx is
// cancelled or the operator stops the run (a StopProcessingError). On error
// no outcome is produced for q.
func (r *Resolver) Resolve(ctx context.Context, q book.Query) (Outcome, error) {
	log := slog.With("title", q.Title, "isbn", q.Identifier)
	state := StateStart

	transition := func(next State) {
		log.Debug("Resolution step", "from", state, "to", next)
		state = next
	}

	transition(StatePrimaryLookup)
	primary := r.primary.Search(ctx, q.Title, q.Identifier)
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	if len(primary) == 1 {
		transition(StateResolved)
		log.Info("Found book", "source", r.primary.Name())
		return Outcome{Record: toRecord(q, primary[0]), Via: StatePrimaryLookup}, nil
	}

	transition(StateFallbackSearch)
	log.Info("No primary match, searching other sources", "primary", r.primary.Name())
	candidates, err := r.aggregator.Collect(ctx, q)
	if err != nil {
		return Outcome{}, err
	}
	if len(candidates) == 0 {
		transition(StateSkipped)
		log.Warn("No results found in any source")
		return Outcome{Via: StateFallbackSearch}, nil
	}

	transition(StateDisambiguate)
	choice, err := r.chooser.Choose(ctx, q, candidates)
	if err != nil {
		return Outcome{}, fmt.Errorf("choosing candidate for %q: %w", q.Identifier, err)
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	if choice.Stop {
		return Outcome{}, apperrors.NewStopProcessingError("stopped by user")
	}
	if choice.Candidate == nil {
		transition(StateSkipped)
		log.Info("Skipped book")
		return Outcome{Via: StateDisambiguate}, nil
	}

	transition(StateResolved)
	log.Info("Selected candidate", "source", choice.Candidate.Source, "match", choice.Candidate.Title)
	return Outcome{Record: toRecord(q, *choice.Candidate), Via: StateDisambiguate}, nil
}

// toRecord keys the record on the query identifier so a rerun finds it in
// the ledger even when the source reported another edition's ISBN.
func toRecord(q book.Query, c book.Candidate) *book.Record {
	rec := c.Record()
	if rec.BookName == "" {
		rec.BookName = q.Title
	}
	if q.Identifier != "" {
		rec.ISBN = q.Identifier
	}
	return &rec
}
