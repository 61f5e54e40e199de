package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
	"github.com/lepinkainen/bookenrich/internal/ratelimit"
	"github.com/lepinkainen/bookenrich/internal/resolve"
)

// Resolver turns one query into an outcome.
type Resolver interface {
	Resolve(ctx context.Context, q book.Query) (resolve.Outcome, error)
}

// Report summarizes a run.
type Report struct {
	Input    int
	Pending  []book.Query
	Added    []book.Record
	Skipped  []book.Query
	Ledger   *Ledger
	Written  bool
	Stopped  bool
	Duration time.Duration
}

// PersistError wraps a failure to save the merged ledger. The records
// computed in the run are in the Report.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist ledger: %v", e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Engine resolves the queries missing from a ledger one at a time and
// appends the results.
type Engine struct {
	resolver Resolver
	store    Store
	delay    time.Duration
}

// NewEngine creates an engine. Consecutive queries are spaced by delay.
func NewEngine(resolver Resolver, store Store, delay time.Duration) *Engine {
	return &Engine{resolver: resolver, store: store, delay: delay}
}

// Run processes queries against the stored ledger.
//
// Nothing is written when no query is pending or none resolved. When the
// run is stopped or ctx is cancelled the in-flight query is discarded, the
// records resolved so far are still saved, and the stop error is returned.
func (e *Engine) Run(ctx context.Context, queries []book.Query) (Report, error) {
	start := time.Now()
	report := Report{Input: len(queries)}

	existing, err := e.store.Load()
	if err != nil {
		return report, fmt.Errorf("load ledger: %w", err)
	}
	report.Ledger = existing
	report.Pending = Pending(queries, existing)

	if len(report.Pending) == 0 {
		slog.Info("All books already processed, nothing to do", "input", len(queries), "ledger", existing.Len())
		return report, nil
	}

	slog.Info("Processing books", "pending", len(report.Pending), "already_done", existing.Len())

	limiter := ratelimit.NewEvery("books", e.delay)
	var runErr error
	for i, q := range report.Pending {
		if err := limiter.Wait(ctx); err != nil {
			runErr = err
			break
		}

		slog.Info("Processing book", "n", i+1, "of", len(report.Pending), "title", q.Title, "isbn", q.Identifier)
		outcome, err := e.resolver.Resolve(ctx, q)
		if err != nil {
			runErr = err
			break
		}
		if outcome.Resolved() {
			report.Added = append(report.Added, *outcome.Record)
		} else {
			report.Skipped = append(report.Skipped, q)
		}
	}
	report.Stopped = runErr != nil
	report.Duration = time.Since(start)

	if runErr != nil {
		slog.Warn("Run interrupted", "resolved", len(report.Added), "error", runErr)
	}

	if len(report.Added) == 0 {
		slog.Info("No new records to save")
		return report, runErr
	}

	merged, _ := existing.Merge(report.Added)
	if err := e.store.Save(merged); err != nil {
		return report, errors.Join(&PersistError{Err: err}, runErr)
	}
	report.Ledger = merged
	report.Written = true
	slog.Info("Saved ledger", "added", len(report.Added), "total", merged.Len())

	return report, runErr
}
