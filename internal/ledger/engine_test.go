package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
	apperrors "github.com/lepinkainen/bookenrich/internal/errors"
	"github.com/lepinkainen/bookenrich/internal/resolve"
	"github.com/lepinkainen/bookenrich/internal/testutil"
)

type scriptedResolver struct {
	calls   []string
	results map[string]*book.Record
	errs    map[string]error
}

func (s *scriptedResolver) Resolve(_ context.Context, q book.Query) (resolve.Outcome, error) {
	s.calls = append(s.calls, q.Identifier)
	if err := s.errs[q.Identifier]; err != nil {
		return resolve.Outcome{}, err
	}
	if r := s.results[q.Identifier]; r != nil {
		return resolve.Outcome{Record: r, Via: resolve.StatePrimaryLookup}, nil
	}
	return resolve.Outcome{Via: resolve.StateFallbackSearch}, nil
}

type memStore struct {
	ledger  *Ledger
	saves   int
	saveErr error
}

func (m *memStore) Load() (*Ledger, error) {
	if m.ledger == nil {
		return Empty(), nil
	}
	return m.ledger, nil
}

func (m *memStore) Save(l *Ledger) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.ledger = l
	return nil
}

var (
	q1984 = book.Query{Title: "1984", Identifier: "9780451524935"}
	qDune = book.Query{Title: "Dune", Identifier: "9780441172719"}
	qNeu  = book.Query{Title: "Neuromancer", Identifier: "9780441569595"}
)

func orwellRecord() *book.Record {
	return &book.Record{BookName: "1984", ISBN: "9780451524935", Authors: "George Orwell", Year: "1949", Source: "google"}
}

func TestEngineRun_ResolvesAndAppends(t *testing.T) {
	store := &memStore{ledger: New(rec("Neuromancer", "9780441569595"))}
	res := &scriptedResolver{results: map[string]*book.Record{q1984.Identifier: orwellRecord()}}

	report, err := NewEngine(res, store, 0).Run(context.Background(), []book.Query{qNeu, q1984, qDune})
	require.NoError(t, err)

	require.Equal(t, []string{q1984.Identifier, qDune.Identifier}, res.calls)
	require.Equal(t, []book.Record{*orwellRecord()}, report.Added)
	require.Equal(t, []book.Query{qDune}, report.Skipped)
	require.True(t, report.Written)
	require.Equal(t, 1, store.saves)

	records := store.ledger.Records()
	require.Len(t, records, 2)
	require.Equal(t, "Neuromancer", records[0].BookName)
	require.Equal(t, "George Orwell", records[1].Authors)
}

func TestEngineRun_NothingPendingDoesNotWrite(t *testing.T) {
	store := &memStore{ledger: New(*orwellRecord())}
	res := &scriptedResolver{}

	report, err := NewEngine(res, store, 0).Run(context.Background(), []book.Query{q1984})
	require.NoError(t, err)
	require.Empty(t, report.Pending)
	require.Empty(t, res.calls)
	require.Zero(t, store.saves)
}

func TestEngineRun_AllSkippedDoesNotWrite(t *testing.T) {
	store := &memStore{}
	report, err := NewEngine(&scriptedResolver{}, store, 0).Run(context.Background(), []book.Query{q1984})
	require.NoError(t, err)
	require.Equal(t, []book.Query{q1984}, report.Skipped)
	require.False(t, report.Written)
	require.Zero(t, store.saves)
}

func TestEngineRun_StopKeepsCompletedRecords(t *testing.T) {
	store := &memStore{}
	res := &scriptedResolver{
		results: map[string]*book.Record{q1984.Identifier: orwellRecord()},
		errs:    map[string]error{qDune.Identifier: apperrors.NewStopProcessingError("stopped by user")},
	}

	report, err := NewEngine(res, store, 0).Run(context.Background(), []book.Query{q1984, qDune, qNeu})
	require.True(t, apperrors.IsStopProcessingError(err))
	require.True(t, report.Stopped)
	require.Equal(t, []string{q1984.Identifier, qDune.Identifier}, res.calls)
	require.Equal(t, 1, store.saves)
	require.Equal(t, 1, store.ledger.Len())
}

func TestEngineRun_CancelledBeforeFirstQuery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := &memStore{}
	res := &scriptedResolver{}

	_, err := NewEngine(res, store, 0).Run(ctx, []book.Query{q1984})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, res.calls)
	require.Zero(t, store.saves)
}

func TestEngineRun_PersistFailureReturnsRecords(t *testing.T) {
	boom := errors.New("disk full")
	store := &memStore{saveErr: boom}
	res := &scriptedResolver{results: map[string]*book.Record{q1984.Identifier: orwellRecord()}}

	report, err := NewEngine(res, store, 0).Run(context.Background(), []book.Query{q1984})
	require.ErrorIs(t, err, boom)

	var perr *PersistError
	require.ErrorAs(t, err, &perr)
	require.Len(t, report.Added, 1)
	require.False(t, report.Written)
}

func TestEngineRun_LoadFailure(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFileString("enriched_books.csv", "title\nx\n")

	_, err := NewEngine(&scriptedResolver{}, FileStore{Path: env.Path("enriched_books.csv")}, 0).
		Run(context.Background(), []book.Query{q1984})
	require.ErrorIs(t, err, ErrMissingColumns)
}

func TestEngineRun_RerunIsIdempotent(t *testing.T) {
	env := testutil.NewTestEnv(t)
	store := FileStore{Path: env.Path("enriched_books.csv")}
	res := &scriptedResolver{results: map[string]*book.Record{q1984.Identifier: orwellRecord()}}
	queries := []book.Query{q1984, qDune}

	_, err := NewEngine(res, store, 0).Run(context.Background(), queries)
	require.NoError(t, err)
	first := env.ReadFileString("enriched_books.csv")
	stamp := env.ModTime("enriched_books.csv")

	res.results = nil
	_, err = NewEngine(res, store, 0).Run(context.Background(), queries)
	require.NoError(t, err)

	require.Equal(t, first, env.ReadFileString("enriched_books.csv"))
	require.Equal(t, stamp, env.ModTime("enriched_books.csv"))
}
