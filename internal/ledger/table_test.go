package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
	"github.com/lepinkainen/bookenrich/internal/testutil"
)

func TestReadQueriesCSV(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFileString("books.csv", "Book Name,ISBN,notes\n1984,=\"0451524934\",classic\n\n,,\nDune,9780441172719,\n")

	queries, err := ReadQueries(env.Path("books.csv"))
	require.NoError(t, err)
	require.Equal(t, []book.Query{
		{Title: "1984", Identifier: `="0451524934"`},
		{Title: "Dune", Identifier: "9780441172719"},
	}, queries)
	require.Equal(t, "9780451524935", queries[0].Key())
}

func TestReadQueriesMissingColumns(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFileString("books.csv", "title,isbn\n1984,9780451524935\n")

	_, err := ReadQueries(env.Path("books.csv"))
	require.ErrorIs(t, err, ErrMissingColumns)
	require.ErrorContains(t, err, "book_name")
}

func TestReadQueriesMissingFile(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, err := ReadQueries(env.Path("nope.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadQueriesRejectsJSON(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFileString("books.json", "[]")
	_, err := ReadQueries(env.Path("books.json"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadQueriesXLSX(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.Path("books.xlsx")

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, r := range [][]string{{"book_name", "isbn"}, {"1984", "9780451524935"}, {"Dune", "0441172717"}} {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	require.NoError(t, f.Save(path))

	queries, err := ReadQueries(path)
	require.NoError(t, err)
	require.Equal(t, []book.Query{
		{Title: "1984", Identifier: "9780451524935"},
		{Title: "Dune", Identifier: "0441172717"},
	}, queries)
}

func TestReadQueriesXLSXNumericISBN(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.Path("books.xlsx")

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	header := sheet.AddRow()
	header.AddCell().SetString("book_name")
	header.AddCell().SetString("isbn")
	r := sheet.AddRow()
	r.AddCell().SetString("1984")
	r.AddCell().SetFloat(9780451524935)
	r = sheet.AddRow()
	r.AddCell().SetString("Dune")
	r.AddCell().SetInt(441172717)
	require.NoError(t, f.Save(path))

	queries, err := ReadQueries(path)
	require.NoError(t, err)
	require.Equal(t, []book.Query{
		{Title: "1984", Identifier: "9780451524935"},
		{Title: "Dune", Identifier: "441172717"},
	}, queries)
	require.Equal(t, "9780451524935", queries[0].Key())
	require.Equal(t, "9780441172719", queries[1].Key(), "lost leading zero is repaired")
}

func TestReadLedgerMissingFileIsEmpty(t *testing.T) {
	env := testutil.NewTestEnv(t)
	l, err := ReadLedger(env.Path("enriched_books.csv"))
	require.NoError(t, err)
	require.Zero(t, l.Len())
}

var fullRecord = book.Record{
	BookName:  "1984",
	ISBN:      "9780451524935",
	Authors:   "George Orwell",
	Publisher: "Signet Classic",
	Year:      "1949",
	Pages:     328,
	Rating:    4.2,
	URL:       "https://books.google.com/1984",
	Source:    "google",
}

func TestLedgerRoundTrip(t *testing.T) {
	for _, format := range Formats {
		t.Run(string(format), func(t *testing.T) {
			env := testutil.NewTestEnv(t)
			path := env.Path("out/enriched_books." + string(format))
			sparse := book.Record{BookName: "Dune", ISBN: "9780441172719", Source: "goodreads"}

			require.NoError(t, WriteLedger(path, New(fullRecord, sparse)))

			l, err := ReadLedger(path)
			require.NoError(t, err)
			require.Equal(t, []book.Record{fullRecord, sparse}, l.Records())
		})
	}
}

func TestLedgerKeepsUnmanagedColumns(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFileString("enriched_books.csv",
		"book_name,isbn,authors,publisher,year,pages,rating,url,source,shelf\n"+
			"1984,9780451524935,George Orwell,,1949,,,,google,to-read\n")
	path := env.Path("enriched_books.csv")

	l, err := ReadLedger(path)
	require.NoError(t, err)
	require.Equal(t, []string{"shelf"}, l.ExtraColumns())

	merged, _ := l.Merge([]book.Record{{BookName: "Dune", ISBN: "9780441172719", Source: "worldcat"}})
	require.NoError(t, WriteLedger(path, merged))

	require.Equal(t,
		"book_name,isbn,authors,publisher,year,pages,rating,url,source,shelf\n"+
			"1984,9780451524935,George Orwell,,1949,,,,google,to-read\n"+
			"Dune,9780441172719,,,,,,,worldcat,\n",
		env.ReadFileString("enriched_books.csv"))
}

func TestLedgerKeepsRowsWithoutISBN(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFileString("ledger.csv", "book_name,isbn\nNotes A,\nNotes B,\n1984,9780451524935\n")

	l, err := ReadLedger(env.Path("ledger.csv"))
	require.NoError(t, err)
	require.Equal(t, 3, l.Len())

	require.NoError(t, WriteLedger(env.Path("ledger.csv"), l))
	back, err := ReadLedger(env.Path("ledger.csv"))
	require.NoError(t, err)
	require.Equal(t, []string{"Notes A", "Notes B", "1984"}, titles(back.Records()))
}

func TestWriteLedgerLeavesNoTempFiles(t *testing.T) {
	env := testutil.NewTestEnv(t)
	require.NoError(t, WriteLedger(env.Path("enriched_books.json"), New(fullRecord)))

	entries, err := os.ReadDir(env.RootDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "enriched_books.json", filepath.Base(entries[0].Name()))
}

func TestWriteEmptyJSONLedger(t *testing.T) {
	env := testutil.NewTestEnv(t)
	require.NoError(t, WriteLedger(env.Path("out.json"), Empty()))
	require.Equal(t, "[]\n", env.ReadFileString("out.json"))
}

func TestLock(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.Path("enriched_books.csv")

	unlock, err := Lock(path)
	require.NoError(t, err)

	_, err = Lock(path)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, unlock())
	unlock, err = Lock(path)
	require.NoError(t, err)
	require.NoError(t, unlock())
}
