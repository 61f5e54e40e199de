package book

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanISBN(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "hyphens", input: "978-0-451-52493-5", expected: "9780451524935"},
		{name: "spaces", input: " 978 0451 524935 ", expected: "9780451524935"},
		{name: "goodreads export quoting", input: `="0451524934"`, expected: "0451524934"},
		{name: "spreadsheet float", input: "9780451524935.0", expected: "9780451524935"},
		{name: "lowercase check digit", input: "080442957x", expected: "080442957X"},
		{name: "empty", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, CleanISBN(tt.input))
		})
	}
}

func TestNormalizeISBN(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "isbn13 unchanged", input: "9780451524935", expected: "9780451524935"},
		{name: "isbn10 converted", input: "0451524934", expected: "9780451524935"},
		{name: "isbn10 with hyphens", input: "0-441-17271-7", expected: "9780441172719"},
		{name: "isbn10 with X", input: "080442957X", expected: "9780804429573"},
		{name: "lost leading zero", input: "451524934", expected: "9780451524935"},
		{name: "invalid checksum kept", input: "1234567890", expected: "1234567890"},
		{name: "free text kept", input: "abc", expected: "ABC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, NormalizeISBN(tt.input))
		})
	}
}

func TestISBNValidity(t *testing.T) {
	require.True(t, IsValidISBN10("0451524934"))
	require.True(t, IsValidISBN10("080442957X"))
	require.False(t, IsValidISBN10("0451524935"))
	require.False(t, IsValidISBN10("04515X4934"))
	require.True(t, IsValidISBN13("9780451524935"))
	require.False(t, IsValidISBN13("9780451524936"))
	require.False(t, IsValidISBN13("978045152493X"))
}

func TestQueryAndRecordShareKey(t *testing.T) {
	q := Query{Title: "1984", Identifier: "0-451-52493-4"}
	r := Record{BookName: "Nineteen Eighty-Four", ISBN: "9780451524935"}
	require.Equal(t, q.Key(), r.Key())
}

func TestCandidateSummary(t *testing.T) {
	c := Candidate{Title: "1984", Authors: "George Orwell", Year: "1949", Source: "goodreads"}
	require.Equal(t, "1984 by George Orwell (1949) - from goodreads", c.Summary())

	bare := Candidate{Title: "Untitled", Source: "worldcat"}
	require.Equal(t, "Untitled by unknown author (n.d.) - from worldcat", bare.Summary())
}

func TestCandidateRecord(t *testing.T) {
	c := Candidate{
		Title:      "1984",
		Identifier: "9780451524935",
		Authors:    "George Orwell",
		Publisher:  "Signet Classic",
		Year:       "1949",
		Pages:      328,
		Rating:     4.2,
		URL:        "https://example.com/1984",
		Source:     "google",
		CoverURL:   "https://example.com/1984.jpg",
	}

	r := c.Record()
	require.Equal(t, Record{
		BookName:  "1984",
		ISBN:      "9780451524935",
		Authors:   "George Orwell",
		Publisher: "Signet Classic",
		Year:      "1949",
		Pages:     328,
		Rating:    4.2,
		URL:       "https://example.com/1984",
		Source:    "google",
		CoverURL:  "https://example.com/1984.jpg",
	}, r)
}

func TestJoinAuthors(t *testing.T) {
	require.Equal(t, "Terry Pratchett, Neil Gaiman", JoinAuthors([]string{" Terry Pratchett", "", "Neil Gaiman "}))
	require.Equal(t, "", JoinAuthors(nil))
}
