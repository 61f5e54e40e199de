package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
	"github.com/lepinkainen/bookenrich/internal/ledger"
)

func newTable(headers ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row(headers))
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw
}

func printSummary(report ledger.Report, outPath string) {
	if len(report.Added) > 0 {
		tw := newTable("#", "Book", "Authors", "Year", "Source")
		for i, r := range report.Added {
			tw.AppendRow(table.Row{i + 1, r.BookName, r.Authors, r.Year, r.Source})
		}
		_, _ = fmt.Fprintln(stdout, tw.Render())
	}

	total := 0
	if report.Ledger != nil {
		total = report.Ledger.Len()
	}

	status := "saved to " + outPath
	if !report.Written {
		status = "nothing written"
	}
	_, _ = fmt.Fprintf(stdout, "Input %d, pending %d, added %d, skipped %d, ledger %d (%s) in %s\n",
		report.Input, len(report.Pending), len(report.Added), len(report.Skipped), total, status,
		report.Duration.Round(time.Millisecond))

	if len(report.Skipped) > 0 {
		tw := newTable("#", "Skipped book", "ISBN")
		for i, q := range report.Skipped {
			tw.AppendRow(table.Row{i + 1, q.Title, q.Identifier})
		}
		_, _ = fmt.Fprintln(stdout, tw.Render())
	}
}

func printPending(pending []book.Query, existing int) {
	if len(pending) == 0 {
		_, _ = fmt.Fprintf(stdout, "Nothing to do: all books are already in the ledger (%d records)\n", existing)
		return
	}

	tw := newTable("#", "Book", "ISBN", "Key")
	for i, q := range pending {
		tw.AppendRow(table.Row{strconv.Itoa(i + 1), q.Title, q.Identifier, q.Key()})
	}
	_, _ = fmt.Fprintln(stdout, tw.Render())
	_, _ = fmt.Fprintf(stdout, "%d books would be looked up (%d already enriched)\n", len(pending), existing)
}
