package ledger

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx/v2"

	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
)

const sheetName = "books"

// readRows returns every non-blank row of a CSV or XLSX file, header first.
func readRows(path string, format Format) ([][]string, error) {
	var rows [][]string
	var err error

	switch format {
	case FormatCSV:
		rows, err = readCSV(path)
	case FormatXLSX:
		rows, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %s is not a table", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	out := rows[:0]
	for _, r := range rows {
		if !blank(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file %s: %w", path, err)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open file %s: %w", path, err)
	}
	if len(f.Sheets) == 0 {
		return nil, nil
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cellText(cell)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// cellText renders a cell the way it reads in a spreadsheet. Numeric cells in
// the general format come back in scientific notation for ISBN-sized values,
// so those are expanded to plain digits.
func cellText(cell *xlsx.Cell) string {
	text := cell.String()
	if cell.Type() != xlsx.CellTypeNumeric || !strings.ContainsAny(text, "Ee") {
		return text
	}
	v, err := cell.Float()
	if err != nil {
		return text
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ReadQueries reads the input table. The file must exist and have book_name
// and isbn columns; other columns are ignored.
func ReadQueries(path string) ([]book.Query, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if format == FormatJSON {
		return nil, fmt.Errorf("%w: input must be csv or xlsx, got %s", ErrUnsupportedFormat, path)
	}

	rows, err := readRows(path, format)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s is empty (want %s, %s)", ErrMissingColumns, path, ColBookName, ColISBN)
	}

	h := newHeader(rows[0])
	if missing := h.require(ColBookName, ColISBN); len(missing) > 0 {
		return nil, fmt.Errorf("%w in %s: %s", ErrMissingColumns, path, strings.Join(missing, ", "))
	}

	queries := make([]book.Query, 0, len(rows)-1)
	for _, r := range rows[1:] {
		queries = append(queries, book.Query{
			Title:      h.get(r, ColBookName),
			Identifier: h.get(r, ColISBN),
		})
	}
	return queries, nil
}

// ReadLedger reads previously enriched output. A missing file is an empty
// ledger. Columns the tool does not manage are kept on each record.
func ReadLedger(path string) (*Ledger, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Empty(), nil
	}

	if format == FormatJSON {
		return readJSONLedger(path)
	}

	rows, err := readRows(path, format)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return Empty(), nil
	}

	h := newHeader(rows[0])
	if missing := h.require(ColISBN); len(missing) > 0 {
		return nil, fmt.Errorf("%w in %s: %s", ErrMissingColumns, path, strings.Join(missing, ", "))
	}

	extras := h.extras()
	records := make([]book.Record, 0, len(rows)-1)
	for _, r := range rows[1:] {
		records = append(records, h.record(r, extras))
	}

	l := New(records...)
	l.extraColumns = extras
	return l, nil
}

func readJSONLedger(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return Empty(), nil
	}

	var records []book.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	seen := make(map[string]bool)
	var extras []string
	for _, r := range records {
		for k := range r.Extra {
			if !seen[k] {
				seen[k] = true
				extras = append(extras, k)
			}
		}
	}
	slices.Sort(extras)

	l := New(records...)
	l.extraColumns = extras
	return l, nil
}

// WriteLedger replaces path with the ledger contents. The file is written to
// a temporary sibling first and renamed into place.
func WriteLedger(path string, l *Ledger) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}

	return writeFileAtomic(path, func(w io.Writer) error {
		switch format {
		case FormatCSV:
			return writeCSV(w, l)
		case FormatXLSX:
			return writeXLSX(w, l)
		case FormatJSON:
			return writeJSON(w, l)
		default:
			return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
		}
	})
}

func writeCSV(w io.Writer, l *Ledger) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string{}, RecordColumns...), l.extraColumns...)); err != nil {
		return err
	}
	for _, r := range l.records {
		if err := cw.Write(row(r, l.extraColumns)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, l *Ledger) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return fmt.Errorf("xlsx: add sheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, col := range append(append([]string{}, RecordColumns...), l.extraColumns...) {
		headerRow.AddCell().SetString(col)
	}

	for _, r := range l.records {
		xr := sheet.AddRow()
		for i, value := range row(r, l.extraColumns) {
			cell := xr.AddCell()
			switch {
			case i < len(RecordColumns) && RecordColumns[i] == ColPages && r.Pages > 0:
				cell.SetInt(r.Pages)
			case i < len(RecordColumns) && RecordColumns[i] == ColRating && r.Rating != 0:
				cell.SetFloat(r.Rating)
			default:
				cell.SetString(value)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx: write: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, l *Ledger) error {
	records := l.records
	if records == nil {
		records = []book.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
