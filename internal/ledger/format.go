package ledger

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a tabular file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// Formats lists the supported formats in prompt order.
var Formats = []Format{FormatCSV, FormatXLSX, FormatJSON}

var (
	// ErrUnsupportedFormat is returned for file extensions or format names
	// that have no reader or writer.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrMissingColumns is returned when an input file lacks book_name or isbn.
	ErrMissingColumns = errors.New("missing required columns")
)

// ParseFormat validates a format name such as "csv" or ".XLSX".
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")))
	switch f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	case "xls":
		return "", fmt.Errorf("%w: %q (save the sheet as .xlsx)", ErrUnsupportedFormat, name)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// DetectFormat returns the format implied by the file extension.
func DetectFormat(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, path)
	}
	return ParseFormat(ext)
}

// ResolvePath returns path with its format. A path without an extension gets
// the extension of def appended.
func ResolvePath(path string, def Format) (string, Format, error) {
	if filepath.Ext(path) == "" {
		f, err := ParseFormat(string(def))
		if err != nil {
			return "", "", err
		}
		return path + "." + string(f), f, nil
	}

	f, err := DetectFormat(path)
	if err != nil {
		return "", "", err
	}
	return path, f, nil
}
