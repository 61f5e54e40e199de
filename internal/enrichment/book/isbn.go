package book

import "strings"

var isbnCleaner = strings.NewReplacer("-", "", " ", "", "\u00a0", "", "\t", "")

// CleanISBN strips separators and spreadsheet quoting (="...") from an
// identifier and uppercases a trailing X check digit.
func CleanISBN(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "=")
	s = strings.Trim(s, "\"'")
	s = isbnCleaner.Replace(s)

	// Numeric spreadsheet cells sometimes come back as "9780451524935.0".
	if whole, ok := strings.CutSuffix(s, ".0"); ok && allDigits(whole) {
		s = whole
	}

	return strings.ToUpper(s)
}

// NormalizeISBN returns the join key for an identifier.
//
// A checksum-valid ISBN-10 is converted to its ISBN-13 form so both editions
// of the same number compare equal. A 9-digit value is treated as an ISBN-10
// that lost its leading zero when its padded form is checksum-valid. Anything
// else keys on the cleaned string.
func NormalizeISBN(raw string) string {
	s := CleanISBN(raw)

	if len(s) == 9 && allDigits(s) && IsValidISBN10("0"+s) {
		s = "0" + s
	}

	if IsValidISBN10(s) {
		return ISBN10To13(s)
	}

	return s
}

// IsValidISBN10 reports whether s is ten characters with a valid mod-11 check digit.
func IsValidISBN10(s string) bool {
	if len(s) != 10 {
		return false
	}

	sum := 0
	for i := 0; i < 10; i++ {
		c := s[i]
		var d int
		switch {
		case c >= '0' && c <= '9':
			d = int(c - '0')
		case (c == 'X' || c == 'x') && i == 9:
			d = 10
		default:
			return false
		}
		sum += (10 - i) * d
	}

	return sum%11 == 0
}

// IsValidISBN13 reports whether s is thirteen digits with a valid mod-10 check digit.
func IsValidISBN13(s string) bool {
	if len(s) != 13 || !allDigits(s) {
		return false
	}
	return isbn13CheckDigit(s[:12]) == s[12]
}

// ISBN10To13 converts an ISBN-10 to the 978-prefixed ISBN-13. The input is
// not validated; callers check IsValidISBN10 first.
func ISBN10To13(isbn10 string) string {
	body := "978" + isbn10[:9]
	return body + string(isbn13CheckDigit(body))
}

func isbn13CheckDigit(first12 string) byte {
	sum := 0
	for i := 0; i < 12; i++ {
		d := int(first12[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return byte('0' + (10-sum%10)%10)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
