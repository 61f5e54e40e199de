package book

import "errors"

// ErrInvalidISBN is returned when an identifier is empty after cleaning.
var ErrInvalidISBN = errors.New("invalid ISBN")
