package errors

import (
	"errors"
	"fmt"
)

// BlockedError is returned by fetchers when a page is a bot wall (captcha,
// Cloudflare challenge, empty JS shell) instead of real content.
type BlockedError struct {
	URL    string
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked fetching %s: %s", e.URL, e.Reason)
}

// IsBlockedError reports whether err is a BlockedError (even when wrapped).
func IsBlockedError(err error) bool {
	var blocked *BlockedError
	return errors.As(err, &blocked)
}
