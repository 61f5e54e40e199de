package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/lepinkainen/bookenrich/internal/errors"
)

// maxBodySize bounds how much of a response is read.
const maxBodySize = 8 << 20

// Fetcher retrieves one URL and returns the response body.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, header http.Header) ([]byte, error)
}

// StatusError is returned for non-2xx responses other than 429.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// HTTPFetcher fetches pages with net/http and rejects bot-wall responses.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPFetcher returns a fetcher with its own client and timeout.
func NewHTTPFetcher(userAgent string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: userAgent,
	}
}

// Fetch performs a GET request. Non-2xx statuses, throttling and block pages
// are returned as typed errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	shown := redactURL(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", shown, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" && f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		// *url.Error repeats the full URL, which may carry an API key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("GET %s: %w", shown, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", shown, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		rl := apperrors.NewRateLimitErrorWithRetry("too many requests", parseRetryAfter(resp.Header.Get("Retry-After")))
		rl.Source = req.URL.Host
		return nil, rl
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, &apperrors.BlockedError{URL: shown, Reason: string(kind)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: shown, StatusCode: resp.StatusCode}
	}

	slog.Debug("Fetched", "url", shown, "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}

// redactURL masks credentials passed as query parameters.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	changed := false
	for _, name := range []string{"key", "api_key", "apikey"} {
		if q.Has(name) {
			q.Set(name, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}
