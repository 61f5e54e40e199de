package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/lepinkainen/bookenrich/internal/cache"
	"github.com/lepinkainen/bookenrich/internal/config"
	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
	"github.com/lepinkainen/bookenrich/internal/ratelimit"
)

const isbndbBookPage = "https://isbndb.com/book/"

// ISBNdb is a keyed lookup against the ISBNdb v2 API.
type ISBNdb struct {
	baseURL string
	apiKey  string
	fetcher Fetcher
	cache   *cache.CacheDB
	limiter *ratelimit.Limiter
}

var _ Source = (*ISBNdb)(nil)

// NewISBNdb creates the ISBNdb source. It requires an API key.
func NewISBNdb(cfg config.APISource, fetcher Fetcher, c *cache.CacheDB) (*ISBNdb, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ISBNdb API key not configured")
	}
	return &ISBNdb{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		fetcher: fetcher,
		cache:   c,
		// Free tier: 1 request per second
		limiter: ratelimit.New("ISBNdb", 1),
	}, nil
}

// Name returns the source name.
func (e *ISBNdb) Name() string {
	return config.SourceISBNdb
}

// Search looks the identifier up; ISBNdb returns at most one book.
func (e *ISBNdb) Search(ctx context.Context, title, isbn string) []book.Candidate {
	return search(ctx, config.SourceISBNdb, title, isbn, 1, e.lookup)
}

// isbndbBookResponse matches the ISBNdb API response structure.
type isbndbBookResponse struct {
	Book struct {
		Title         string   `json:"title"`
		ISBN          string   `json:"isbn"`
		ISBN13        string   `json:"isbn13"`
		Publisher     string   `json:"publisher"`
		DatePublished string   `json:"date_published"`
		Pages         *int     `json:"pages"`
		Image         string   `json:"image"`
		Authors       []string `json:"authors"`
	} `json:"book"`
}

func (e *ISBNdb) lookup(ctx context.Context, _, isbn string) ([]book.Candidate, error) {
	cleaned := book.CleanISBN(isbn)
	if cleaned == "" {
		return nil, book.ErrInvalidISBN
	}

	return cachedLookup(e.cache, cache.ISBNdbTable, book.NormalizeISBN(isbn), func() ([]book.Candidate, error) {
		return e.fetch(ctx, cleaned)
	})
}

func (e *ISBNdb) fetch(ctx context.Context, isbn string) ([]book.Candidate, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", e.apiKey)

	body, err := e.fetcher.Fetch(ctx, e.baseURL+"/"+url.PathEscape(isbn), header)
	if IsStatus(err, http.StatusNotFound) {
		return []book.Candidate{}, nil
	}
	if IsStatus(err, http.StatusUnauthorized) {
		return nil, fmt.Errorf("ISBNdb API key invalid or expired: %w", err)
	}
	if err != nil {
		return nil, err
	}

	var result isbndbBookResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	b := result.Book
	if b.Title == "" {
		return []book.Candidate{}, nil
	}

	year := b.DatePublished
	if len(year) > 4 {
		year = year[:4]
	}

	c := book.Candidate{
		Title:     b.Title,
		Authors:   book.JoinAuthors(b.Authors),
		Publisher: b.Publisher,
		Year:      year,
		CoverURL:  b.Image,
	}
	if b.Pages != nil && *b.Pages > 0 {
		c.Pages = *b.Pages
	}
	if id := firstNonEmpty(b.ISBN13, b.ISBN); id != "" {
		c.URL = isbndbBookPage + id
	}

	return []book.Candidate{c}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
