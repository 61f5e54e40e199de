package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/lepinkainen/bookenrich/internal/cache"
	"github.com/lepinkainen/bookenrich/internal/config"
	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
	"github.com/lepinkainen/bookenrich/internal/ratelimit"
)

const openLibraryCoverURL = "https://covers.openlibrary.org/b/id/%d-L.jpg"

// OpenLibrary searches openlibrary.org's search.json endpoint by identifier.
type OpenLibrary struct {
	searchURL string
	siteURL   *url.URL
	fetcher   Fetcher
	cache     *cache.CacheDB
	limit     int
	limiter   *ratelimit.Limiter
}

var _ Source = (*OpenLibrary)(nil)

// NewOpenLibrary creates the Open Library source.
func NewOpenLibrary(cfg config.APISource, fetcher Fetcher, c *cache.CacheDB, limit int) (*OpenLibrary, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("openlibrary: invalid url: %w", err)
	}
	return &OpenLibrary{
		searchURL: cfg.URL,
		siteURL:   &url.URL{Scheme: u.Scheme, Host: u.Host},
		fetcher:   fetcher,
		cache:     c,
		limit:     limit,
		limiter:   ratelimit.New("OpenLibrary", 1),
	}, nil
}

// Name returns the source name.
func (o *OpenLibrary) Name() string {
	return config.SourceOpenLibrary
}

// Search looks the identifier up in the Open Library catalogue.
func (o *OpenLibrary) Search(ctx context.Context, title, isbn string) []book.Candidate {
	return search(ctx, config.SourceOpenLibrary, title, isbn, o.limit, o.lookup)
}

type openLibrarySearchResponse struct {
	NumFound int `json:"numFound"`
	Docs     []struct {
		Key                 string   `json:"key"`
		Title               string   `json:"title"`
		AuthorName          []string `json:"author_name"`
		Publisher           []string `json:"publisher"`
		FirstPublishYear    int      `json:"first_publish_year"`
		NumberOfPagesMedian int      `json:"number_of_pages_median"`
		RatingsAverage      float64  `json:"ratings_average"`
		CoverI              int      `json:"cover_i"`
	} `json:"docs"`
}

func (o *OpenLibrary) lookup(ctx context.Context, _, isbn string) ([]book.Candidate, error) {
	cleaned := book.CleanISBN(isbn)
	if cleaned == "" {
		return nil, book.ErrInvalidISBN
	}

	return cachedLookup(o.cache, cache.OpenLibraryTable, book.NormalizeISBN(isbn), func() ([]book.Candidate, error) {
		return o.fetch(ctx, cleaned)
	})
}

func (o *OpenLibrary) fetch(ctx context.Context, isbn string) ([]book.Candidate, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("isbn", isbn)
	params.Set("fields", "key,title,author_name,publisher,first_publish_year,number_of_pages_median,ratings_average,cover_i")
	if o.limit > 0 {
		params.Set("limit", strconv.Itoa(o.limit))
	}

	body, err := o.fetcher.Fetch(ctx, o.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var result openLibrarySearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	found := make([]book.Candidate, 0, len(result.Docs))
	for _, doc := range result.Docs {
		if doc.Title == "" {
			continue
		}

		c := book.Candidate{
			Title:   doc.Title,
			Authors: book.JoinAuthors(doc.AuthorName),
			Pages:   doc.NumberOfPagesMedian,
			Rating:  doc.RatingsAverage,
		}
		if len(doc.Publisher) > 0 {
			c.Publisher = doc.Publisher[0]
		}
		if doc.FirstPublishYear > 0 {
			c.Year = strconv.Itoa(doc.FirstPublishYear)
		}
		if doc.Key != "" {
			c.URL = o.siteURL.JoinPath(doc.Key).String()
		}
		if doc.CoverI > 0 {
			c.CoverURL = fmt.Sprintf(openLibraryCoverURL, doc.CoverI)
		}
		found = append(found, c)
	}

	return found, nil
}
