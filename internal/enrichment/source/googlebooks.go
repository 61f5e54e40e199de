package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/lepinkainen/bookenrich/internal/cache"
	"github.com/lepinkainen/bookenrich/internal/config"
	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
	"github.com/lepinkainen/bookenrich/internal/ratelimit"
)

// GoogleBooksName is the source name recorded on Google Books results.
const GoogleBooksName = "google"

// GoogleBooks is the primary source: an exact identifier lookup against the
// Google Books volumes API. It returns the first match only.
type GoogleBooks struct {
	baseURL string
	apiKey  string
	fetcher Fetcher
	cache   *cache.CacheDB
	limiter *ratelimit.Limiter
}

var _ Source = (*GoogleBooks)(nil)

// NewGoogleBooks creates the Google Books source. A nil cache disables caching.
func NewGoogleBooks(cfg config.APISource, fetcher Fetcher, c *cache.CacheDB) *GoogleBooks {
	return &GoogleBooks{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		fetcher: fetcher,
		cache:   c,
		limiter: ratelimit.New("GoogleBooks", 1),
	}
}

// Name returns the source name.
func (g *GoogleBooks) Name() string {
	return GoogleBooksName
}

// Search looks the identifier up; the title is not used.
func (g *GoogleBooks) Search(ctx context.Context, title, isbn string) []book.Candidate {
	return search(ctx, GoogleBooksName, title, isbn, 1, g.lookup)
}

func (g *GoogleBooks) lookup(ctx context.Context, _, isbn string) ([]book.Candidate, error) {
	cleaned := book.CleanISBN(isbn)
	if cleaned == "" {
		return nil, book.ErrInvalidISBN
	}

	return cachedLookup(g.cache, cache.GoogleBooksTable, book.NormalizeISBN(isbn), func() ([]book.Candidate, error) {
		return g.fetch(ctx, cleaned)
	})
}

// googleBooksResponse matches the Google Books API response structure.
type googleBooksResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		SelfLink   string `json:"selfLink"`
		VolumeInfo struct {
			Title         string   `json:"title"`
			Authors       []string `json:"authors"`
			Publisher     string   `json:"publisher"`
			PublishedDate string   `json:"publishedDate"`
			PageCount     int      `json:"pageCount"`
			AverageRating float64  `json:"averageRating"`
			ImageLinks    struct {
				Thumbnail      string `json:"thumbnail"`
				SmallThumbnail string `json:"smallThumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

func (g *GoogleBooks) fetch(ctx context.Context, isbn string) ([]book.Candidate, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", "isbn:"+isbn)
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}

	body, err := g.fetcher.Fetch(ctx, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var result googleBooksResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if result.TotalItems == 0 || len(result.Items) == 0 {
		return []book.Candidate{}, nil
	}

	// Use first item (best match)
	item := result.Items[0]
	vol := item.VolumeInfo

	year := vol.PublishedDate
	if len(year) > 4 {
		year = year[:4]
	}

	coverURL := vol.ImageLinks.Thumbnail
	if coverURL == "" {
		coverURL = vol.ImageLinks.SmallThumbnail
	}
	// Remove zoom parameter for higher quality
	coverURL = strings.Replace(coverURL, "zoom=1", "zoom=0", 1)

	return []book.Candidate{{
		Title:     vol.Title,
		Authors:   book.JoinAuthors(vol.Authors),
		Publisher: vol.Publisher,
		Year:      year,
		Pages:     vol.PageCount,
		Rating:    vol.AverageRating,
		URL:       item.SelfLink,
		CoverURL:  coverURL,
	}}, nil
}
