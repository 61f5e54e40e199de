package source

import (
	"fmt"
	"log/slog"

	"github.com/lepinkainen/bookenrich/internal/cache"
	"github.com/lepinkainen/bookenrich/internal/config"
)

// Deps are the shared collaborators of every source.
type Deps struct {
	// API fetches JSON endpoints.
	API Fetcher
	// Pages fetches HTML search pages; either the API fetcher or a browser.
	Pages Fetcher
	// Cache may be nil.
	Cache *cache.CacheDB
}

// NewPrimary builds the primary source.
func NewPrimary(cfg *config.Config, deps Deps) Source {
	return NewGoogleBooks(cfg.GoogleBooks, deps.API, deps.Cache)
}

// NewFallbacks builds the fallback sources in the configured priority order.
// ISBNdb is left out when no API key is configured.
func NewFallbacks(cfg *config.Config, deps Deps) ([]Source, error) {
	pages := deps.Pages
	if pages == nil {
		pages = deps.API
	}

	sources := make([]Source, 0, len(cfg.Fallbacks))
	for _, name := range cfg.Fallbacks {
		var (
			s   Source
			err error
		)

		switch name {
		case config.SourceGoodreads:
			s, err = NewHTMLSource(name, cfg.Goodreads, pages, deps.Cache, cache.GoodreadsTable, cfg.MaxResults)
		case config.SourceWorldCat:
			s, err = NewHTMLSource(name, cfg.WorldCat, pages, deps.Cache, cache.WorldCatTable, cfg.MaxResults)
		case config.SourceOpenLibrary:
			s, err = NewOpenLibrary(cfg.OpenLibrary, deps.API, deps.Cache, cfg.MaxResults)
		case config.SourceISBNdb:
			if cfg.ISBNdb.APIKey == "" {
				slog.Debug("ISBNdb disabled, no API key configured")
				continue
			}
			s, err = NewISBNdb(cfg.ISBNdb, deps.API, deps.Cache)
		default:
			err = fmt.Errorf("unknown fallback source %q", name)
		}
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}

	return sources, nil
}

// Names lists the names of sources in order.
func Names(sources []Source) []string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	return names
}
