package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lepinkainen/bookenrich/internal/cache"
	"github.com/lepinkainen/bookenrich/internal/config"
	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
	"github.com/lepinkainen/bookenrich/internal/ratelimit"
)

var ratingPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// HTMLSource scrapes a search results page. Everything site specific (URL,
// query template, CSS selectors, year extraction) comes from configuration,
// so a markup change degrades to zero candidates instead of a code change.
type HTMLSource struct {
	name     string
	cfg      config.ScrapeSource
	linkBase *url.URL
	yearRe   *regexp.Regexp
	fetcher  Fetcher
	cache    *cache.CacheDB
	table    string
	limit    int
	limiter  *ratelimit.Limiter
}

var _ Source = (*HTMLSource)(nil)

// NewHTMLSource creates a scraping source. limit caps the number of
// candidates returned per search.
func NewHTMLSource(name string, cfg config.ScrapeSource, fetcher Fetcher, c *cache.CacheDB, table string, limit int) (*HTMLSource, error) {
	s := &HTMLSource{
		name:    name,
		cfg:     cfg,
		fetcher: fetcher,
		cache:   c,
		table:   table,
		limit:   limit,
		limiter: ratelimit.New(name, 1),
	}

	if cfg.YearPattern != "" {
		re, err := regexp.Compile(cfg.YearPattern)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid year_pattern: %w", name, err)
		}
		s.yearRe = re
	}

	base := cfg.LinkBase
	if base == "" {
		base = cfg.URL
	}
	linkBase, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid link_base: %w", name, err)
	}
	s.linkBase = linkBase

	return s, nil
}

// Name returns the source name.
func (s *HTMLSource) Name() string {
	return s.name
}

// Search queries the site's search page.
func (s *HTMLSource) Search(ctx context.Context, title, isbn string) []book.Candidate {
	return search(ctx, s.name, title, isbn, s.limit, s.lookup)
}

func (s *HTMLSource) lookup(ctx context.Context, title, isbn string) ([]book.Candidate, error) {
	query := s.query(title, isbn)
	searchURL := s.cfg.URL + "?q=" + url.QueryEscape(query)

	return cachedLookup(s.cache, s.table, strings.ToLower(query), func() ([]book.Candidate, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, err := s.fetcher.Fetch(ctx, searchURL, nil)
		if err != nil {
			return nil, err
		}
		return s.parse(body)
	})
}

func (s *HTMLSource) query(title, isbn string) string {
	q := strings.NewReplacer("{title}", title, "{isbn}", book.CleanISBN(isbn)).Replace(s.cfg.Query)
	return collapseSpace(q)
}

// parse extracts candidates from a results page, keeping page order.
func (s *HTMLSource) parse(body []byte) ([]book.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	sel := s.cfg.Selectors
	found := []book.Candidate{}

	doc.Find(sel.Items).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		titleSel := item.Find(sel.Title).First()
		title := collapseSpace(titleSel.Text())
		if title == "" {
			return true
		}

		authors := s.text(item, sel.Author)
		if s.cfg.RequireAuthor && authors == "" {
			return true
		}

		publisher := s.text(item, sel.Publisher)

		c := book.Candidate{
			Title:     title,
			Authors:   authors,
			Publisher: publisher,
			URL:       s.link(titleSel),
		}

		yearSource := item.Text()
		if s.cfg.YearField == "publisher" {
			yearSource = publisher
		}
		c.Year = s.year(yearSource)

		if sel.Rating != "" {
			c.Rating = parseRating(s.text(item, sel.Rating))
		}

		found = append(found, c)
		return s.limit <= 0 || len(found) < s.limit
	})

	return found, nil
}

func (s *HTMLSource) text(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return collapseSpace(item.Find(selector).First().Text())
}

func (s *HTMLSource) year(text string) string {
	if s.yearRe == nil || text == "" {
		return ""
	}
	m := s.yearRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return ""
	}
	if len(m) > 1 && m[1] != "" {
		return m[1]
	}
	return m[0]
}

// link resolves the result's href against the site base.
func (s *HTMLSource) link(titleSel *goquery.Selection) string {
	href, ok := titleSel.Attr("href")
	if !ok {
		href, ok = titleSel.Find("a[href]").First().Attr("href")
	}
	if !ok {
		href, ok = titleSel.Closest("a[href]").Attr("href")
	}
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}

	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return s.linkBase.ResolveReference(ref).String()
}

func parseRating(text string) float64 {
	m := ratingPattern.FindString(text)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	return v
}
