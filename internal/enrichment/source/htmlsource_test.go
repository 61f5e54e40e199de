package source

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lepinkainen/bookenrich/internal/cache"
	"github.com/lepinkainen/bookenrich/internal/config"
	"github.com/lepinkainen/bookenrich/internal/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

const goodreadsPage = `<html><body>
<table class="tableList">
  <tr>
    <td>
      <a class="bookTitle" href="/book/show/5470.1984"><span>1984</span></a>
      <span class="authorName"><span>George Orwell</span></span>
      <span class="minirating"><span class="average">4.19</span> avg rating - published 1949 - 80 editions</span>
    </td>
  </tr>
  <tr>
    <td>
      <a class="bookTitle" href="/book/show/1.Study_Guide"><span>1984 Study Guide</span></a>
      <span class="minirating">no author on this row</span>
    </td>
  </tr>
  <tr>
    <td>
      <a class="bookTitle" href="https://www.goodreads.com/book/show/2.Nineteen"><span>Nineteen
        Eighty-Four</span></a>
      <span class="authorName">George   Orwell</span>
      <span class="minirating"><span class="average">4,2</span> avg rating</span>
    </td>
  </tr>
  <tr>
    <td>
      <a class="bookTitle" href="/book/show/3"><span>1984 (Graphic Novel)</span></a>
      <span class="authorName">Fido Nesti</span>
      <span class="minirating">published 2021</span>
    </td>
  </tr>
  <tr>
    <td>
      <a class="bookTitle" href="/book/show/4"><span>Fourth Match</span></a>
      <span class="authorName">Somebody</span>
    </td>
  </tr>
</table>
</body></html>`

const worldcatPage = `<html><body>
<ul>
  <li class="bibliography">
    <div class="title"><a href="/title/1234">Nineteen eighty-four</a></div>
    <div class="author">Orwell, George</div>
    <div class="publisher">London : Secker &amp; Warburg, 1949</div>
  </li>
  <li class="bibliography">
    <div class="title">1984 : a novel</div>
    <div class="publisher">New York : Signet, [1950]</div>
  </li>
  <li class="bibliography">
    <div class="author">Missing title is skipped</div>
  </li>
</ul>
</body></html>`

func defaultScrapeConfig(t *testing.T) *config.Config {
	t.Helper()

	v := viper.New()
	config.SetDefaults(v)
	cfg, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

func newHTMLTestSource(t *testing.T, name string, sc config.ScrapeSource, page string, hits *atomic.Int32, gotQuery *string) *HTMLSource {
	t.Helper()

	server := testutil.NewIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if gotQuery != nil {
			*gotQuery = r.URL.Query().Get("q")
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))

	sc.URL = server.URL + "/search"
	s, err := NewHTMLSource(name, sc, NewHTTPFetcher("test", 5*time.Second), nil, cache.GoodreadsTable, 3)
	require.NoError(t, err)
	return s
}

func TestHTMLSource_Goodreads(t *testing.T) {
	cfg := defaultScrapeConfig(t)
	var hits atomic.Int32
	var query string
	s := newHTMLTestSource(t, "goodreads", cfg.Goodreads, goodreadsPage, &hits, &query)

	got := s.Search(context.Background(), "1984", "978-0451524935")
	require.Equal(t, "1984 9780451524935", query)
	require.Len(t, got, 3, "capped at the configured maximum")

	require.Equal(t, "1984", got[0].Title)
	require.Equal(t, "George Orwell", got[0].Authors)
	require.Equal(t, "1949", got[0].Year)
	require.InDelta(t, 4.19, got[0].Rating, 0.001)
	require.Equal(t, "https://www.goodreads.com/book/show/5470.1984", got[0].URL)
	require.Equal(t, "goodreads", got[0].Source)
	require.Equal(t, "978-0451524935", got[0].Identifier)

	require.Equal(t, "Nineteen Eighty-Four", got[1].Title, "rows without an author are skipped")
	require.Equal(t, "George Orwell", got[1].Authors)
	require.InDelta(t, 4.2, got[1].Rating, 0.001)
	require.Empty(t, got[1].Year)

	require.Equal(t, "1984 (Graphic Novel)", got[2].Title)
	require.Equal(t, "2021", got[2].Year)
}

func TestHTMLSource_WorldCat(t *testing.T) {
	cfg := defaultScrapeConfig(t)
	var hits atomic.Int32
	var query string
	s := newHTMLTestSource(t, "worldcat", cfg.WorldCat, worldcatPage, &hits, &query)

	got := s.Search(context.Background(), "1984", "9780451524935")
	require.Equal(t, "9780451524935", query, "worldcat is queried by identifier only")
	require.Len(t, got, 2)

	require.Equal(t, "Nineteen eighty-four", got[0].Title)
	require.Equal(t, "Orwell, George", got[0].Authors)
	require.Equal(t, "London : Secker & Warburg, 1949", got[0].Publisher)
	require.Equal(t, "1949", got[0].Year)
	require.Equal(t, "https://www.worldcat.org/title/1234", got[0].URL)

	require.Equal(t, "1984 : a novel", got[1].Title)
	require.Empty(t, got[1].Authors)
	require.Equal(t, "1950", got[1].Year)
	require.Empty(t, got[1].URL)
}

func TestHTMLSource_MarkupMismatchYieldsNothing(t *testing.T) {
	cfg := defaultScrapeConfig(t)
	var hits atomic.Int32
	s := newHTMLTestSource(t, "goodreads", cfg.Goodreads, worldcatPage, &hits, nil)

	got := s.Search(context.Background(), "1984", "9780451524935")
	require.NotNil(t, got)
	require.Empty(t, got)
	require.Equal(t, int32(1), hits.Load())
}

func TestHTMLSource_BlockedPageYieldsNothing(t *testing.T) {
	cfg := defaultScrapeConfig(t)
	var hits atomic.Int32
	s := newHTMLTestSource(t, "goodreads", cfg.Goodreads, `<html><body>Please complete the CAPTCHA</body></html>`, &hits, nil)

	require.Empty(t, s.Search(context.Background(), "1984", "9780451524935"))
}

func TestHTMLSource_LargePageLinkingCloudflareIsParsed(t *testing.T) {
	cfg := defaultScrapeConfig(t)
	page := strings.Replace(goodreadsPage, "<body>",
		`<head><script src="https://cdnjs.cloudflare.com/ajax/libs/jquery.min.js"></script></head>`+
			`<body><nav><a href="/challenges/11634">Reading Challenge</a></nav>`+
			"<!--"+strings.Repeat("x", 40000)+"-->", 1)
	var hits atomic.Int32
	s := newHTMLTestSource(t, "goodreads", cfg.Goodreads, page, &hits, nil)

	got := s.Search(context.Background(), "1984", "9780451524935")
	require.Len(t, got, 3)
	require.Equal(t, "1984", got[0].Title)
}

func TestHTMLSource_InvalidYearPattern(t *testing.T) {
	cfg := defaultScrapeConfig(t)
	sc := cfg.Goodreads
	sc.YearPattern = "published (\\d{4}"

	_, err := NewHTMLSource("goodreads", sc, nil, nil, cache.GoodreadsTable, 3)
	require.ErrorContains(t, err, "year_pattern")
}

func TestParseRating(t *testing.T) {
	require.InDelta(t, 3.87, parseRating(" 3.87 avg rating "), 0.001)
	require.InDelta(t, 4.0, parseRating("4"), 0.001)
	require.Zero(t, parseRating("no rating"))
}
