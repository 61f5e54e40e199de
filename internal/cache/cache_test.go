package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/lepinkainen/bookenrich/internal/testutil"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Title    string `json:"title"`
	NotFound bool   `json:"not_found"`
}

func setupTestCache(t *testing.T) *CacheDB {
	t.Helper()

	env := testutil.NewTestEnv(t)
	c, err := Open(env.Path("cache.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func setCachedAt(t *testing.T, c *CacheDB, tableName, key string, at time.Time) {
	t.Helper()

	_, err := c.db.Exec("UPDATE "+tableName+" SET cached_at = ? WHERE cache_key = ?", at.UTC(), key)
	require.NoError(t, err)
}

func TestGetOrFetch_MissThenHit(t *testing.T) {
	c := setupTestCache(t)

	calls := 0
	fetch := func() (testPayload, error) {
		calls++
		return testPayload{Title: "1984"}, nil
	}

	got, fromCache, err := GetOrFetch(c, GoogleBooksTable, "9780451524935", fetch)
	require.NoError(t, err)
	require.False(t, fromCache)
	require.Equal(t, "1984", got.Title)

	got, fromCache, err = GetOrFetch(c, GoogleBooksTable, "9780451524935", fetch)
	require.NoError(t, err)
	require.True(t, fromCache)
	require.Equal(t, "1984", got.Title)
	require.Equal(t, 1, calls)
}

func TestGetOrFetch_ErrorsAreNotCached(t *testing.T) {
	c := setupTestCache(t)

	boom := errors.New("connection reset")
	_, _, err := GetOrFetch(c, GoodreadsTable, "key", func() (testPayload, error) {
		return testPayload{}, boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, c.CacheExists(GoodreadsTable, "key"))
}

func TestGetOrFetch_NilCacheFetchesDirectly(t *testing.T) {
	calls := 0
	for i := 0; i < 2; i++ {
		_, fromCache, err := GetOrFetch[testPayload](nil, GoogleBooksTable, "k", func() (testPayload, error) {
			calls++
			return testPayload{}, nil
		})
		require.NoError(t, err)
		require.False(t, fromCache)
	}
	require.Equal(t, 2, calls)
}

func TestGetOrFetchWithTTL_NegativeEntriesExpireSooner(t *testing.T) {
	c := setupTestCache(t)

	selector := SelectNegativeCacheTTL(func(p testPayload) bool { return p.NotFound })

	_, _, err := GetOrFetchWithTTL(c, OpenLibraryTable, "missing", func() (testPayload, error) {
		return testPayload{NotFound: true}, nil
	}, selector)
	require.NoError(t, err)

	_, _, err = GetOrFetchWithTTL(c, OpenLibraryTable, "found", func() (testPayload, error) {
		return testPayload{Title: "Dune"}, nil
	}, selector)
	require.NoError(t, err)

	tenDaysAgo := time.Now().Add(-240 * time.Hour)
	setCachedAt(t, c, OpenLibraryTable, "missing", tenDaysAgo)
	setCachedAt(t, c, OpenLibraryTable, "found", tenDaysAgo)

	_, hit, err := c.Get(OpenLibraryTable, "missing")
	require.NoError(t, err)
	require.False(t, hit, "negative entry should expire after 7 days")

	_, hit, err = c.Get(OpenLibraryTable, "found")
	require.NoError(t, err)
	require.True(t, hit, "positive entry should live 30 days")
}

func TestGet_DefaultTTLExpiry(t *testing.T) {
	c := setupTestCache(t)

	require.NoError(t, c.Set(WorldCatTable, "k", `{"title":"x"}`, 0))
	setCachedAt(t, c, WorldCatTable, "k", time.Now().Add(-2*time.Hour))

	_, hit, err := c.Get(WorldCatTable, "k")
	require.NoError(t, err)
	require.False(t, hit)
	require.True(t, c.CacheExists(WorldCatTable, "k"))
}

func TestClearExpired(t *testing.T) {
	c := setupTestCache(t)

	require.NoError(t, c.Set(ISBNdbTable, "old", `{}`, time.Minute))
	require.NoError(t, c.Set(ISBNdbTable, "fresh", `{}`, time.Hour))
	setCachedAt(t, c, ISBNdbTable, "old", time.Now().Add(-10*time.Minute))

	n, err := c.ClearExpired(ISBNdbTable)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.False(t, c.CacheExists(ISBNdbTable, "old"))
	require.True(t, c.CacheExists(ISBNdbTable, "fresh"))
}

func TestInvalidateSource(t *testing.T) {
	c := setupTestCache(t)

	require.NoError(t, c.Set(GoodreadsTable, "a", `{}`, 0))
	require.NoError(t, c.Set(GoodreadsTable, "b", `{}`, 0))

	n, err := c.InvalidateSource(GoodreadsTable)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestInvalidTableNameRejected(t *testing.T) {
	c := setupTestCache(t)

	_, err := c.InvalidateSource("books; DROP TABLE googlebooks_cache")
	require.Error(t, err)

	require.Error(t, c.Set("amazon_cache", "k", "{}", 0))
}

func TestTableForSource(t *testing.T) {
	table, err := TableForSource("google")
	require.NoError(t, err)
	require.Equal(t, GoogleBooksTable, table)

	table, err = TableForSource("worldcat")
	require.NoError(t, err)
	require.Equal(t, WorldCatTable, table)

	_, err = TableForSource("amazon")
	require.ErrorContains(t, err, "invalid cache source")
}
