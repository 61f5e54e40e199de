// Package cache stores raw source responses in SQLite so repeated runs over
// the same input do not hit the network again.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// DefaultCacheTTL is the default time-to-live for cached entries (30 days)
	DefaultCacheTTL = 720 * time.Hour
	// NegativeCacheTTL is the TTL for "not found" responses (7 days)
	NegativeCacheTTL = 168 * time.Hour
)

// FetchFunc represents a function that fetches data from an external source
type FetchFunc[T any] func() (T, error)

// CacheDB manages the SQLite database connection for caching
type CacheDB struct {
	db         *sql.DB
	mu         sync.RWMutex
	defaultTTL time.Duration
}

// Open creates the cache database at dbPath with every source table.
// A non-positive ttl means DefaultCacheTTL.
func Open(dbPath string, ttl time.Duration) (*CacheDB, error) {
	c, err := NewCacheDB(dbPath)
	if err != nil {
		return nil, err
	}
	if ttl > 0 {
		c.defaultTTL = ttl
	}

	tables := make([]string, 0, len(ValidCacheTableNames))
	for table := range ValidCacheTableNames {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		if err := c.CreateTable(tableSchema(table)); err != nil {
			return nil, errors.Join(err, c.Close())
		}
	}
	return c, nil
}

// NewCacheDB creates a new CacheDB instance and opens the database connection
func NewCacheDB(dbPath string) (*CacheDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to connect to cache database: %w", err), closeErr)
	}

	return &CacheDB{
		db:         db,
		defaultTTL: DefaultCacheTTL,
	}, nil
}

// DefaultTTL returns the TTL applied when no selector is given.
func (c *CacheDB) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// CreateTable creates a table using the provided schema
func (c *CacheDB) CreateTable(schema string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (c *CacheDB) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// InvalidateSource deletes all entries from the specified cache table
// and returns the number of rows deleted.
func (c *CacheDB) InvalidateSource(tableName string) (int64, error) {
	if err := validateTableName(tableName); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.db.Exec(fmt.Sprintf("DELETE FROM %s", tableName))
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	slog.Debug("Cache table cleared", "table", tableName, "rows_deleted", rowsAffected)
	return rowsAffected, nil
}

// validateTableName checks if the table name is in the whitelist
// to prevent SQL injection attacks
func validateTableName(tableName string) error {
	if !ValidCacheTableNames[tableName] {
		return fmt.Errorf("invalid cache table name: %s", tableName)
	}
	return nil
}

// GetOrFetch retrieves data from cache or fetches it using the provided
// function, caching every successful result with the default TTL.
func GetOrFetch[T any](c *CacheDB, tableName, cacheKey string, fetchFunc FetchFunc[T]) (T, bool, error) {
	return GetOrFetchWithTTL(c, tableName, cacheKey, fetchFunc, nil)
}

// GetOrFetchWithTTL retrieves data from cache or fetches it using the provided function.
// The ttlSelector is called after fetching to pick the TTL stored with the entry, which
// allows caching "not found" responses for a shorter time. A nil ttlSelector uses the
// database default.
//
// A nil *CacheDB fetches directly. Fetch errors are returned and never cached.
func GetOrFetchWithTTL[T any](c *CacheDB, tableName, cacheKey string, fetchFunc FetchFunc[T], ttlSelector func(T) time.Duration) (T, bool, error) {
	var zero T

	if c == nil {
		data, err := fetchFunc()
		return data, false, err
	}

	cached, fromCache, err := c.Get(tableName, cacheKey)
	if err != nil {
		slog.Warn("Cache lookup failed, fetching directly", "table", tableName, "key", cacheKey, "error", err)
	}
	if err == nil && fromCache {
		var result T
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			slog.Debug("Cache hit", "table", tableName, "key", cacheKey)
			return result, true, nil
		}
		slog.Warn("Failed to unmarshal cached data, will refetch", "table", tableName, "key", cacheKey, "error", err)
	}

	slog.Debug("Cache miss, fetching data", "table", tableName, "key", cacheKey)
	data, err := fetchFunc()
	if err != nil {
		return zero, false, err
	}

	ttl := c.defaultTTL
	if ttlSelector != nil {
		ttl = ttlSelector(data)
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		slog.Warn("Failed to marshal data for caching", "table", tableName, "key", cacheKey, "error", err)
		return data, false, nil
	}
	if err := c.Set(tableName, cacheKey, string(jsonData), ttl); err != nil {
		// Caching failure must not stop the run.
		slog.Warn("Failed to cache data", "table", tableName, "key", cacheKey, "error", err)
	} else {
		slog.Debug("Data cached successfully", "table", tableName, "key", cacheKey, "ttl", ttl)
	}

	return data, false, nil
}

// SelectNegativeCacheTTL returns a standard TTL selector for negative caching:
// results for which isNotFound is true are kept for NegativeCacheTTL, the rest
// for DefaultCacheTTL.
func SelectNegativeCacheTTL[T any](isNotFound func(T) bool) func(T) time.Duration {
	return func(result T) time.Duration {
		if isNotFound(result) {
			return NegativeCacheTTL
		}
		return DefaultCacheTTL
	}
}

// Get retrieves a cached value from the specified table. Expired entries are
// reported as misses.
func (c *CacheDB) Get(tableName, key string) (string, bool, error) {
	if err := validateTableName(tableName); err != nil {
		return "", false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	query := fmt.Sprintf(`
		SELECT data, cached_at, ttl_seconds
		FROM %s
		WHERE cache_key = ?
	`, tableName)

	var data string
	var cachedAt time.Time
	var ttlSeconds int64
	err := c.db.QueryRow(query, key).Scan(&data, &cachedAt, &ttlSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query cache: %w", err)
	}

	ttl := time.Duration(ttlSeconds) * time.Second
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	age := time.Now().UTC().Sub(cachedAt)
	if age > ttl {
		slog.Debug("Cache expired", "table", tableName, "key", key, "age", age)
		return "", false, nil
	}

	return data, true, nil
}

// Set stores a value in the cache. A non-positive ttl stores the database default.
func (c *CacheDB) Set(tableName, key, data string, ttl time.Duration) error {
	if err := validateTableName(tableName); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (cache_key, data, cached_at, ttl_seconds)
		VALUES (?, ?, ?, ?)
	`, tableName)

	_, err := c.db.Exec(query, key, data, time.Now().UTC(), int64(ttl/time.Second))
	if err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

// ClearExpired removes entries whose own TTL has elapsed and returns how many
// were removed.
func (c *CacheDB) ClearExpired(tableName string) (int64, error) {
	if err := validateTableName(tableName); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query(fmt.Sprintf(`SELECT cache_key, cached_at, ttl_seconds FROM %s`, tableName))
	if err != nil {
		return 0, fmt.Errorf("failed to scan cache: %w", err)
	}

	now := time.Now().UTC()
	var expired []string
	for rows.Next() {
		var key string
		var cachedAt time.Time
		var ttlSeconds int64
		if err := rows.Scan(&key, &cachedAt, &ttlSeconds); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to read cache row: %w", err)
		}
		ttl := time.Duration(ttlSeconds) * time.Second
		if ttl <= 0 {
			ttl = c.defaultTTL
		}
		if now.Sub(cachedAt) > ttl {
			expired = append(expired, key)
		}
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return 0, fmt.Errorf("failed to scan cache: %w", err)
	}

	for _, key := range expired {
		if _, err := c.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE cache_key = ?", tableName), key); err != nil {
			return 0, fmt.Errorf("failed to clear expired cache: %w", err)
		}
	}

	if len(expired) > 0 {
		slog.Info("Cleared expired cache entries", "table", tableName, "count", len(expired))
	}
	return int64(len(expired)), nil
}

// CacheExists checks if a cache entry exists for the given key, expired or not.
func (c *CacheDB) CacheExists(tableName, key string) bool {
	if err := validateTableName(tableName); err != nil {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE cache_key = ? LIMIT 1`, tableName)

	var exists int
	err := c.db.QueryRow(query, key).Scan(&exists)
	return err == nil
}
