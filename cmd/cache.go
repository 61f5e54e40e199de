package cmd

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/lepinkainen/bookenrich/internal/cache"
)

// CacheInvalidateCmd clears one source's cache table
type CacheInvalidateCmd struct {
	Source string `arg:"" help:"Source to invalidate (google, goodreads, worldcat, openlibrary, isbndb)"`
}

// Run executes the cache invalidate command.
func (c *CacheInvalidateCmd) Run(g *Globals) error {
	table, err := cache.TableForSource(c.Source)
	if err != nil {
		return err
	}

	db, err := g.openCache()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	removed, err := db.InvalidateSource(table)
	if err != nil {
		return fmt.Errorf("failed to invalidate %s cache: %w", c.Source, err)
	}

	slog.Info("Cache invalidated", "source", c.Source, "table", table, "removed", removed)
	_, _ = fmt.Fprintf(stdout, "Removed %d cached entries for %s\n", removed, c.Source)
	return nil
}

// CachePruneCmd removes expired entries from every cache table
type CachePruneCmd struct{}

// Run executes the cache prune command.
func (c *CachePruneCmd) Run(g *Globals) error {
	db, err := g.openCache()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	tables := make([]string, 0, len(cache.ValidCacheTableNames))
	for t := range cache.ValidCacheTableNames {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	var total int64
	for _, t := range tables {
		n, err := db.ClearExpired(t)
		if err != nil {
			return fmt.Errorf("failed to prune %s: %w", t, err)
		}
		total += n
	}

	_, _ = fmt.Fprintf(stdout, "Removed %d expired cache entries\n", total)
	return nil
}

func (g *Globals) openCache() (*cache.CacheDB, error) {
	cfg, err := g.loadConfig(nil)
	if err != nil {
		return nil, err
	}
	db, err := cache.Open(cfg.Cache.DBFile, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", cfg.Cache.DBFile, err)
	}
	return db, nil
}
