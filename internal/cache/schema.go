package cache

import "fmt"

// Source cache tables. Every table shares one layout: the normalized ISBN (or
// search query) as key, the JSON payload, when it was stored and how long it
// stays valid.
const (
	GoogleBooksTable = "googlebooks_cache"
	GoodreadsTable   = "goodreads_cache"
	WorldCatTable    = "worldcat_cache"
	OpenLibraryTable = "openlibrary_cache"
	ISBNdbTable      = "isbndb_cache"
)

// ValidCacheTableNames is the whitelist of allowed cache table names.
// Table names are interpolated into SQL, so anything else is rejected.
var ValidCacheTableNames = map[string]bool{
	GoogleBooksTable: true,
	GoodreadsTable:   true,
	WorldCatTable:    true,
	OpenLibraryTable: true,
	ISBNdbTable:      true,
}

// TableForSource maps a source name ("google", "goodreads", ...) to its cache table.
func TableForSource(source string) (string, error) {
	switch source {
	case "google", "googlebooks":
		return GoogleBooksTable, nil
	case "goodreads":
		return GoodreadsTable, nil
	case "worldcat":
		return WorldCatTable, nil
	case "openlibrary":
		return OpenLibraryTable, nil
	case "isbndb":
		return ISBNdbTable, nil
	default:
		return "", fmt.Errorf("invalid cache source %q; valid sources are: google, goodreads, worldcat, openlibrary, isbndb", source)
	}
}

func tableSchema(table string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_seconds INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_cached_at ON %[1]s(cached_at);
`, table)
}
