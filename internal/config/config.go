// Package config builds the run configuration from defaults, an optional
// config.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Fallback source names accepted in Config.Fallbacks.
const (
	SourceGoodreads   = "goodreads"
	SourceWorldCat    = "worldcat"
	SourceOpenLibrary = "openlibrary"
	SourceISBNdb      = "isbndb"
)

// KnownFallbacks lists every fallback source in default priority order.
var KnownFallbacks = []string{SourceGoodreads, SourceWorldCat, SourceOpenLibrary, SourceISBNdb}

// Config is the effective configuration for one run. It is built once and
// passed down explicitly.
type Config struct {
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`
	RateLimitDelay time.Duration `mapstructure:"rate_limit_delay" yaml:"rate_limit_delay"`
	MaxResults     int           `mapstructure:"max_results" yaml:"max_results"`
	Fallbacks      []string      `mapstructure:"fallbacks" yaml:"fallbacks"`

	GoogleBooks APISource    `mapstructure:"google_books" yaml:"google_books"`
	OpenLibrary APISource    `mapstructure:"openlibrary" yaml:"openlibrary"`
	ISBNdb      APISource    `mapstructure:"isbndb" yaml:"isbndb"`
	Goodreads   ScrapeSource `mapstructure:"goodreads" yaml:"goodreads"`
	WorldCat    ScrapeSource `mapstructure:"worldcat" yaml:"worldcat"`

	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
}

// APISource configures a structured JSON endpoint.
type APISource struct {
	URL    string `mapstructure:"url" yaml:"url"`
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
}

// ScrapeSource configures an HTML search page and how to read results from it.
type ScrapeSource struct {
	URL      string `mapstructure:"url" yaml:"url"`
	LinkBase string `mapstructure:"link_base" yaml:"link_base"`
	// Query is the search text template; {title} and {isbn} are substituted.
	Query         string    `mapstructure:"query" yaml:"query"`
	RequireAuthor bool      `mapstructure:"require_author" yaml:"require_author"`
	YearPattern   string    `mapstructure:"year_pattern" yaml:"year_pattern"`
	YearField     string    `mapstructure:"year_field" yaml:"year_field"`
	Selectors     Selectors `mapstructure:"selectors" yaml:"selectors"`
}

// Selectors are CSS selectors. Items selects one element per result; the
// others are evaluated inside each item.
type Selectors struct {
	Items     string `mapstructure:"items" yaml:"items"`
	Title     string `mapstructure:"title" yaml:"title"`
	Author    string `mapstructure:"author" yaml:"author"`
	Publisher string `mapstructure:"publisher" yaml:"publisher,omitempty"`
	Rating    string `mapstructure:"rating" yaml:"rating,omitempty"`
}

// BrowserConfig controls headless Chrome rendering of scrape pages.
type BrowserConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Headless bool          `mapstructure:"headless" yaml:"headless"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// CacheConfig controls the SQLite response cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	DBFile  string        `mapstructure:"dbfile" yaml:"dbfile"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// SetDefaults registers every configuration key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("http_timeout", "15s")
	v.SetDefault("rate_limit_delay", "1s")
	v.SetDefault("max_results", 3)
	v.SetDefault("fallbacks", KnownFallbacks)

	v.SetDefault("google_books.url", "https://www.googleapis.com/books/v1/volumes")
	v.SetDefault("google_books.api_key", "")
	v.SetDefault("openlibrary.url", "https://openlibrary.org/search.json")
	v.SetDefault("openlibrary.api_key", "")
	v.SetDefault("isbndb.url", "https://api2.isbndb.com/book")
	v.SetDefault("isbndb.api_key", "")

	v.SetDefault("goodreads.url", "https://www.goodreads.com/search")
	v.SetDefault("goodreads.link_base", "https://www.goodreads.com")
	v.SetDefault("goodreads.query", "{title} {isbn}")
	v.SetDefault("goodreads.require_author", true)
	v.SetDefault("goodreads.year_pattern", `published\s+(\d{4})`)
	v.SetDefault("goodreads.year_field", "item")
	v.SetDefault("goodreads.selectors.items", ".tableList tr")
	v.SetDefault("goodreads.selectors.title", ".bookTitle")
	v.SetDefault("goodreads.selectors.author", ".authorName")
	v.SetDefault("goodreads.selectors.publisher", "")
	v.SetDefault("goodreads.selectors.rating", ".average")

	v.SetDefault("worldcat.url", "https://www.worldcat.org/search")
	v.SetDefault("worldcat.link_base", "https://www.worldcat.org")
	v.SetDefault("worldcat.query", "{isbn}")
	v.SetDefault("worldcat.require_author", false)
	v.SetDefault("worldcat.year_pattern", `\b((?:19|20)\d{2})\b`)
	v.SetDefault("worldcat.year_field", "publisher")
	v.SetDefault("worldcat.selectors.items", ".bibliography")
	v.SetDefault("worldcat.selectors.title", ".title")
	v.SetDefault("worldcat.selectors.author", ".author")
	v.SetDefault("worldcat.selectors.publisher", ".publisher")
	v.SetDefault("worldcat.selectors.rating", "")

	v.SetDefault("browser.enabled", false)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.timeout", "30s")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dbfile", "./cache.db")
	v.SetDefault("cache.ttl", "720h") // 30 days
}

// New returns a viper instance with defaults, environment bindings and, when
// it exists, the config file read in. An empty configFile looks for
// config.yaml in the working directory; a missing default file is not an
// error, a missing explicit file is.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("BOOKENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("google_books.api_key", "GOOGLE_BOOKS_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind GOOGLE_BOOKS_API_KEY: %w", err)
	}
	if err := v.BindEnv("isbndb.api_key", "ISBNDB_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind ISBNDB_API_KEY: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			slog.Debug("Config file not found, using defaults")
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	slog.Debug("Loaded config file", "path", v.ConfigFileUsed())
	return v, nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	var errs []error

	if c.MaxResults < 1 {
		errs = append(errs, fmt.Errorf("max_results must be at least 1, got %d", c.MaxResults))
	}
	if c.RateLimitDelay < 0 {
		errs = append(errs, fmt.Errorf("rate_limit_delay must not be negative, got %s", c.RateLimitDelay))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http_timeout must be positive, got %s", c.HTTPTimeout))
	}
	if c.GoogleBooks.URL == "" {
		errs = append(errs, errors.New("google_books.url is required"))
	}

	seen := make(map[string]bool, len(c.Fallbacks))
	for _, name := range c.Fallbacks {
		if !slices.Contains(KnownFallbacks, name) {
			errs = append(errs, fmt.Errorf("unknown fallback source %q (known: %s)", name, strings.Join(KnownFallbacks, ", ")))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("fallback source %q listed twice", name))
		}
		seen[name] = true
	}

	for name, s := range map[string]ScrapeSource{SourceGoodreads: c.Goodreads, SourceWorldCat: c.WorldCat} {
		if !seen[name] {
			continue
		}
		if s.URL == "" || s.Selectors.Items == "" || s.Selectors.Title == "" {
			errs = append(errs, fmt.Errorf("%s: url, selectors.items and selectors.title are required", name))
		}
		if s.YearField != "" && s.YearField != "item" && s.YearField != "publisher" {
			errs = append(errs, fmt.Errorf("%s: year_field must be item or publisher, got %q", name, s.YearField))
		}
	}

	return errors.Join(errs...)
}

// Redacted returns a copy with API keys masked, for display.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	c.Fallbacks = slices.Clone(c.Fallbacks)
	c.GoogleBooks.APIKey = mask(c.GoogleBooks.APIKey)
	c.OpenLibrary.APIKey = mask(c.OpenLibrary.APIKey)
	c.ISBNdb.APIKey = mask(c.ISBNdb.APIKey)
	return c
}

// YAML renders the configuration in config file form.
func (c Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(out), nil
}
