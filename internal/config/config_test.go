package config

import (
	"testing"
	"time"

	"github.com/lepinkainen/bookenrich/internal/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func loadDefaults(t *testing.T) *Config {
	t.Helper()

	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := loadDefaults(t)

	assert.Equal(t, 3, cfg.MaxResults)
	assert.Equal(t, time.Second, cfg.RateLimitDelay)
	assert.Equal(t, KnownFallbacks, cfg.Fallbacks)
	assert.Equal(t, "https://www.googleapis.com/books/v1/volumes", cfg.GoogleBooks.URL)
	assert.Equal(t, ".tableList tr", cfg.Goodreads.Selectors.Items)
	assert.Equal(t, ".bibliography", cfg.WorldCat.Selectors.Items)
	assert.Equal(t, "publisher", cfg.WorldCat.YearField)
	assert.True(t, cfg.Goodreads.RequireAuthor)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 720*time.Hour, cfg.Cache.TTL)
}

func TestNew_MissingDefaultFileUsesDefaults(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.Chdir(".")

	v, err := New("")
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxResults)
}

func TestNew_MissingExplicitFileFails(t *testing.T) {
	env := testutil.NewTestEnv(t)

	_, err := New(env.Path("nope.yaml"))
	require.Error(t, err)
}

func TestNew_ReadsFileAndEnv(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFileString("config.yaml", `
max_results: 5
rate_limit_delay: 250ms
fallbacks: [worldcat, goodreads]
goodreads:
  selectors:
    items: ".result"
`)
	env.SetEnv("GOOGLE_BOOKS_API_KEY", "secret-key")
	env.SetEnv("BOOKENRICH_HTTP_TIMEOUT", "3s")

	v, err := New(env.Path("config.yaml"))
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxResults)
	assert.Equal(t, 250*time.Millisecond, cfg.RateLimitDelay)
	assert.Equal(t, []string{"worldcat", "goodreads"}, cfg.Fallbacks)
	assert.Equal(t, ".result", cfg.Goodreads.Selectors.Items)
	assert.Equal(t, ".bookTitle", cfg.Goodreads.Selectors.Title, "unset nested keys keep defaults")
	assert.Equal(t, "secret-key", cfg.GoogleBooks.APIKey)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid defaults", mutate: func(*Config) {}},
		{name: "zero max results", mutate: func(c *Config) { c.MaxResults = 0 }, wantErr: "max_results"},
		{name: "negative delay", mutate: func(c *Config) { c.RateLimitDelay = -time.Second }, wantErr: "rate_limit_delay"},
		{name: "unknown fallback", mutate: func(c *Config) { c.Fallbacks = []string{"amazon"} }, wantErr: "unknown fallback source"},
		{name: "duplicate fallback", mutate: func(c *Config) { c.Fallbacks = []string{"worldcat", "worldcat"} }, wantErr: "listed twice"},
		{name: "missing selector", mutate: func(c *Config) { c.WorldCat.Selectors.Items = "" }, wantErr: "worldcat"},
		{
			name: "missing selector on unused source is fine",
			mutate: func(c *Config) {
				c.Fallbacks = []string{"goodreads"}
				c.WorldCat.Selectors.Items = ""
			},
		},
		{name: "bad year field", mutate: func(c *Config) { c.Goodreads.YearField = "title" }, wantErr: "year_field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadDefaults(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRedactedYAML(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.GoogleBooks.APIKey = "super-secret"

	out, err := cfg.Redacted().YAML()
	require.NoError(t, err)
	assert.NotContains(t, out, "super-secret")
	assert.Contains(t, out, "****")
	assert.Equal(t, "super-secret", cfg.GoogleBooks.APIKey, "redaction must not touch the original")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "1s", decoded["rate_limit_delay"])
	assert.Equal(t, 3, decoded["max_results"])
}
