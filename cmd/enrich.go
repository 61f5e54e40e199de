package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/lepinkainen/bookenrich/internal/cache"
	"github.com/lepinkainen/bookenrich/internal/config"
	"github.com/lepinkainen/bookenrich/internal/datastore"
	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
	"github.com/lepinkainen/bookenrich/internal/enrichment/source"
	"github.com/lepinkainen/bookenrich/internal/fileutil"
	"github.com/lepinkainen/bookenrich/internal/ledger"
	"github.com/lepinkainen/bookenrich/internal/resolve"
	"github.com/lepinkainen/bookenrich/internal/tui"
)

var (
	isInteractive = func() bool {
		in, out := os.Stdin.Fd(), os.Stdout.Fd()
		return (isatty.IsTerminal(in) || isatty.IsCygwinTerminal(in)) &&
			(isatty.IsTerminal(out) || isatty.IsCygwinTerminal(out))
	}
	promptSecret  = tui.PromptSecret
	selectOption  = tui.SelectOption
	newBrowser    = func(cfg config.BrowserConfig, ua string) browserFetcher { return source.NewBrowserFetcher(cfg, ua) }
	newAPIFetcher = func(cfg *config.Config) source.Fetcher { return source.NewHTTPFetcher(cfg.UserAgent, cfg.HTTPTimeout) }
	downloadCover = fileutil.DownloadCover
	mirrorLedger  = datastore.MirrorToFile
)

type browserFetcher interface {
	source.Fetcher
	Close()
}

// EnrichCmd represents the enrich command
type EnrichCmd struct {
	Input       string        `short:"f" help:"Input file with book_name and isbn columns (extension picks csv or xlsx)" default:"books"`
	Output      string        `short:"o" help:"Enriched output file; existing records are kept and only new books are looked up" default:"enriched_books"`
	Format      string        `help:"Format for paths without extension (csv, xlsx, json; default csv)"`
	PromptFiles bool          `help:"Ask for the file format when --format is not given"`
	APIKey      string        `help:"Google Books API key (else config, GOOGLE_BOOKS_API_KEY, or an interactive prompt)"`
	Policy      string        `help:"How to choose among fallback matches: prompt, first or skip" enum:"prompt,first,skip" default:"prompt"`
	Sources     []string      `help:"Fallback sources in priority order (goodreads, worldcat, openlibrary, isbndb)"`
	Delay       time.Duration `help:"Delay between source calls and between books (default from config, 1s)"`
	MaxResults  int           `help:"Maximum candidates taken from each fallback source (default from config, 3)"`
	Browser     bool          `help:"Render scraped search pages with headless Chrome"`
	Covers      string        `help:"Download covers of newly enriched books into this directory" type:"path"`
	SQLite      string        `name:"sqlite" help:"Mirror the enriched ledger into this SQLite database" type:"path"`
	NoCache     bool          `help:"Disable the response cache"`
	DryRun      bool          `help:"List the books that would be looked up and exit"`
}

func (e *EnrichCmd) overrides() map[string]any {
	o := map[string]any{}
	if e.APIKey != "" {
		o["google_books.api_key"] = e.APIKey
	}
	if len(e.Sources) > 0 {
		o["fallbacks"] = e.Sources
	}
	if e.Delay > 0 {
		o["rate_limit_delay"] = e.Delay
	}
	if e.MaxResults > 0 {
		o["max_results"] = e.MaxResults
	}
	if e.Browser {
		o["browser.enabled"] = true
	}
	if e.NoCache {
		o["cache.enabled"] = false
	}
	return o
}

// Run executes the enrichment pipeline.
func (e *EnrichCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := g.loadConfig(e.overrides())
	if err != nil {
		return err
	}
	interactive := isInteractive()

	inPath, outPath, err := e.resolvePaths(ctx, interactive)
	if err != nil {
		return err
	}

	queries, err := ledger.ReadQueries(inPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	store := ledger.FileStore{Path: outPath}

	if e.DryRun {
		return e.dryRun(queries, store)
	}

	unlock, err := ledger.Lock(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	if cfg.GoogleBooks.APIKey == "" && interactive {
		key, err := promptSecret(ctx, "Google Books API key (optional, Enter to skip)")
		switch {
		case errors.Is(err, tui.ErrPromptCancelled):
		case err != nil:
			return err
		default:
			cfg.GoogleBooks.APIKey = key
		}
	}
	if cfg.GoogleBooks.APIKey == "" {
		slog.Info("No Google Books API key, using anonymous quota")
	}

	chooser, err := e.chooser(interactive)
	if err != nil {
		return err
	}

	var cacheDB *cache.CacheDB
	if cfg.Cache.Enabled {
		cacheDB, err = cache.Open(cfg.Cache.DBFile, cfg.Cache.TTL)
		if err != nil {
			slog.Warn("Cache unavailable, fetching directly", "path", cfg.Cache.DBFile, "error", err)
			cacheDB = nil
		} else {
			defer func() { _ = cacheDB.Close() }()
		}
	}

	deps := source.Deps{API: newAPIFetcher(cfg), Cache: cacheDB}
	if cfg.Browser.Enabled {
		b := newBrowser(cfg.Browser, cfg.UserAgent)
		defer b.Close()
		deps.Pages = b
	}

	primary := source.NewPrimary(cfg, deps)
	fallbacks, err := source.NewFallbacks(cfg, deps)
	if err != nil {
		return err
	}
	slog.Info("Sources ready", "primary", primary.Name(), "fallbacks", strings.Join(source.Names(fallbacks), ","))

	resolver := resolve.NewResolver(primary, resolve.NewAggregator(fallbacks, cfg.MaxResults, cfg.RateLimitDelay), chooser)
	engine := ledger.NewEngine(resolver, store, cfg.RateLimitDelay)

	report, runErr := engine.Run(ctx, queries)

	var persistErr *ledger.PersistError
	if errors.As(runErr, &persistErr) {
		dumpRecords(report.Added)
		return fmt.Errorf("failed to save %s: %w", outPath, runErr)
	}

	if report.Written {
		e.writeArtifacts(ctx, cfg, g.runID, report)
	}

	printSummary(report, outPath)
	return runErr
}

func (e *EnrichCmd) resolvePaths(ctx context.Context, interactive bool) (string, string, error) {
	def := ledger.FormatCSV
	switch {
	case e.Format != "":
		def = ledger.Format(e.Format)
	case e.PromptFiles && interactive:
		names := make([]string, len(ledger.Formats))
		for i, f := range ledger.Formats {
			names[i] = string(f)
		}
		picked, err := selectOption(ctx, "File format for paths without an extension", names, string(ledger.FormatCSV))
		if err != nil {
			return "", "", err
		}
		def = ledger.Format(picked)
	}

	inPath, _, err := ledger.ResolvePath(e.Input, def)
	if err != nil {
		return "", "", fmt.Errorf("input: %w", err)
	}
	outPath, _, err := ledger.ResolvePath(e.Output, def)
	if err != nil {
		return "", "", fmt.Errorf("output: %w", err)
	}
	return inPath, outPath, nil
}

func (e *EnrichCmd) chooser(interactive bool) (resolve.Chooser, error) {
	if e.Policy == "" || e.Policy == resolve.PolicyPrompt {
		if interactive {
			return tui.CandidateChooser{}, nil
		}
		slog.Warn("No terminal for prompts, skipping ambiguous books", "policy", resolve.PolicySkip)
		return resolve.SkipChoice{}, nil
	}
	return resolve.NewPolicyChooser(e.Policy)
}

func (e *EnrichCmd) dryRun(queries []book.Query, store ledger.Store) error {
	existing, err := store.Load()
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	pending := ledger.Pending(queries, existing)
	printPending(pending, existing.Len())
	return nil
}

// writeArtifacts produces the optional outputs of a run. Failures are logged
// and do not fail the run: the ledger has already been saved.
func (e *EnrichCmd) writeArtifacts(ctx context.Context, cfg *config.Config, runID string, report ledger.Report) {
	if e.SQLite != "" {
		if err := mirrorLedger(e.SQLite, runID, report.Ledger.Records()); err != nil {
			slog.Warn("SQLite mirror failed", "path", e.SQLite, "error", err)
		} else {
			slog.Info("Mirrored ledger to SQLite", "path", e.SQLite, "records", report.Ledger.Len())
		}
	}

	if e.Covers != "" {
		for _, r := range report.Added {
			if r.CoverURL == "" {
				continue
			}
			_, err := downloadCover(ctx, fileutil.CoverDownloadOptions{
				URL:       r.CoverURL,
				OutputDir: e.Covers,
				Filename:  fileutil.BuildCoverFilename(r.Key()),
				UserAgent: cfg.UserAgent,
			})
			if err != nil {
				slog.Warn("Cover download failed", "isbn", r.ISBN, "error", err)
			}
		}
	}
}

// dumpRecords writes records that could not be saved to stderr so the work
// of the run is not lost.
func dumpRecords(records []book.Record) {
	if records == nil {
		records = []book.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		slog.Error("Failed to encode unsaved records", "error", err)
		return
	}
	_, _ = fmt.Fprintf(stderr, "Unsaved records:\n%s\n", data)
}

