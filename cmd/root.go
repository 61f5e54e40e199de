package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/bookenrich/internal/config"
	apperrors "github.com/lepinkainen/bookenrich/internal/errors"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Globals are flags shared by every command.
type Globals struct {
	Config   string `help:"Path to config file (default ./config.yaml when present)" type:"path"`
	LogLevel string `help:"Log level" enum:"debug,info,warn,error" default:"info"`
	CacheDB  string `help:"Path to cache SQLite database file (overrides cache.dbfile)"`
	CacheTTL string `help:"Cache time-to-live duration (e.g., 720h for 30 days)"`

	runID string
}

// CLI represents the complete command structure for the bookenrich application
type CLI struct {
	Globals

	Enrich EnrichCmd `cmd:"" default:"withargs" help:"Enrich a list of books with metadata from online sources"`
	Cache  CacheCmd  `cmd:"" help:"Manage the response cache"`
	Conf   ConfCmd   `cmd:"" name:"config" help:"Inspect the configuration"`
}

// CacheCmd groups the cache maintenance commands
type CacheCmd struct {
	Invalidate CacheInvalidateCmd `cmd:"" help:"Remove every cached response of one source"`
	Prune      CachePruneCmd      `cmd:"" help:"Remove expired cache entries"`
}

// ConfCmd groups the configuration commands
type ConfCmd struct {
	Show ConfigShowCmd `cmd:"" help:"Print the effective configuration as YAML (API keys masked)"`
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	opts := append([]kong.Option{
		kong.Name("bookenrich"),
		kong.Description("Enrich partial book records (name + ISBN) with bibliographic metadata."),
		kong.UsageOnError(),
	}, options...)
	return kong.New(cli, opts...)
}

// Execute runs the Kong-based CLI
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// run parses args, executes the selected command and returns the exit code.
func run(ctx context.Context, args []string) int {
	var cli CLI
	parser, err := newParser(&cli, kong.Writers(stdout, stderr))
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return 2
	}

	cli.runID = uuid.NewString()
	initLogging(stderr, cli.LogLevel)
	slog.SetDefault(slog.Default().With("run_id", cli.runID))

	kctx.BindTo(ctx, (*context.Context)(nil))
	err = kctx.Run(&cli.Globals)
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case apperrors.IsStopProcessingError(err):
		slog.Info("Stopped by user")
		return 0
	case errors.Is(err, context.Canceled):
		slog.Error("Interrupted", "error", err)
		return 1
	default:
		slog.Error("Command failed", "error", err)
		return 1
	}
}

// loadConfig builds the run configuration. Overrides are applied on top of
// the config file and environment before validation.
func (g *Globals) loadConfig(overrides map[string]any) (*config.Config, error) {
	v, err := config.New(g.Config)
	if err != nil {
		return nil, err
	}
	applyOverrides(v, g.overrides())
	applyOverrides(v, overrides)
	return config.Load(v)
}

func (g *Globals) overrides() map[string]any {
	o := map[string]any{}
	if g.CacheDB != "" {
		o["cache.dbfile"] = g.CacheDB
	}
	if g.CacheTTL != "" {
		o["cache.ttl"] = g.CacheTTL
	}
	return o
}

func applyOverrides(v *viper.Viper, overrides map[string]any) {
	for k, val := range overrides {
		v.Set(k, val)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func initLogging(w io.Writer, level string) {
	// Create a human-readable handler for logging
	handler := humanlog.NewHandler(w, &humanlog.Options{
		Level: parseLevel(level),
	})

	// Set the default logger
	slog.SetDefault(slog.New(handler))
}
