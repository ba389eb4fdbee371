// Command discord-media archives the image and video attachments of a Discord
// guild into a local directory, tracked by a SQLite manifest.
//
// Usage:
//
//	discord-media [fetch] --date-start YYYY-MM-DD [--date-end YYYY-MM-DD] [--dry-run]
//	discord-media serve
//	discord-media stats
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-discord-media/internal/config"
	"github.com/tbourn/go-discord-media/internal/observability"
	"github.com/tbourn/go-discord-media/internal/repo"
	"github.com/tbourn/go-discord-media/internal/services"
	"github.com/tbourn/go-discord-media/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const flushTimeout = 5 * time.Second

// app carries what every subcommand shares once startup succeeded.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	reporter observability.Reporter
	stdout   io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches the subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cmd, rest := splitCommand(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dotenv := config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}
	lg := sysutil.SetupLogger(stderr, cfg.LogLevel, cfg.LogPretty)
	lg.Debug().Bool("dotenv", dotenv).Str("version", version).Str("command", cmd).Msg("starting")

	rel := sysutil.ResolveVersion(version)

	shutdown, err := observability.SetupOTel(ctx, cfg.OTEL, rel, cfg.Environment)
	if err != nil {
		lg.Warn().Err(err).Msg("tracing disabled")
		shutdown = nil
	}
	defer func() {
		if err := observability.Stop(shutdown, flushTimeout); err != nil {
			lg.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	reporter, err := observability.SetupSentry(cfg.SentryDSN, cfg.Environment, rel)
	if err != nil {
		lg.Warn().Err(err).Msg("error reporting disabled")
		reporter = observability.NopReporter{}
	}
	defer reporter.Flush(flushTimeout)

	a := &app{cfg: cfg, log: lg, reporter: reporter, stdout: stdout}

	switch cmd {
	case "fetch":
		return a.fetch(ctx, rest)
	case "serve":
		return a.serve(ctx)
	case "stats":
		return a.stats(ctx)
	default:
		fmt.Fprintf(stderr, "unknown command %q (want fetch, serve or stats)\n", cmd)
		return 2
	}
}

// splitCommand treats a leading non-flag argument as the subcommand and
// defaults to fetch.
func splitCommand(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "fetch", args
}

// openManifest opens and migrates the manifest database.
func (a *app) openManifest(ctx context.Context) (*services.ManifestStore, func(), error) {
	db, err := repo.OpenSQLite(a.cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open manifest %s: %w", a.cfg.DBPath, err)
	}
	closeDB := func() {
		if err := repo.Close(db); err != nil {
			a.log.Warn().Err(err).Msg("close manifest")
		}
	}
	if a.cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			a.log.Warn().Err(err).Msg("manifest tracing disabled")
		}
	}
	store := services.NewManifestStore(db)
	if err := store.Initialize(ctx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("migrate manifest: %w", err)
	}
	return store, closeDB, nil
}

// fatal logs err, reports it unless it is a usage error, and returns exit
// code 1.
func (a *app) fatal(err error, msg string) int {
	a.log.Error().Err(err).Msg(msg)
	if !isUsage(err) {
		a.reporter.Capture(err, map[string]string{"stage": "startup"})
	}
	return 1
}

// errUsage marks bad invocations; they are not sent to Sentry.
var errUsage = errors.New("usage")

func isUsage(err error) bool {
	return errors.Is(err, flag.ErrHelp) || errors.Is(err, errUsage)
}
