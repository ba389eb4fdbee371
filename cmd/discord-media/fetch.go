package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"golang.org/x/text/language"

	"github.com/tbourn/go-discord-media/internal/observability"
	"github.com/tbourn/go-discord-media/internal/services"
	"github.com/tbourn/go-discord-media/internal/source/discord"
	"github.com/tbourn/go-discord-media/internal/storage"
	"github.com/tbourn/go-discord-media/internal/window"
)

type fetchArgs struct {
	window window.Window
	dryRun bool
}

// parseFetchArgs parses the fetch flags and resolves the date window
// against now. Every failure wraps errUsage.
func parseFetchArgs(args []string, now time.Time, out io.Writer) (fetchArgs, error) {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(out)
	start := fs.String("date-start", "", "first UTC day to scan, YYYY-MM-DD (required)")
	end := fs.String("date-end", "", "last UTC day to scan, YYYY-MM-DD (default: now)")
	dryRun := fs.Bool("dry-run", false, "log what would be downloaded without writing anything")
	if err := fs.Parse(args); err != nil {
		return fetchArgs{}, fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fetchArgs{}, fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	if *start == "" {
		return fetchArgs{}, fmt.Errorf("%w: --date-start is required", errUsage)
	}
	w, err := window.Resolve(*start, *end, now)
	if err != nil {
		return fetchArgs{}, fmt.Errorf("%w: %w", errUsage, err)
	}
	return fetchArgs{window: w, dryRun: *dryRun}, nil
}

func (a *app) fetch(ctx context.Context, args []string) int {
	fa, err := parseFetchArgs(args, time.Now(), a.stdout)
	if err != nil {
		return a.fatal(err, "invalid arguments")
	}
	if err := a.cfg.Discord.Validate(); err != nil {
		return a.fatal(err, "invalid configuration")
	}

	store, closeDB, err := a.openManifest(ctx)
	if err != nil {
		return a.fatal(err, "manifest unavailable")
	}
	defer closeDB()

	files, err := storage.New(a.cfg.DownloadDir)
	if err != nil {
		return a.fatal(err, "download directory unavailable")
	}
	a.log.Debug().Str("dir", files.Dir()).Msg("download directory ready")

	client, err := discord.New(a.cfg.Discord.Token)
	if err != nil {
		return a.fatal(err, "discord client")
	}
	defer client.Close()

	metrics := observability.NewRunMetrics()
	in := services.NewIngestor(client, store, files, a.log,
		services.IngestOptions{StrictRepair: a.cfg.StrictRepair, DryRun: fa.dryRun},
		services.WithMetrics(metrics),
		services.WithReporter(a.reporter),
	)

	sum, err := in.Run(ctx, a.cfg.Discord.GuildID, fa.window)
	if err != nil {
		return a.fatal(err, "fetch aborted")
	}

	if err := sum.Print(a.stdout, language.English); err != nil {
		a.log.Warn().Err(err).Msg("could not print summary")
	}
	if err := metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
		a.log.Warn().Err(err).Str("path", a.cfg.MetricsTextfile).Msg("could not write metrics textfile")
	}
	return 0
}
