package main

import (
	"context"
	"io"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tbourn/go-discord-media/internal/repo"
)

func (a *app) stats(ctx context.Context) int {
	store, closeDB, err := a.openManifest(ctx)
	if err != nil {
		return a.fatal(err, "manifest unavailable")
	}
	defer closeDB()

	totals, err := store.ChannelTotals(ctx)
	if err != nil {
		return a.fatal(err, "could not aggregate manifest")
	}
	if err := printTotals(a.stdout, totals, language.English); err != nil {
		a.log.Warn().Err(err).Msg("could not print totals")
	}
	return 0
}

// printTotals writes one aligned row per channel followed by a total row.
func printTotals(w io.Writer, totals []repo.ChannelTotal, tag language.Tag) error {
	p := message.NewPrinter(tag)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	var files, bytes, repaired int64
	p.Fprintf(tw, "channel\tfiles\tbytes\trepaired\tlatest\t\n")
	for _, t := range totals {
		p.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t\n", t.ChannelID, t.Files, t.Bytes, t.Repaired, t.Latest)
		files += t.Files
		bytes += t.Bytes
		repaired += t.Repaired
	}
	p.Fprintf(tw, "total\t%d\t%d\t%d\t\t\n", files, bytes, repaired)
	return tw.Flush()
}
