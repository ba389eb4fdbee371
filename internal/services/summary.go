package services

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Summary holds the counters of one run. Skipped includes Repaired.
type Summary struct {
	RunID           string
	MessagesScanned int64
	Downloaded      int64
	Skipped         int64
	Repaired        int64
	Failed          int64
	ChannelsScanned int64
	ChannelsFailed  int64
	DryRun          bool
	Interrupted     bool
	Duration        time.Duration
}

// Print writes the human-readable end-of-run report. Numbers are grouped
// according to tag.
func (s Summary) Print(w io.Writer, tag language.Tag) error {
	p := message.NewPrinter(tag)

	title := "Summary"
	switch {
	case s.Interrupted:
		title = "Summary (interrupted)"
	case s.DryRun:
		title = "Summary (dry run)"
	}
	downloaded := "Files downloaded:"
	if s.DryRun {
		downloaded = "Files to download:"
	}

	rows := []struct {
		label string
		n     int64
	}{
		{"Messages scanned:", s.MessagesScanned},
		{downloaded, s.Downloaded},
		{"Already downloaded:", s.Skipped},
		{"Recorded from disk:", s.Repaired},
		{"Failed:", s.Failed},
		{"Channels scanned:", s.ChannelsScanned},
		{"Channels failed:", s.ChannelsFailed},
	}

	if _, err := fmt.Fprintf(w, "\n%s\n", title); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := p.Fprintf(w, "  %-20s %d\n", r.label, r.n); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "  %-20s %s\n", "Duration:", s.Duration.Round(time.Millisecond))
	return err
}
