// Package window resolves the user-supplied date range of a scan into an
// inclusive UTC instant window, plus the padded bounds used when querying a
// history API whose before/after parameters are exclusive.
package window

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// DateLayout is the only accepted calendar-date format.
const DateLayout = "2006-01-02"

// pad widens the query bounds so messages stamped exactly on a window edge
// survive an exclusive-bound history query.
const pad = time.Second

var (
	// ErrInvalidDateFormat is returned when a date does not match YYYY-MM-DD.
	ErrInvalidDateFormat = errors.New("invalid date format, expected YYYY-MM-DD")

	// ErrInvalidDateRange is returned when the resolved end precedes the start.
	ErrInvalidDateRange = errors.New("date-end must be on/after date-start")
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Window is an inclusive [Start, End] range of UTC instants.
//
// After and Before are the exclusive query bounds derived from it. They are
// only a device to avoid losing boundary messages; Contains is the
// authoritative filter.
type Window struct {
	Start  time.Time
	End    time.Time
	After  time.Time
	Before time.Time
}

// Resolve parses start (required) and end (optional) as UTC calendar dates.
// An empty end means now; a given end covers that whole calendar day.
func Resolve(start, end string, now time.Time) (Window, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Window{}, err
	}

	var e time.Time
	if end == "" {
		e = now.UTC()
	} else {
		d, err := ParseDate(end)
		if err != nil {
			return Window{}, err
		}
		e = EndOfDay(d)
	}

	if e.Before(s) {
		return Window{}, ErrInvalidDateRange
	}

	return Window{
		Start:  s,
		End:    e,
		After:  s.Add(-pad),
		Before: e.Add(pad),
	}, nil
}

// ParseDate parses a YYYY-MM-DD string to midnight UTC of that day.
func ParseDate(v string) (time.Time, error) {
	if !datePattern.MatchString(v) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, v)
	}
	t, err := time.ParseInLocation(DateLayout, v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, v)
	}
	return t, nil
}

// EndOfDay returns 23:59:59.999999 on the calendar day of d (UTC).
// Microsecond precision matches what the history API reports.
func EndOfDay(d time.Time) time.Time {
	y, m, day := d.UTC().Date()
	return time.Date(y, m, day, 23, 59, 59, 999999000, time.UTC)
}

// Contains reports whether t falls inside the inclusive window.
func (w Window) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(w.Start) && !t.After(w.End)
}

// String renders the window for logs.
func (w Window) String() string {
	return w.Start.Format(time.RFC3339Nano) + " .. " + w.End.Format(time.RFC3339Nano)
}
