package window

import (
	"errors"
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func TestResolve_InclusiveBoundaries(t *testing.T) {
	w, err := Resolve("2025-11-05", "2025-11-09", time.Now())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	cases := map[string]bool{
		"2025-11-05T00:00:00Z":        true,
		"2025-11-07T12:30:00Z":        true,
		"2025-11-09T23:59:59.999999Z": true,
		"2025-11-10T00:00:00Z":        false,
		"2025-11-04T23:59:59.999999Z": false,
	}
	for in, want := range cases {
		if got := w.Contains(mustTime(t, in)); got != want {
			t.Errorf("Contains(%s) = %v; want %v", in, got, want)
		}
	}
}

func TestResolve_PaddedQueryBounds(t *testing.T) {
	w, err := Resolve("2025-11-05", "2025-11-09", time.Now())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := mustTime(t, "2025-11-04T23:59:59Z"); !w.After.Equal(want) {
		t.Fatalf("After = %s; want %s", w.After, want)
	}
	if want := mustTime(t, "2025-11-10T00:00:00.999999Z"); !w.Before.Equal(want) {
		t.Fatalf("Before = %s; want %s", w.Before, want)
	}
}

func TestResolve_EndDefaultsToNow(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2025, 11, 6, 15, 4, 5, 0, loc)

	w, err := Resolve("2025-11-05", "", now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !w.End.Equal(now) || w.End.Location() != time.UTC {
		t.Fatalf("End = %v; want %v in UTC", w.End, now.UTC())
	}
	if w.Contains(now.Add(time.Microsecond)) {
		t.Fatalf("instant after now must be outside the window")
	}
}

func TestResolve_SameDay(t *testing.T) {
	w, err := Resolve("2025-11-05", "2025-11-05", time.Now())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !w.Contains(mustTime(t, "2025-11-05T18:00:00Z")) {
		t.Fatalf("same-day window must contain the afternoon")
	}
}

func TestResolve_Errors(t *testing.T) {
	now := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		start, end string
		want       error
	}{
		{"2025/11/05", "", ErrInvalidDateFormat},
		{"2025-11-5", "", ErrInvalidDateFormat},
		{"", "", ErrInvalidDateFormat},
		{"2025-02-30", "", ErrInvalidDateFormat},
		{"2025-11-05", "09-11-2025", ErrInvalidDateFormat},
		{"2025-11-09", "2025-11-05", ErrInvalidDateRange},
		// end defaults to now, which precedes start
		{"2025-11-05", "", ErrInvalidDateRange},
	}
	for _, tc := range cases {
		_, err := Resolve(tc.start, tc.end, now)
		if !errors.Is(err, tc.want) {
			t.Errorf("Resolve(%q, %q) err = %v; want %v", tc.start, tc.end, err, tc.want)
		}
	}
}

func TestEndOfDay(t *testing.T) {
	got := EndOfDay(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))
	want := time.Date(2024, 2, 29, 23, 59, 59, 999999000, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("EndOfDay = %s; want %s", got, want)
	}
}
