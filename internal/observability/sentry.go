package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// Reporter forwards non-fatal errors to an error tracker.
type Reporter interface {
	Capture(err error, tags map[string]string)
	Flush(timeout time.Duration) bool
}

// NopReporter discards everything.
type NopReporter struct{}

// Capture implements Reporter.
func (NopReporter) Capture(error, map[string]string) {}

// Flush implements Reporter.
func (NopReporter) Flush(time.Duration) bool { return true }

// SentryReporter reports through a sentry Hub.
type SentryReporter struct {
	hub *sentry.Hub
}

// SetupSentry initializes Sentry for dsn. An empty dsn returns a NopReporter.
func SetupSentry(dsn, environment, release string) (Reporter, error) {
	if dsn == "" {
		return NopReporter{}, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, err
	}
	return NewSentryReporter(sentry.NewHub(client, sentry.NewScope())), nil
}

// NewSentryReporter wraps an existing hub.
func NewSentryReporter(hub *sentry.Hub) *SentryReporter {
	return &SentryReporter{hub: hub}
}

// Capture sends err with tags attached to a scope local to this event.
func (r *SentryReporter) Capture(err error, tags map[string]string) {
	if err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		r.hub.CaptureException(err)
	})
}

// Flush waits for buffered events to be delivered.
func (r *SentryReporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}
