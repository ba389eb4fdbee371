package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Attachment outcomes used as the "outcome" label.
const (
	OutcomeDownloaded = "downloaded"
	OutcomeSkipped    = "skipped"
	OutcomeRepaired   = "repaired"
	OutcomeFailed     = "failed"
)

// RunMetrics holds the collectors of a fetch run. They are registered on a
// dedicated registry so a run can be exported as a node_exporter textfile
// without the process-wide HTTP collectors.
//
// A nil *RunMetrics is valid and records nothing.
type RunMetrics struct {
	Registry *prometheus.Registry

	messages    prometheus.Counter
	attachments *prometheus.CounterVec
	bytes       prometheus.Counter
	channels    *prometheus.CounterVec
	duration    prometheus.Gauge
	lastRun     prometheus.Gauge
}

// NewRunMetrics creates and registers the run collectors.
func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{
		Registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "discord_media_messages_scanned_total",
			Help: "Messages read from channel history.",
		}),
		attachments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "discord_media_attachments_total",
			Help: "Media attachments processed, by outcome and kind.",
		}, []string{"outcome", "kind"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "discord_media_downloaded_bytes_total",
			Help: "Bytes written to the download directory.",
		}),
		channels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "discord_media_channels_total",
			Help: "Channels visited (status=scanned) and the subset that failed (status=failed).",
		}, []string{"status"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "discord_media_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "discord_media_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}
	m.Registry.MustRegister(m.messages, m.attachments, m.bytes, m.channels, m.duration, m.lastRun)
	return m
}

// Message counts one scanned message.
func (m *RunMetrics) Message() {
	if m == nil {
		return
	}
	m.messages.Inc()
}

// Attachment counts one processed media attachment.
func (m *RunMetrics) Attachment(outcome, kind string) {
	if m == nil {
		return
	}
	m.attachments.WithLabelValues(outcome, kind).Inc()
}

// Bytes adds n written bytes.
func (m *RunMetrics) Bytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytes.Add(float64(n))
}

// Channel counts a visited channel.
func (m *RunMetrics) Channel() {
	if m == nil {
		return
	}
	m.channels.WithLabelValues("scanned").Inc()
}

// ChannelFailed counts a channel whose scan was cut short by an error.
func (m *RunMetrics) ChannelFailed() {
	if m == nil {
		return
	}
	m.channels.WithLabelValues("failed").Inc()
}

// Finish records the run duration and completion time.
func (m *RunMetrics) Finish(started, finished time.Time) {
	if m == nil {
		return
	}
	m.duration.Set(finished.Sub(started).Seconds())
	m.lastRun.Set(float64(finished.Unix()))
}

// WriteTextfile writes the registry in the Prometheus text format. The file
// is written atomically so a collector never reads a partial file.
func (m *RunMetrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
