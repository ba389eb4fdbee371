package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRunMetrics_Counters(t *testing.T) {
	m := NewRunMetrics()

	m.Message()
	m.Message()
	m.Attachment(OutcomeDownloaded, "image")
	m.Attachment(OutcomeDownloaded, "image")
	m.Attachment(OutcomeRepaired, "video")
	m.Bytes(2048)
	m.Bytes(-1) // ignored
	m.Channel()
	m.Channel()
	m.ChannelFailed()

	if got := testutil.ToFloat64(m.messages); got != 2 {
		t.Fatalf("messages = %v; want 2", got)
	}
	if got := testutil.ToFloat64(m.attachments.WithLabelValues(OutcomeDownloaded, "image")); got != 2 {
		t.Fatalf("downloaded/image = %v; want 2", got)
	}
	if got := testutil.ToFloat64(m.attachments.WithLabelValues(OutcomeRepaired, "video")); got != 1 {
		t.Fatalf("repaired/video = %v; want 1", got)
	}
	if got := testutil.ToFloat64(m.bytes); got != 2048 {
		t.Fatalf("bytes = %v; want 2048", got)
	}
	if got := testutil.ToFloat64(m.channels.WithLabelValues("scanned")); got != 2 {
		t.Fatalf("channels scanned = %v; want 2", got)
	}
	if got := testutil.ToFloat64(m.channels.WithLabelValues("failed")); got != 1 {
		t.Fatalf("channels failed = %v; want 1", got)
	}

	start := time.Unix(1_700_000_000, 0)
	m.Finish(start, start.Add(90*time.Second))
	if got := testutil.ToFloat64(m.duration); got != 90 {
		t.Fatalf("duration = %v; want 90", got)
	}
	if got := testutil.ToFloat64(m.lastRun); got != 1_700_000_090 {
		t.Fatalf("last run = %v", got)
	}
}

func TestRunMetrics_NilIsNoop(t *testing.T) {
	var m *RunMetrics
	m.Message()
	m.Attachment(OutcomeFailed, "image")
	m.Bytes(10)
	m.Channel()
	m.ChannelFailed()
	m.Finish(time.Now(), time.Now())
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Fatalf("nil WriteTextfile: %v", err)
	}
}

func TestRunMetrics_WriteTextfile(t *testing.T) {
	m := NewRunMetrics()
	m.Attachment(OutcomeSkipped, "image")

	if err := m.WriteTextfile(""); err != nil {
		t.Fatalf("empty path must be a no-op, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "discord_media.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(b)
	for _, want := range []string{
		`discord_media_attachments_total{kind="image",outcome="skipped"} 1`,
		"# TYPE discord_media_messages_scanned_total counter",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("textfile missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "http_requests_total") {
		t.Fatalf("run registry must not include HTTP collectors")
	}
}
