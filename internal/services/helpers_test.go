package services

import (
	"context"
	"io"
	"iter"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-discord-media/internal/observability"
	"github.com/tbourn/go-discord-media/internal/source"
	"github.com/tbourn/go-discord-media/internal/storage"
	"github.com/tbourn/go-discord-media/internal/window"
)

// ----- DB -----

func newServicesDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newStore(t *testing.T) *ManifestStore {
	t.Helper()
	s := NewManifestStore(newServicesDB(t))
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

// ----- Source mock -----

type mockSource struct{ mock.Mock }

func (m *mockSource) Connect(ctx context.Context) (source.Principal, error) {
	args := m.Called(ctx)
	return args.Get(0).(source.Principal), args.Error(1)
}

func (m *mockSource) Guild(ctx context.Context, guildID string) (source.Guild, error) {
	args := m.Called(ctx, guildID)
	return args.Get(0).(source.Guild), args.Error(1)
}

func (m *mockSource) Channels(ctx context.Context, g source.Guild) ([]source.Channel, error) {
	args := m.Called(ctx, g)
	chs, _ := args.Get(0).([]source.Channel)
	return chs, args.Error(1)
}

func (m *mockSource) History(ctx context.Context, channelID string, after, before time.Time) iter.Seq2[source.Message, error] {
	args := m.Called(ctx, channelID, after, before)
	return args.Get(0).(iter.Seq2[source.Message, error])
}

// Fetch returns the configured string as the attachment body.
func (m *mockSource) Fetch(ctx context.Context, a source.Attachment) (io.ReadCloser, error) {
	args := m.Called(ctx, a)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(args.String(0))), nil
}

func (m *mockSource) Close() error { return nil }

func history(msgs []source.Message, tail error) iter.Seq2[source.Message, error] {
	return func(yield func(source.Message, error) bool) {
		for _, m := range msgs {
			if !yield(m, nil) {
				return
			}
		}
		if tail != nil {
			yield(source.Message{}, tail)
		}
	}
}

func attID(id string) any {
	return mock.MatchedBy(func(a source.Attachment) bool { return a.ID == id })
}

// ----- Fixtures -----

var testGuild = source.Guild{ID: "g1", Name: "Guild"}

func testWindow(t *testing.T) window.Window {
	t.Helper()
	w, err := window.Resolve("2025-11-05", "2025-11-05", time.Now())
	require.NoError(t, err)
	return w
}

func at(hh, mm int) time.Time {
	return time.Date(2025, 11, 5, hh, mm, 0, 0, time.UTC)
}

func newMessage(id string, created time.Time, atts ...source.Attachment) source.Message {
	return source.Message{
		ID:          id,
		ChannelID:   "c1",
		AuthorID:    "42",
		AuthorName:  "alice",
		CreatedAt:   created,
		Attachments: atts,
	}
}

func image(id, name string, size int64) source.Attachment {
	return source.Attachment{
		ID:          id,
		Filename:    name,
		ContentType: "image/png",
		URL:         "https://cdn.example/" + id + "/" + name,
		Size:        size,
	}
}

type harness struct {
	src   *mockSource
	store *ManifestStore
	files *storage.FileStore
}

// newHarness wires a connected source for guild g1, a migrated manifest and
// an empty download directory. Tests add Channels/History/Fetch expectations.
func newHarness(t *testing.T) *harness {
	t.Helper()
	files, err := storage.New(filepath.Join(t.TempDir(), "downloads"))
	require.NoError(t, err)

	src := &mockSource{}
	src.On("Connect", mock.Anything).Return(source.Principal{ID: "bot", Name: "archiver"}, nil).Maybe()
	src.On("Guild", mock.Anything, "g1").Return(testGuild, nil).Maybe()

	return &harness{src: src, store: newStore(t), files: files}
}

func (h *harness) channels(ids ...string) {
	chs := make([]source.Channel, 0, len(ids))
	for _, id := range ids {
		chs = append(chs, source.Channel{ID: id, GuildID: "g1", Name: "chan-" + id})
	}
	h.src.On("Channels", mock.Anything, testGuild).Return(chs, nil)
}

func (h *harness) history(channelID string, msgs []source.Message, tail error) {
	h.src.On("History", mock.Anything, channelID, mock.Anything, mock.Anything).Return(history(msgs, tail))
}

func (h *harness) ingestor(opts IngestOptions) *Ingestor {
	return NewIngestor(h.src, h.store, h.files, zerolog.Nop(), opts, WithMetrics(observability.NewRunMetrics()))
}
