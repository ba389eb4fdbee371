package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-discord-media/internal/domain"
	"github.com/tbourn/go-discord-media/internal/repo"
	"github.com/tbourn/go-discord-media/internal/services"
)

// ---------- fixtures ----------

const runID = "7f0c8a52-3c1e-4f57-9b7e-2a4d8e6b1c90"

func newManifest(t *testing.T) *services.ManifestStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:handlers_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := services.NewManifestStore(db)
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func seed(t *testing.T, store *services.ManifestStore) {
	t.Helper()
	ctx := context.Background()
	rows := []struct{ id, channel, created string }{
		{"1001", "500", "2025-11-05T09:00:00+00:00"},
		{"1002", "500", "2025-11-05T10:00:00+00:00"},
		{"1003", "600", "2025-11-05T11:00:00+00:00"},
	}
	for _, r := range rows {
		_, err := store.Insert(ctx, &domain.DownloadRecord{
			AttachmentID: r.id,
			MessageID:    "9" + r.id,
			ChannelID:    r.channel,
			GuildID:      "1",
			URL:          "https://cdn.example/" + r.id,
			Filename:     r.id + ".png",
			CreatedAtUTC: r.created,
			SizeBytes:    100,
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	now := time.Date(2025, 11, 6, 8, 0, 0, 0, time.UTC)
	if err := store.BeginRun(ctx, &domain.Run{
		ID: runID, GuildID: "1", WindowStart: now, WindowEnd: now, Status: domain.RunRunning, StartedAt: now,
	}); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func newRouter(store ManifestReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(store)
	r := gin.New()
	r.GET("/downloads", h.ListDownloads)
	r.GET("/downloads/:attachment_id", h.GetDownload)
	r.GET("/runs", h.ListRuns)
	r.GET("/runs/:id", h.GetRun)
	r.GET("/stats", h.Stats)
	return r
}

func get(r *gin.Engine, target string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

// brokenStore fails every read.
type brokenStore struct{}

var errBroken = errors.New("database is locked")

func (brokenStore) Get(context.Context, string) (*domain.DownloadRecord, error) { return nil, errBroken }
func (brokenStore) ListPage(context.Context, repo.DownloadFilter, int, int) ([]domain.DownloadRecord, int64, error) {
	return nil, 0, errBroken
}
func (brokenStore) Stats(context.Context, repo.DownloadFilter) (int64, string, error) {
	return 0, "", errBroken
}
func (brokenStore) ChannelTotals(context.Context) ([]repo.ChannelTotal, error) { return nil, errBroken }
func (brokenStore) GetRun(context.Context, string) (*domain.Run, error)        { return nil, errBroken }
func (brokenStore) ListRuns(context.Context, int, int) ([]domain.Run, int64, error) {
	return nil, 0, errBroken
}

// ---------- downloads ----------

func TestListDownloads_PagesNewestFirst(t *testing.T) {
	store := newManifest(t)
	seed(t, store)
	r := newRouter(store)

	w := get(r, "/downloads?page=1&page_size=2")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	resp := decode[ListDownloadsResponse](t, w)
	if len(resp.Downloads) != 2 || resp.Downloads[0].AttachmentID != "1003" {
		t.Fatalf("unexpected page: %+v", resp.Downloads)
	}
	want := Pagination{Page: 1, PageSize: 2, Total: 3, TotalPages: 2, HasNext: true}
	if resp.Pagination != want {
		t.Fatalf("pagination = %+v; want %+v", resp.Pagination, want)
	}
}

func TestListDownloads_ChannelFilter(t *testing.T) {
	store := newManifest(t)
	seed(t, store)
	r := newRouter(store)

	resp := decode[ListDownloadsResponse](t, get(r, "/downloads?channel_id=500"))
	if resp.Pagination.Total != 2 {
		t.Fatalf("total = %d; want 2", resp.Pagination.Total)
	}
	for _, d := range resp.Downloads {
		if d.ChannelID != "500" {
			t.Fatalf("filter leaked channel %s", d.ChannelID)
		}
	}

	if w := get(r, "/downloads?channel_id=general"); w.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric channel_id: status=%d", w.Code)
	}
}

func TestListDownloads_EmptyManifestIsEmptyArray(t *testing.T) {
	r := newRouter(newManifest(t))
	w := get(r, "/downloads")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	resp := decode[map[string]json.RawMessage](t, w)
	if string(resp["downloads"]) != "[]" {
		t.Fatalf("downloads = %s; want []", resp["downloads"])
	}
}

func TestListDownloads_ETag(t *testing.T) {
	store := newManifest(t)
	seed(t, store)
	r := newRouter(store)

	w := get(r, "/downloads")
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	if w := get(r, "/downloads", "If-None-Match", etag); w.Code != http.StatusNotModified {
		t.Fatalf("matching ETag: status=%d", w.Code)
	}
	if w := get(r, "/downloads?page=2", "If-None-Match", etag); w.Code != http.StatusOK {
		t.Fatalf("another page must not match, status=%d", w.Code)
	}

	_, _ = store.Insert(context.Background(), &domain.DownloadRecord{
		AttachmentID: "1004", MessageID: "91004", ChannelID: "600", GuildID: "1",
		URL: "https://cdn.example/1004", Filename: "1004.png", CreatedAtUTC: "2025-11-05T12:00:00+00:00",
	})
	if w := get(r, "/downloads", "If-None-Match", etag); w.Code != http.StatusOK {
		t.Fatalf("stale ETag must not match after insert, status=%d", w.Code)
	}
}

func TestListDownloads_StoreFailure(t *testing.T) {
	w := get(newRouter(brokenStore{}), "/downloads")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	if w.Header().Get("ETag") != "" {
		t.Fatal("no ETag without stats")
	}
	if resp := decode[ErrorResponse](t, w); resp.Code != ErrCodeListFailed {
		t.Fatalf("code = %s", resp.Code)
	}
}

func TestGetDownload(t *testing.T) {
	store := newManifest(t)
	seed(t, store)
	r := newRouter(store)

	w := get(r, "/downloads/1002")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if rec := decode[domain.DownloadRecord](t, w); rec.Filename != "1002.png" {
		t.Fatalf("filename = %s", rec.Filename)
	}

	cases := map[string]int{
		"/downloads/4242": http.StatusNotFound,
		"/downloads/abc":  http.StatusBadRequest,
	}
	for target, status := range cases {
		if w := get(r, target); w.Code != status {
			t.Fatalf("%s: status=%d; want %d", target, w.Code, status)
		}
	}

	if w := get(newRouter(brokenStore{}), "/downloads/1"); w.Code != http.StatusInternalServerError {
		t.Fatalf("broken store: status=%d", w.Code)
	}
}

// ---------- runs ----------

func TestRuns(t *testing.T) {
	store := newManifest(t)
	seed(t, store)
	r := newRouter(store)

	list := decode[ListRunsResponse](t, get(r, "/runs"))
	if len(list.Runs) != 1 || list.Runs[0].ID != runID || list.Pagination.HasNext {
		t.Fatalf("unexpected runs: %+v", list)
	}

	w := get(r, "/runs/"+runID)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if run := decode[domain.Run](t, w); run.Status != domain.RunRunning {
		t.Fatalf("status = %s", run.Status)
	}

	if w := get(r, "/runs/"+uuid.NewString()); w.Code != http.StatusNotFound {
		t.Fatalf("unknown run: status=%d", w.Code)
	}
	if w := get(r, "/runs/not-a-uuid"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status=%d", w.Code)
	}
	if w := get(newRouter(brokenStore{}), "/runs"); w.Code != http.StatusInternalServerError {
		t.Fatalf("broken store: status=%d", w.Code)
	}
}

// ---------- stats ----------

func TestStats(t *testing.T) {
	store := newManifest(t)
	seed(t, store)
	r := newRouter(store)

	resp := decode[StatsResponse](t, get(r, "/stats"))
	if resp.Files != 3 || resp.Bytes != 300 {
		t.Fatalf("totals = %d files / %d bytes", resp.Files, resp.Bytes)
	}
	if resp.Latest != "2025-11-05T11:00:00+00:00" {
		t.Fatalf("latest = %s", resp.Latest)
	}
	if len(resp.Channels) != 2 || resp.Channels[0].ChannelID != "500" {
		t.Fatalf("channels = %+v", resp.Channels)
	}

	empty := decode[map[string]json.RawMessage](t, get(newRouter(newManifest(t)), "/stats"))
	if string(empty["channels"]) != "[]" {
		t.Fatalf("channels = %s; want []", empty["channels"])
	}

	w := get(newRouter(brokenStore{}), "/stats")
	if resp := decode[ErrorResponse](t, w); w.Code != http.StatusInternalServerError || resp.Code != ErrCodeStatsFailed {
		t.Fatalf("broken store: %d %+v", w.Code, resp)
	}
}
