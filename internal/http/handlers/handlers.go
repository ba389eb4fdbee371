package handlers

import (
	"context"

	"github.com/tbourn/go-discord-media/internal/domain"
	"github.com/tbourn/go-discord-media/internal/repo"
)

// ManifestReader is the read side of the manifest consumed by the browser.
// *services.ManifestStore satisfies it.
type ManifestReader interface {
	Get(ctx context.Context, attachmentID string) (*domain.DownloadRecord, error)
	ListPage(ctx context.Context, f repo.DownloadFilter, page, pageSize int) ([]domain.DownloadRecord, int64, error)
	Stats(ctx context.Context, f repo.DownloadFilter) (count int64, latest string, err error)
	ChannelTotals(ctx context.Context) ([]repo.ChannelTotal, error)
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	ListRuns(ctx context.Context, page, pageSize int) ([]domain.Run, int64, error)
}

// Handlers groups the browser endpoints.
type Handlers struct {
	store ManifestReader
}

// New returns Handlers reading from store.
func New(store ManifestReader) *Handlers {
	return &Handlers{store: store}
}

// Pagination is the paging block of list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}
