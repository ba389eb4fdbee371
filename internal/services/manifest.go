// Package services – ManifestStore
//
// ManifestStore is the single source of truth for "already downloaded". It
// wraps the repo package with the operations the ingestion driver needs
// (Initialize, Has, Insert) plus the read-side queries used by the browser
// API and the stats command, and the run audit trail.
//
// Every Insert is its own committed statement. A crash therefore leaves the
// manifest describing exactly the files that were completely written.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-discord-media/internal/domain"
	"github.com/tbourn/go-discord-media/internal/repo"
)

// ManifestStore provides manifest and run persistence on top of a GORM handle.
type ManifestStore struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewManifestStore constructs a ManifestStore.
func NewManifestStore(db *gorm.DB) *ManifestStore {
	return &ManifestStore{DB: db}
}

// Initialize creates the backing tables if absent. Safe to call every run.
func (s *ManifestStore) Initialize(ctx context.Context) error {
	return repo.AutoMigrate(s.DB.WithContext(ctx))
}

// Has reports whether attachmentID has a manifest record.
func (s *ManifestStore) Has(ctx context.Context, attachmentID string) (bool, error) {
	return repo.HasDownload(ctx, s.DB, attachmentID)
}

// Insert records rec. A second insert of the same attachment id is a no-op
// that reports inserted=false and keeps the original row.
func (s *ManifestStore) Insert(ctx context.Context, rec *domain.DownloadRecord) (inserted bool, err error) {
	return repo.InsertDownload(ctx, s.DB, rec)
}

// Get returns the record for attachmentID or ErrDownloadNotFound.
func (s *ManifestStore) Get(ctx context.Context, attachmentID string) (*domain.DownloadRecord, error) {
	rec, err := repo.GetDownload(ctx, s.DB, attachmentID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrDownloadNotFound
	}
	return rec, err
}

// ListPage returns a page of records and the total matching count.
// It applies defaults for invalid page/pageSize.
func (s *ManifestStore) ListPage(ctx context.Context, f repo.DownloadFilter, page, pageSize int) ([]domain.DownloadRecord, int64, error) {
	_, pageSize, offset := normalizePage(page, pageSize)

	total, err := repo.CountDownloads(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.DownloadRecord{}, 0, nil
	}
	items, err := repo.ListDownloadsPage(ctx, s.DB, f, offset, pageSize)
	return items, total, err
}

// Stats returns the count and latest message time of records matching f.
func (s *ManifestStore) Stats(ctx context.Context, f repo.DownloadFilter) (int64, string, error) {
	return repo.DownloadsStats(ctx, s.DB, f)
}

// ChannelTotals aggregates the manifest per channel.
func (s *ManifestStore) ChannelTotals(ctx context.Context) ([]repo.ChannelTotal, error) {
	return repo.ChannelTotals(ctx, s.DB)
}

// BeginRun persists the audit row of a starting run.
func (s *ManifestStore) BeginRun(ctx context.Context, run *domain.Run) error {
	return repo.CreateRun(ctx, s.DB, run)
}

// FinishRun persists the final state of run.
func (s *ManifestStore) FinishRun(ctx context.Context, run *domain.Run) error {
	return repo.FinishRun(ctx, s.DB, run)
}

// GetRun returns a run by id or ErrRunNotFound.
func (s *ManifestStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	run, err := repo.GetRun(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRunNotFound
	}
	return run, err
}

// ListRuns returns a page of runs (most recent first) and the total count.
func (s *ManifestStore) ListRuns(ctx context.Context, page, pageSize int) ([]domain.Run, int64, error) {
	_, pageSize, offset := normalizePage(page, pageSize)

	total, err := repo.CountRuns(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Run{}, 0, nil
	}
	items, err := repo.ListRunsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// normalizePage applies the default page (1) and page size (20).
func normalizePage(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return page, pageSize, (page - 1) * pageSize
}
