// Package repo implements the persistence layer for the download manifest and
// the run audit trail, backed by GORM. This file provides repository
// functions for the DownloadRecord model.
//
// All functions are context-aware and accept a *gorm.DB handle. They follow
// the "thin repository" approach: no business logic, only persistence and
// query composition.
//
// Error semantics:
//   - A missing record is reported as ErrNotFound (gorm.ErrRecordNotFound).
//   - A duplicate insert is NOT an error: InsertDownload reports it through
//     its inserted result and leaves the existing row untouched.
//   - Other DB errors are propagated as-is.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-discord-media/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// DownloadFilter narrows listing queries. Zero values match everything.
type DownloadFilter struct {
	ChannelID string
}

func (f DownloadFilter) apply(q *gorm.DB) *gorm.DB {
	if f.ChannelID != "" {
		q = q.Where("channel_id = ?", f.ChannelID)
	}
	return q
}

// HasDownload reports whether attachmentID is already in the manifest.
func HasDownload(ctx context.Context, db *gorm.DB, attachmentID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.DownloadRecord{}).
		Where("attachment_id = ?", attachmentID).
		Count(&n).Error
	return n > 0, err
}

// InsertDownload records rec unless its attachment id is already present.
// inserted is false when the row existed; the stored fields are then those of
// the first insert.
func InsertDownload(ctx context.Context, db *gorm.DB, rec *domain.DownloadRecord) (inserted bool, err error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attachment_id"}},
			DoNothing: true,
		}).
		Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetDownload fetches a single record by attachment id, or ErrNotFound.
func GetDownload(ctx context.Context, db *gorm.DB, attachmentID string) (*domain.DownloadRecord, error) {
	var out []domain.DownloadRecord
	err := db.WithContext(ctx).
		Where("attachment_id = ?", attachmentID).
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// CountDownloads returns the number of records matching f.
func CountDownloads(ctx context.Context, db *gorm.DB, f DownloadFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.DownloadRecord{})).
		Count(&total).Error
	return total, err
}

// ListDownloadsPage returns a page of records matching f, newest message
// first. ISO-8601 UTC strings with a fixed offset sort chronologically.
func ListDownloadsPage(ctx context.Context, db *gorm.DB, f DownloadFilter, offset, limit int) ([]domain.DownloadRecord, error) {
	var out []domain.DownloadRecord
	err := f.apply(db.WithContext(ctx)).
		Order("created_at_utc desc").
		Order("attachment_id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
