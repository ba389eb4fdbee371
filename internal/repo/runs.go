package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-discord-media/internal/domain"
)

// CreateRun inserts the audit row for a starting run.
func CreateRun(ctx context.Context, db *gorm.DB, run *domain.Run) error {
	return db.WithContext(ctx).Create(run).Error
}

// FinishRun persists the final status, finish time and counters of run.
// Returns ErrNotFound if the run row does not exist.
func FinishRun(ctx context.Context, db *gorm.DB, run *domain.Run) error {
	res := db.WithContext(ctx).
		Model(&domain.Run{}).
		Where("id = ?", run.ID).
		Select(
			"status", "finished_at",
			"messages_scanned", "files_downloaded", "files_skipped",
			"files_repaired", "files_failed", "channels_scanned", "channels_failed",
		).
		Updates(run)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRun fetches a run by id, or ErrNotFound.
func GetRun(ctx context.Context, db *gorm.DB, id string) (*domain.Run, error) {
	var out []domain.Run
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// CountRuns returns the total number of recorded runs.
func CountRuns(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Run{}).Count(&total).Error
	return total, err
}

// ListRunsPage returns a page of runs, most recent first.
func ListRunsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Run, error) {
	var out []domain.Run
	err := db.WithContext(ctx).
		Order("started_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
