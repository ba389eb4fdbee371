// Package repo implements the persistence layer for the download manifest and
// the run audit trail, backed by GORM. This file provides small aggregate
// queries used for conditional responses (ETag generation) in the HTTP layer
// and for the per-channel totals report.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-discord-media/internal/domain"
)

// ChannelTotal aggregates the manifest rows of one channel.
type ChannelTotal struct {
	ChannelID string `json:"channel_id"`
	Files     int64  `json:"files"`
	Bytes     int64  `json:"bytes"`
	Repaired  int64  `json:"repaired"`
	Latest    string `json:"latest_created_at_utc"`
}

// DownloadsStats returns the number of records matching f and the greatest
// created_at_utc among them ("" when there are none).
func DownloadsStats(ctx context.Context, db *gorm.DB, f DownloadFilter) (count int64, latest string, err error) {
	q := func() *gorm.DB {
		return f.apply(db.WithContext(ctx).Model(&domain.DownloadRecord{}))
	}

	if err = q().Count(&count).Error; err != nil {
		return 0, "", err
	}
	if count == 0 {
		return 0, "", nil
	}

	var row struct {
		CreatedAtUTC string
	}
	if err = q().Select("created_at_utc").Order("created_at_utc DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, "", err
	}
	return count, row.CreatedAtUTC, nil
}

// ChannelTotals groups the manifest by channel, largest channel first.
func ChannelTotals(ctx context.Context, db *gorm.DB) ([]ChannelTotal, error) {
	var out []ChannelTotal
	err := db.WithContext(ctx).
		Model(&domain.DownloadRecord{}).
		Select(
			"channel_id AS channel_id, " +
				"COUNT(*) AS files, " +
				"COALESCE(SUM(size_bytes), 0) AS bytes, " +
				"COALESCE(SUM(CASE WHEN repaired THEN 1 ELSE 0 END), 0) AS repaired, " +
				"MAX(created_at_utc) AS latest",
		).
		Group("channel_id").
		Order("files DESC").
		Order("channel_id").
		Scan(&out).Error
	return out, err
}
