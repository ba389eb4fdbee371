// Package domain defines the persistence models of the media archiver: the
// download manifest and the audit trail of runs. These types are mapped with
// GORM and shared across the repository, service and HTTP layers.
package domain

import "time"

// Run statuses.
const (
	RunRunning     = "running"
	RunCompleted   = "completed"
	RunInterrupted = "interrupted"
)

// DownloadRecord is one manifest row: an attachment that has been saved to
// the download directory (or found there and reconciled). AttachmentID is the
// identity; a record is written once and never updated.
//
// Platform ids are snowflakes that can exceed 2^53, so every id is stored as
// TEXT. CreatedAtUTC is the owning message's creation time in ISO-8601 UTC,
// not the download time.
//
// Fields after CreatedAtUTC are supplemental audit columns:
//   - AuthorID, ContentType, SizeBytes: attachment metadata at record time.
//   - SHA256: content checksum; empty for rows recorded by the repair path.
//   - Repaired: the file was already on disk when the row was written.
//   - RunID: the run that wrote the row.
//   - RecordedAt: wall-clock time of the insert.
type DownloadRecord struct {
	AttachmentID string `json:"attachment_id"  gorm:"column:attachment_id;type:TEXT;primaryKey"`
	MessageID    string `json:"message_id"     gorm:"column:message_id;type:TEXT;not null"`
	ChannelID    string `json:"channel_id"     gorm:"column:channel_id;type:TEXT;not null;index:idx_downloads_channel"`
	GuildID      string `json:"guild_id"       gorm:"column:guild_id;type:TEXT;not null"`
	URL          string `json:"url"            gorm:"column:url;type:TEXT;not null"`
	Filename     string `json:"filename"       gorm:"column:filename;type:TEXT;not null"`
	CreatedAtUTC string `json:"created_at_utc" gorm:"column:created_at_utc;type:TEXT;not null;index:idx_downloads_created"`

	AuthorID    string    `json:"author_id,omitempty"    gorm:"column:author_id;type:TEXT"`
	ContentType string    `json:"content_type,omitempty" gorm:"column:content_type;type:TEXT"`
	SizeBytes   int64     `json:"size_bytes"             gorm:"column:size_bytes;not null;default:0"`
	SHA256      string    `json:"sha256,omitempty"       gorm:"column:sha256;type:TEXT"`
	Repaired    bool      `json:"repaired"               gorm:"column:repaired;not null;default:false"`
	RunID       string    `json:"run_id,omitempty"       gorm:"column:run_id;type:TEXT;index"`
	RecordedAt  time.Time `json:"recorded_at"            gorm:"column:recorded_at;autoCreateTime"`
}

// TableName returns the database table name for DownloadRecord.
func (DownloadRecord) TableName() string { return "downloads" }

// Run is the audit row of one fetch invocation. It is created when the
// driver starts and finalized with the counters when it stops, including on
// interrupt. Runs never influence the "already downloaded" decision.
type Run struct {
	ID          string     `json:"id"           gorm:"type:char(36);primaryKey"`
	GuildID     string     `json:"guild_id"     gorm:"type:TEXT;not null"`
	WindowStart time.Time  `json:"window_start" gorm:"not null"`
	WindowEnd   time.Time  `json:"window_end"   gorm:"not null"`
	DryRun      bool       `json:"dry_run"      gorm:"not null;default:false"`
	Status      string     `json:"status"       gorm:"type:varchar(16);not null;default:'running';check:status IN ('running','completed','interrupted')"`
	StartedAt   time.Time  `json:"started_at"   gorm:"not null;index"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`

	MessagesScanned int64 `json:"messages_scanned" gorm:"not null;default:0"`
	FilesDownloaded int64 `json:"files_downloaded" gorm:"not null;default:0"`
	FilesSkipped    int64 `json:"files_skipped"    gorm:"not null;default:0"`
	FilesRepaired   int64 `json:"files_repaired"   gorm:"not null;default:0"`
	FilesFailed     int64 `json:"files_failed"     gorm:"not null;default:0"`
	ChannelsScanned int64 `json:"channels_scanned" gorm:"not null;default:0"`
	ChannelsFailed  int64 `json:"channels_failed"  gorm:"not null;default:0"`
}

// TableName returns the database table name for Run.
func (Run) TableName() string { return "runs" }
