// Package repo is the GORM persistence layer behind the download manifest
// and the run audit trail.
package repo

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-discord-media/internal/domain"
)

// manifestPragmas are applied to every pooled connection. FULL sync makes
// each committed insert durable before the next download starts.
var manifestPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(FULL)",
	"busy_timeout(5000)",
}

// manifestDSN appends the connection pragmas to a file path.
func manifestDSN(path string) string {
	q := url.Values{"_pragma": manifestPragmas}
	return path + "?" + q.Encode()
}

// OpenSQLite opens the manifest at path, creating it and its parent
// directory when missing. The pool holds a single connection since one
// fetch writes at a time.
func OpenSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, errors.New("manifest path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("manifest directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(manifestDSN(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	// The driver connects lazily; surface a bad file now rather than on
	// the first insert.
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EnableTracing registers the GORM OpenTelemetry plugin so manifest queries
// show up as child spans of the ingestion spans.
func EnableTracing(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}

// AutoMigrate creates or updates the downloads and runs tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.DownloadRecord{}, &domain.Run{})
}
