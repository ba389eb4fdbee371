// Package services defines the ingestion pipeline and the manifest service.
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Only the errors below ever leave Ingestor.Run; channel- and attachment-level
// failures are handled inside the driver and reported through the Summary.
package services

import "errors"

var (
	// ErrAuthFailed indicates that the message source rejected the
	// credentials or could not be reached during login.
	ErrAuthFailed = errors.New("authentication with the message source failed")

	// ErrGuildUnavailable indicates that the target guild does not exist or
	// the principal is not a member of it.
	ErrGuildUnavailable = errors.New("guild not accessible")

	// ErrDownloadNotFound is returned when a manifest lookup has no record.
	ErrDownloadNotFound = errors.New("download not found")

	// ErrRunNotFound is returned when a run lookup has no record.
	ErrRunNotFound = errors.New("run not found")

	// ErrFilenameCollision is reported for an attachment whose derived name
	// is already taken on disk by a file of a different size (strict repair).
	ErrFilenameCollision = errors.New("possible filename collision")
)
