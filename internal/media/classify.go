// Package media holds the pure helpers of the ingestion pipeline: deciding
// whether an attachment is worth keeping and deriving the stable filename it
// is stored under.
package media

import (
	"path/filepath"
	"strings"
)

// Kinds reported by Kind.
const (
	KindImage = "image"
	KindVideo = "video"
)

var imageExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {},
	".webp": {}, ".bmp": {}, ".tiff": {}, ".heic": {},
}

var videoExts = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".m4v": {}, ".webm": {}, ".mkv": {}, ".avi": {},
}

// IsMedia reports whether an attachment is an image or a video. The declared
// content type wins when it names one; otherwise the filename extension is
// checked against a fixed allow-list.
func IsMedia(contentType, filename string) bool {
	return Kind(contentType, filename) != ""
}

// Kind returns KindImage, KindVideo or "" for anything else.
func Kind(contentType, filename string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return KindImage
	case strings.HasPrefix(ct, "video/"):
		return KindVideo
	}

	ext := Ext(filename)
	if _, ok := imageExts[ext]; ok {
		return KindImage
	}
	if _, ok := videoExts[ext]; ok {
		return KindVideo
	}
	return ""
}

// Ext returns the lower-cased suffix of name including the dot, or "".
// Dot-files such as ".env" have no suffix.
func Ext(name string) string {
	base := filepath.Base(name)
	i := strings.LastIndex(base, ".")
	if i <= 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i:])
}
