// Package utils holds small helpers shared by the HTTP layer.
package utils

import "strconv"

// Page bounds applied to list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AtoiDefault parses s as a decimal int, returning def when s is empty or
// not a valid int.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPage parses raw page and page size query values and bounds them to
// page >= 1 and 1 <= size <= MaxPageSize.
func ClampPage(rawPage, rawSize string) (page, size int) {
	page = max(AtoiDefault(rawPage, 1), 1)
	size = min(max(AtoiDefault(rawSize, DefaultPageSize), 1), MaxPageSize)
	return page, size
}

// TotalPages is the number of pages of size needed for total items.
func TotalPages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// IsSnowflake reports whether s looks like a Discord id: a non-empty string
// of decimal digits that fits in a uint64.
func IsSnowflake(s string) bool {
	if s == "" || len(s) > 20 {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}
