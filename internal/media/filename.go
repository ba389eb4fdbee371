package media

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// hashLen is the number of hex characters kept from the digest.
const hashLen = 16

// DeriveFilename maps an attachment to the name it is stored under:
//
//	hex(sha256("{author}-{attachment}-{created_utc_iso}"))[:16] + ext
//
// The attachment id is part of the input because one message may carry
// several attachments. The result must stay byte-for-byte stable: the
// disk-existence check in the driver depends on it.
func DeriveFilename(authorID string, createdAt time.Time, attachmentID, originalName string) string {
	base := fmt.Sprintf("%s-%s-%s", authorID, attachmentID, ISOTimestamp(createdAt))
	sum := sha256.Sum256([]byte(base))
	return hex.EncodeToString(sum[:])[:hashLen] + Ext(originalName)
}

// ISOTimestamp renders t in UTC as ISO-8601 with an explicit +00:00 offset.
// Fractional seconds appear only when non-zero, always with six digits.
func ISOTimestamp(t time.Time) string {
	t = t.UTC()
	out := t.Format("2006-01-02T15:04:05")
	if us := t.Nanosecond() / 1000; us != 0 {
		out += fmt.Sprintf(".%06d", us)
	}
	return out + "+00:00"
}
