package utils

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DocumentID is the stable identity of a document: hex md5 of its filename.
// Re-ingesting the same filename therefore overwrites instead of duplicating.
func DocumentID(filename string) string {
	sum := md5.Sum([]byte(filename))
	return hex.EncodeToString(sum[:])
}

// ContentKey hashes the parts into a fixed-length cache key
func ContentKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
