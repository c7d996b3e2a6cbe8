// Package domain contains the core models of the LearningSong service:
// generation tasks, song variations, alignment data, quotas, share links and
// cache entries, plus the error kinds shared across components.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash is the SHA-256 hex digest of the trimmed, lower-cased content.
// Inputs differing only in case or surrounding whitespace share a hash.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(content))))
	return hex.EncodeToString(sum[:])
}

// SongCacheKey keys the song cache by content and style.
func SongCacheKey(contentHash string, style MusicStyle) string {
	return contentHash + "_" + string(style)
}
