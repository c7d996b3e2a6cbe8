package domain

import "time"

// CachedLyrics is a lyrics cache entry keyed by content hash.
type CachedLyrics struct {
	ContentHash  string    `json:"content_hash"`
	Lyrics       string    `json:"lyrics"`
	HitCount     int       `json:"hit_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// CachedSong is a song cache entry keyed by SongCacheKey.
type CachedSong struct {
	CacheKey     string          `json:"cache_key"`
	ContentHash  string          `json:"content_hash"`
	Style        MusicStyle      `json:"style"`
	TaskID       string          `json:"task_id"`
	UserID       string          `json:"user_id"`
	Variations   []SongVariation `json:"variations"`
	HitCount     int             `json:"hit_count"`
	CreatedAt    time.Time       `json:"created_at"`
	LastAccessed time.Time       `json:"last_accessed"`
}
