package domain

import "time"

// ShareLink grants read access to a completed task through an opaque token.
type ShareLink struct {
	ShareToken string    `json:"share_token"`
	SongID     string    `json:"song_id"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// SharedSong is what a share-link reader sees.
type SharedSong struct {
	SongID                string          `json:"song_id"`
	Title                 string          `json:"title,omitempty"`
	Style                 MusicStyle      `json:"style"`
	Lyrics                string          `json:"lyrics"`
	Variations            []SongVariation `json:"variations"`
	PrimaryVariationIndex int             `json:"primary_variation_index"`
	CreatedAt             time.Time       `json:"created_at"`
	ExpiresAt             time.Time       `json:"expires_at"`
	IsOwner               bool            `json:"is_owner"`
}
