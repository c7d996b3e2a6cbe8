// Package service coordinates quota, caches, the lyrics pipeline, the music
// generation client and task storage for each user-facing operation.
package service

import (
	"context"
	"time"

	"github.com/waghostel/LearningSong-sub001/infrastructure/sse"
	"github.com/waghostel/LearningSong-sub001/internal/domain"
	"github.com/waghostel/LearningSong-sub001/internal/lyrics"
	"github.com/waghostel/LearningSong-sub001/internal/musicgen"
	"github.com/waghostel/LearningSong-sub001/internal/quota"
	"github.com/waghostel/LearningSong-sub001/internal/task"
)

// Pipeline generates lyrics from content.
type Pipeline interface {
	Execute(ctx context.Context, content string, searchEnabled bool) (*lyrics.Output, error)
}

// LyricsCache is the content hash keyed lyrics cache.
type LyricsCache interface {
	GetLyrics(ctx context.Context, contentHash string) (*domain.CachedLyrics, bool, error)
	StoreLyrics(ctx context.Context, contentHash, lyrics string) error
}

// SongCache is the content hash and style keyed song cache.
type SongCache interface {
	GetSong(ctx context.Context, contentHash string, style domain.MusicStyle) (*domain.CachedSong, bool, error)
	StoreSong(ctx context.Context, t *domain.Task) error
}

// QuotaGate enforces the daily limit.
type QuotaGate interface {
	Check(ctx context.Context, identity string) error
	Increment(ctx context.Context, identity string) error
	Get(ctx context.Context, identity string) (quota.Status, error)
}

// MusicClient talks to the generation service.
type MusicClient interface {
	CreateSong(ctx context.Context, lyrics string, style domain.MusicStyle, title string) (musicgen.Job, error)
	GetTaskStatus(ctx context.Context, taskID string) (*musicgen.TaskStatus, error)
	GetTimestampedLyrics(ctx context.Context, taskID, audioID string) (*domain.TimestampedLyrics, bool, error)
}

// TaskStore persists tasks, alignments and share links.
type TaskStore interface {
	CreateTask(ctx context.Context, in task.NewTask) (*domain.Task, error)
	SaveTask(ctx context.Context, t *domain.Task) error
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	GetOwnedTask(ctx context.Context, id, userID string) (*domain.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, u task.StatusUpdate) bool
	ExtendTTL(ctx context.Context, id string, hours int) (*domain.Task, error)
	SetPrimaryVariation(ctx context.Context, id string, index int) (*domain.Task, error)
	ListByOwner(ctx context.Context, userID string, limit int) ([]*domain.Task, error)
	GetAlignment(ctx context.Context, taskID, audioID string) (*domain.TimestampedLyrics, bool, error)
	SaveAlignment(ctx context.Context, tl *domain.TimestampedLyrics) error
	CreateShareLink(ctx context.Context, taskID, userID string) (*domain.ShareLink, error)
	GetSharedSong(ctx context.Context, token string) (*domain.SharedSong, error)
	TTL() time.Duration
}

// Publisher delivers task events to subscribers.
type Publisher = sse.Publisher

// QuotaStatus is the caller-visible quota state.
type QuotaStatus = quota.Status
