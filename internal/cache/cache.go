// Package cache stores generated lyrics by content hash and completed songs
// by content hash and style. Entries are never evicted.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
	"github.com/waghostel/LearningSong-sub001/internal/docstore"
	"github.com/waghostel/LearningSong-sub001/internal/domain"
)

const (
	CollectionLyrics = "lyrics_cache"
	CollectionSongs  = "song_cache"

	KindLyrics = "lyrics"
	KindSong   = "song"
)

// Recorder counts hits and misses per cache kind.
type Recorder interface {
	ObserveCache(kind string, hit bool)
}

// Coordinator reads and writes both caches.
type Coordinator struct {
	store    docstore.Store
	log      logger.Logger
	recorder Recorder
	now      func() time.Time
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithRecorder reports hits and misses to r.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a Coordinator over store.
func New(store docstore.Store, log logger.Logger, opts ...Option) *Coordinator {
	if log == nil {
		log = logger.NewNop()
	}
	c := &Coordinator{store: store, log: log, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetLyrics looks up lyrics for a content hash. On a hit the access
// statistics are bumped without failing the read.
func (c *Coordinator) GetLyrics(ctx context.Context, contentHash string) (*domain.CachedLyrics, bool, error) {
	ref := docstore.Ref{Collection: CollectionLyrics, ID: contentHash}
	var entry domain.CachedLyrics
	found, err := c.load(ctx, ref, &entry)
	c.observe(KindLyrics, found)
	if err != nil || !found {
		return nil, false, err
	}
	entry.HitCount, entry.LastAccessed = c.touch(ctx, ref, entry.HitCount)
	return &entry, true, nil
}

// StoreLyrics writes a fresh entry with zero hits.
func (c *Coordinator) StoreLyrics(ctx context.Context, contentHash, lyrics string) error {
	now := c.now().UTC()
	return c.save(ctx, docstore.Ref{Collection: CollectionLyrics, ID: contentHash}, domain.CachedLyrics{
		ContentHash:  contentHash,
		Lyrics:       lyrics,
		CreatedAt:    now,
		LastAccessed: now,
	})
}

// GetSong looks up a completed song by content hash and style.
func (c *Coordinator) GetSong(ctx context.Context, contentHash string, style domain.MusicStyle) (*domain.CachedSong, bool, error) {
	ref := docstore.Ref{Collection: CollectionSongs, ID: domain.SongCacheKey(contentHash, style)}
	var entry domain.CachedSong
	found, err := c.load(ctx, ref, &entry)
	c.observe(KindSong, found)
	if err != nil || !found {
		return nil, false, err
	}
	entry.HitCount, entry.LastAccessed = c.touch(ctx, ref, entry.HitCount)
	return &entry, true, nil
}

// StoreSong records a completed task's variations.
func (c *Coordinator) StoreSong(ctx context.Context, task *domain.Task) error {
	now := c.now().UTC()
	key := domain.SongCacheKey(task.ContentHash, task.Style)
	return c.save(ctx, docstore.Ref{Collection: CollectionSongs, ID: key}, domain.CachedSong{
		CacheKey:     key,
		ContentHash:  task.ContentHash,
		Style:        task.Style,
		TaskID:       task.UpstreamTaskID(),
		UserID:       task.UserID,
		Variations:   task.Variations,
		CreatedAt:    now,
		LastAccessed: now,
	})
}

func (c *Coordinator) load(ctx context.Context, ref docstore.Ref, into any) (bool, error) {
	doc, err := c.store.Get(ctx, ref)
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cache %s: %w", ref, err)
	}
	if err := docstore.Decode(doc, into); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Coordinator) save(ctx context.Context, ref docstore.Ref, entry any) error {
	doc, err := docstore.Encode(entry)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, ref, doc); err != nil {
		return fmt.Errorf("write cache %s: %w", ref, err)
	}
	return nil
}

// touch increments hit_count and refreshes last_accessed. Concurrent hits may
// lose increments; a failed write is only logged.
func (c *Coordinator) touch(ctx context.Context, ref docstore.Ref, hits int) (int, time.Time) {
	now := c.now().UTC()
	hits++
	if err := c.store.Update(ctx, ref, docstore.Document{
		"hit_count":     hits,
		"last_accessed": now,
	}); err != nil {
		c.log.Warn("Failed to update cache statistics",
			logger.String("ref", ref.String()),
			logger.Error(err),
		)
	}
	return hits, now
}

func (c *Coordinator) observe(kind string, hit bool) {
	if c.recorder != nil {
		c.recorder.ObserveCache(kind, hit)
	}
}
