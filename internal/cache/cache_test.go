package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waghostel/LearningSong-sub001/internal/cache"
	"github.com/waghostel/LearningSong-sub001/internal/docstore"
	"github.com/waghostel/LearningSong-sub001/internal/domain"
)

type countingRecorder struct {
	hits, misses map[string]int
}

func newRecorder() *countingRecorder {
	return &countingRecorder{hits: map[string]int{}, misses: map[string]int{}}
}

func (r *countingRecorder) ObserveCache(kind string, hit bool) {
	if hit {
		r.hits[kind]++
	} else {
		r.misses[kind]++
	}
}

// failingUpdates wraps a store and rejects every Update.
type failingUpdates struct {
	docstore.Store
}

func (failingUpdates) Update(context.Context, docstore.Ref, docstore.Document) error {
	return errors.New("write unavailable")
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestLyrics_MissThenHit(t *testing.T) {
	t.Parallel()

	store := docstore.NewMemoryStore()
	rec := newRecorder()
	created := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	c := cache.New(store, nil, cache.WithRecorder(rec), cache.WithClock(fixedClock(created)))
	ctx := context.Background()
	hash := domain.ContentHash("gravity")

	_, found, err := c.GetLyrics(ctx, hash)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.StoreLyrics(ctx, hash, "[Chorus] things fall down"))

	later := created.Add(time.Hour)
	c = cache.New(store, nil, cache.WithRecorder(rec), cache.WithClock(fixedClock(later)))
	entry, found, err := c.GetLyrics(ctx, hash)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "[Chorus] things fall down", entry.Lyrics)
	assert.Equal(t, 1, entry.HitCount)
	assert.Equal(t, created, entry.CreatedAt)
	assert.Equal(t, later, entry.LastAccessed)

	entry, _, err = c.GetLyrics(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.HitCount)

	doc, err := store.Get(ctx, docstore.Ref{Collection: cache.CollectionLyrics, ID: hash})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, doc["hit_count"], 0)

	assert.Equal(t, 2, rec.hits[cache.KindLyrics])
	assert.Equal(t, 1, rec.misses[cache.KindLyrics])
}

func TestLyrics_StatisticsUpdateIsBestEffort(t *testing.T) {
	t.Parallel()

	store := docstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, cache.New(store, nil).StoreLyrics(ctx, "h", "lyrics"))

	c := cache.New(failingUpdates{Store: store}, nil)
	entry, found, err := c.GetLyrics(ctx, "h")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "lyrics", entry.Lyrics)
}

func TestSong_KeyedByHashAndStyle(t *testing.T) {
	t.Parallel()

	store := docstore.NewMemoryStore()
	c := cache.New(store, nil)
	ctx := context.Background()
	hash := domain.ContentHash("volcanoes")

	task := &domain.Task{
		TaskID:      "local-1",
		UserID:      "u1",
		ContentHash: hash,
		Style:       domain.StyleRock,
		Status:      domain.TaskStatusCompleted,
		Variations:  []domain.SongVariation{{VariationIndex: 0, AudioID: "a", AudioURL: "https://cdn/a.mp3"}},
	}
	require.NoError(t, c.StoreSong(ctx, task))

	_, found, err := c.GetSong(ctx, hash, domain.StylePop)
	require.NoError(t, err)
	assert.False(t, found)

	entry, found, err := c.GetSong(ctx, hash, domain.StyleRock)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, hash+"_rock", entry.CacheKey)
	assert.Equal(t, "local-1", entry.TaskID)
	assert.Equal(t, task.Variations, entry.Variations)
	assert.Equal(t, 1, entry.HitCount)
}
