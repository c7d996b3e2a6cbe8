package docstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waghostel/LearningSong-sub001/internal/docstore"
)

type record struct {
	Owner     string    `json:"owner"`
	Status    string    `json:"status"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

func backends(t *testing.T) map[string]docstore.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]docstore.Store{
		"memory": docstore.NewMemoryStore(),
		"redis":  docstore.NewRedisStore(client, "test"),
	}
}

func seed(t *testing.T, store docstore.Store, base time.Time) {
	t.Helper()
	records := map[string]record{
		"a": {Owner: "alice", Status: "queued", Score: 1, CreatedAt: base},
		"b": {Owner: "alice", Status: "completed", Score: 5, CreatedAt: base.Add(2 * time.Hour)},
		"c": {Owner: "bob", Status: "queued", Score: 3, CreatedAt: base.Add(time.Hour)},
	}
	for id, rec := range records {
		doc, err := docstore.Encode(rec)
		require.NoError(t, err)
		require.NoError(t, store.Set(context.Background(), docstore.Ref{Collection: "songs", ID: id}, doc))
	}
}

func TestStore_GetSetUpdate(t *testing.T) {
	t.Parallel()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ref := docstore.Ref{Collection: "songs", ID: "t1"}

			_, err := store.Get(ctx, ref)
			require.ErrorIs(t, err, docstore.ErrNotFound)
			require.ErrorIs(t, store.Update(ctx, ref, docstore.Document{"status": "failed"}), docstore.ErrNotFound)

			require.NoError(t, store.Set(ctx, ref, docstore.Document{"status": "queued", "progress": 0}))
			require.NoError(t, store.Update(ctx, ref, docstore.Document{"progress": 50}))

			doc, err := store.Get(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, "queued", doc["status"])
			assert.InDelta(t, 50.0, doc["progress"], 0)

			var rec struct {
				Status   string `json:"status"`
				Progress int    `json:"progress"`
			}
			require.NoError(t, docstore.Decode(doc, &rec))
			assert.Equal(t, 50, rec.Progress)
		})
	}
}

func TestStore_Query(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, store, base)

			snaps, err := store.Query(ctx, docstore.Query{
				Collection: "songs",
				Filters:    []docstore.Filter{{Field: "owner", Op: docstore.OpEq, Value: "alice"}},
				OrderBy:    &docstore.Order{Field: "created_at", Descending: true, Kind: docstore.KindTime},
			})
			require.NoError(t, err)
			require.Len(t, snaps, 2)
			assert.Equal(t, "b", snaps[0].Ref.ID)
			assert.Equal(t, "a", snaps[1].Ref.ID)

			snaps, err = store.Query(ctx, docstore.Query{
				Collection: "songs",
				Filters:    []docstore.Filter{{Field: "created_at", Op: docstore.OpLt, Value: base.Add(90 * time.Minute)}},
				OrderBy:    &docstore.Order{Field: "score", Kind: docstore.KindNumber},
				Limit:      1,
			})
			require.NoError(t, err)
			require.Len(t, snaps, 1)
			assert.Equal(t, "a", snaps[0].Ref.ID)

			snaps, err = store.Query(ctx, docstore.Query{
				Collection: "songs",
				Filters:    []docstore.Filter{{Field: "score", Op: docstore.OpGte, Value: 3}},
			})
			require.NoError(t, err)
			assert.Len(t, snaps, 2)
		})
	}
}

func TestStore_BatchDelete(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, store, base)

			require.NoError(t, store.BatchDelete(ctx, []docstore.Ref{
				{Collection: "songs", ID: "a"},
				{Collection: "songs", ID: "c"},
				{Collection: "songs", ID: "missing"},
			}))

			snaps, err := store.Query(ctx, docstore.Query{Collection: "songs"})
			require.NoError(t, err)
			require.Len(t, snaps, 1)
			assert.Equal(t, "b", snaps[0].Ref.ID)
		})
	}
}

func TestQuery_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		query   docstore.Query
		wantErr bool
	}{
		{"ok", docstore.Query{Collection: "songs", Filters: []docstore.Filter{{Field: "user_id", Op: docstore.OpEq, Value: "x"}}}, false},
		{"missing collection", docstore.Query{}, true},
		{"injection field", docstore.Query{Collection: "songs", Filters: []docstore.Filter{{Field: "a'; drop", Op: docstore.OpEq}}}, true},
		{"bad op", docstore.Query{Collection: "songs", Filters: []docstore.Filter{{Field: "a", Op: "~"}}}, true},
		{"bad order", docstore.Query{Collection: "songs", OrderBy: &docstore.Order{Field: "A-B"}}, true},
		{"negative limit", docstore.Query{Collection: "songs", Limit: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.query.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
