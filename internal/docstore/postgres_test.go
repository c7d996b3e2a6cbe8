//nolint:testpackage // Testing query rendering requires same package access
package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, setupErr := sqlmock.New()
	require.NoError(t, setupErr)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	ref := Ref{Collection: "songs", ID: "t1"}

	mock.ExpectQuery("SELECT data FROM documents").
		WithArgs("songs", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"status":"queued"}`)))
	mock.ExpectQuery("SELECT data FROM documents").
		WithArgs("songs", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	doc, err := store.Get(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "queued", doc["status"])

	_, err = store.Get(context.Background(), ref)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetUpserts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("(?s)INSERT INTO documents.*ON CONFLICT").
		WithArgs("songs", "t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Set(context.Background(), Ref{Collection: "songs", ID: "t1"}, Document{"status": "queued"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateMissing(t *testing.T) {
	store, mock := newMockStore(t)
	ref := Ref{Collection: "songs", ID: "t1"}

	mock.ExpectExec(`UPDATE documents\s+SET data = data \|\| \$3::jsonb`).
		WithArgs("songs", "t1", []byte(`{"status":"failed"}`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE documents").
		WithArgs("songs", "t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.ErrorIs(t, store.Update(context.Background(), ref, Document{"status": "failed"}), ErrNotFound)
	require.NoError(t, store.Update(context.Background(), ref, Document{"progress": 10}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Query(t *testing.T) {
	store, mock := newMockStore(t)
	cutoff := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, data FROM documents WHERE collection = \$1 ` +
		`AND \(data->>'expires_at'\)::timestamptz < \$2 ` +
		`AND \(data->>'status'\) = \$3 ` +
		`ORDER BY \(data->>'created_at'\)::timestamptz DESC LIMIT \$4`).
		WithArgs("songs", cutoff, "queued", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).
			AddRow("t1", []byte(`{"status":"queued"}`)).
			AddRow("t2", []byte(`{"status":"queued"}`)))

	snaps, err := store.Query(context.Background(), Query{
		Collection: "songs",
		Filters: []Filter{
			{Field: "expires_at", Op: OpLt, Value: cutoff},
			{Field: "status", Op: OpEq, Value: "queued"},
		},
		OrderBy: &Order{Field: "created_at", Descending: true, Kind: KindTime},
		Limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, Ref{Collection: "songs", ID: "t2"}, snaps[1].Ref)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BatchDelete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM documents WHERE collection = \$1 AND id = ANY\(\$2\)`).
		WithArgs("songs", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := store.BatchDelete(context.Background(), []Ref{
		{Collection: "songs", ID: "a"},
		{Collection: "songs", ID: "b"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildSelect_NumericAndBool(t *testing.T) {
	query, args := buildSelect(Query{
		Collection: "user_quotas",
		Filters: []Filter{
			{Field: "songs_generated_today", Op: OpGte, Value: 3},
			{Field: "active", Op: OpNeq, Value: false},
		},
	})

	assert.Equal(t, "SELECT id, data FROM documents WHERE collection = $1"+
		" AND (data->>'songs_generated_today')::numeric >= $2"+
		" AND (data->>'active')::boolean <> $3 ORDER BY id", query)
	assert.Equal(t, []any{"user_quotas", 3.0, false}, args)
}
