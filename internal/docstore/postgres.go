package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresStore keeps documents as jsonb rows in the documents table
// created by migrations/000001_create_documents.
type PostgresStore struct {
	db *sqlx.DB
}

type documentRow struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

// NewPostgresStore wraps an open connection.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks database connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresStore) Get(ctx context.Context, ref Ref) (Document, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2`

	var raw []byte
	scanErr := p.db.GetContext(ctx, &raw, query, ref.Collection, ref.ID)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if scanErr != nil {
		return nil, fmt.Errorf("get %s: %w", ref, scanErr)
	}
	return unmarshalDocument(raw)
}

func (p *PostgresStore) Set(ctx context.Context, ref Ref, doc Document) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	raw, marshalErr := json.Marshal(doc)
	if marshalErr != nil {
		return fmt.Errorf("marshal %s: %w", ref, marshalErr)
	}

	query := `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (collection, id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = NOW()
	`
	if _, execErr := p.db.ExecContext(ctx, query, ref.Collection, ref.ID, raw); execErr != nil {
		return fmt.Errorf("set %s: %w", ref, execErr)
	}
	return nil
}

func (p *PostgresStore) Update(ctx context.Context, ref Ref, fields Document) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	patch, encodeErr := Encode(fields)
	if encodeErr != nil {
		return encodeErr
	}
	raw, marshalErr := json.Marshal(patch)
	if marshalErr != nil {
		return fmt.Errorf("marshal %s: %w", ref, marshalErr)
	}

	query := `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND id = $2
	`
	result, execErr := p.db.ExecContext(ctx, query, ref.Collection, ref.ID, raw)
	if execErr != nil {
		return fmt.Errorf("update %s: %w", ref, execErr)
	}
	affected, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("update %s: %w", ref, rowsErr)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Query(ctx context.Context, q Query) ([]Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	query, args := buildSelect(q)

	var rows []documentRow
	if selectErr := p.db.SelectContext(ctx, &rows, query, args...); selectErr != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, selectErr)
	}

	snaps := make([]Snapshot, 0, len(rows))
	for _, row := range rows {
		doc, decodeErr := unmarshalDocument(row.Data)
		if decodeErr != nil {
			return nil, decodeErr
		}
		snaps = append(snaps, Snapshot{Ref: Ref{Collection: q.Collection, ID: row.ID}, Data: doc})
	}
	return snaps, nil
}

func (p *PostgresStore) BatchDelete(ctx context.Context, refs []Ref) error {
	if len(refs) == 0 {
		return nil
	}
	byCollection := make(map[string][]string)
	for _, ref := range refs {
		byCollection[ref.Collection] = append(byCollection[ref.Collection], ref.ID)
	}

	tx, beginErr := p.db.BeginTxx(ctx, nil)
	if beginErr != nil {
		return fmt.Errorf("begin batch delete: %w", beginErr)
	}
	for collection, ids := range byCollection {
		_, execErr := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = $1 AND id = ANY($2)`,
			collection, pq.Array(ids))
		if execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("batch delete %s: %w", collection, execErr)
		}
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit batch delete: %w", commitErr)
	}
	return nil
}

// buildSelect renders q as SQL. Field names are interpolated only after
// Query.Validate has restricted them to identifier characters.
func buildSelect(q Query) (string, []any) {
	var b strings.Builder
	args := []any{q.Collection}
	b.WriteString("SELECT id, data FROM documents WHERE collection = $1")

	for _, f := range q.Filters {
		expr, arg := filterExpr(f)
		args = append(args, arg)
		fmt.Fprintf(&b, " AND %s %s $%d", expr, validOps[f.Op], len(args))
	}

	if q.OrderBy != nil {
		fmt.Fprintf(&b, " ORDER BY %s", orderExpr(*q.OrderBy))
		if q.OrderBy.Descending {
			b.WriteString(" DESC")
		}
	} else {
		b.WriteString(" ORDER BY id")
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}

func filterExpr(f Filter) (string, any) {
	text := fmt.Sprintf("(data->>'%s')", f.Field)
	switch v := f.Value.(type) {
	case time.Time:
		return text + "::timestamptz", v.UTC()
	case bool:
		return text + "::boolean", v
	case string:
		return text, v
	}
	if n, ok := toFloat(f.Value); ok {
		return text + "::numeric", n
	}
	return text, fmt.Sprint(f.Value)
}

func orderExpr(o Order) string {
	text := fmt.Sprintf("(data->>'%s')", o.Field)
	switch o.Kind {
	case KindTime:
		return text + "::timestamptz"
	case KindNumber:
		return text + "::numeric"
	default:
		return text
	}
}
