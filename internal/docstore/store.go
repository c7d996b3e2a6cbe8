// Package docstore is the document store behind caches, quotas, tasks and
// share links. Documents are JSON objects addressed by collection and id.
// Backends: in-process memory, PostgreSQL jsonb rows and Redis keys.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is returned by Get and Update for absent documents.
var ErrNotFound = errors.New("docstore: document not found")

// Document is a decoded JSON object.
type Document map[string]any

// Ref addresses one document.
type Ref struct {
	Collection string
	ID         string
}

func (r Ref) String() string {
	return r.Collection + "/" + r.ID
}

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "=="
	OpNeq Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

var validOps = map[Op]string{
	OpEq:  "=",
	OpNeq: "<>",
	OpLt:  "<",
	OpLte: "<=",
	OpGt:  ">",
	OpGte: ">=",
}

// Filter compares a top-level field against Value. A time.Time value compares
// chronologically, numeric values numerically, everything else as text.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Kind tells ordering how to interpret a field.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindTime
)

// Order sorts query results by one field.
type Order struct {
	Field      string
	Descending bool
	Kind       Kind
}

// Query selects documents of a collection. Zero Limit means unbounded.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    *Order
	Limit      int
}

// Snapshot is one query result.
type Snapshot struct {
	Ref  Ref
	Data Document
}

// Store is implemented by every backend.
type Store interface {
	Get(ctx context.Context, ref Ref) (Document, error)
	// Set creates or replaces the document.
	Set(ctx context.Context, ref Ref, doc Document) error
	// Update merges top-level fields into an existing document.
	Update(ctx context.Context, ref Ref, fields Document) error
	Query(ctx context.Context, q Query) ([]Snapshot, error)
	BatchDelete(ctx context.Context, refs []Ref) error
	Ping(ctx context.Context) error
}

var fieldPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate checks collection, field names and operators.
func (q Query) Validate() error {
	if q.Collection == "" {
		return errors.New("docstore: query collection is required")
	}
	for _, f := range q.Filters {
		if !fieldPattern.MatchString(f.Field) {
			return fmt.Errorf("docstore: invalid filter field %q", f.Field)
		}
		if _, ok := validOps[f.Op]; !ok {
			return fmt.Errorf("docstore: invalid operator %q", f.Op)
		}
	}
	if q.OrderBy != nil && !fieldPattern.MatchString(q.OrderBy.Field) {
		return fmt.Errorf("docstore: invalid order field %q", q.OrderBy.Field)
	}
	if q.Limit < 0 {
		return errors.New("docstore: negative limit")
	}
	return nil
}

func validateRef(ref Ref) error {
	if ref.Collection == "" || ref.ID == "" {
		return fmt.Errorf("docstore: incomplete ref %q", ref.String())
	}
	return nil
}

// Encode converts a struct into a Document through its JSON form.
func Encode(v any) (Document, error) {
	raw, marshalErr := json.Marshal(v)
	if marshalErr != nil {
		return nil, fmt.Errorf("encode document: %w", marshalErr)
	}
	var doc Document
	if unmarshalErr := json.Unmarshal(raw, &doc); unmarshalErr != nil {
		return nil, fmt.Errorf("encode document: %w", unmarshalErr)
	}
	return doc, nil
}

// Decode fills v from doc.
func Decode(doc Document, v any) error {
	raw, marshalErr := json.Marshal(doc)
	if marshalErr != nil {
		return fmt.Errorf("decode document: %w", marshalErr)
	}
	if unmarshalErr := json.Unmarshal(raw, v); unmarshalErr != nil {
		return fmt.Errorf("decode document: %w", unmarshalErr)
	}
	return nil
}
