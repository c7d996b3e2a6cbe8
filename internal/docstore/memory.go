package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"
)

// MemoryStore keeps documents in process. Documents are held in encoded
// form so callers never share maps with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, ref Ref) (Document, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	m.mu.RLock()
	raw, ok := m.data[ref.Collection][ref.ID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return unmarshalDocument(raw)
}

func (m *MemoryStore) Set(_ context.Context, ref Ref, doc Document) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ref, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.data[ref.Collection]
	if !ok {
		coll = make(map[string][]byte)
		m.data[ref.Collection] = coll
	}
	coll[ref.ID] = raw
	return nil
}

func (m *MemoryStore) Update(_ context.Context, ref Ref, fields Document) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[ref.Collection][ref.ID]
	if !ok {
		return ErrNotFound
	}
	current, err := unmarshalDocument(raw)
	if err != nil {
		return err
	}
	patch, err := Encode(fields)
	if err != nil {
		return err
	}
	maps.Copy(current, patch)
	merged, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ref, err)
	}
	m.data[ref.Collection][ref.ID] = merged
	return nil
}

func (m *MemoryStore) Query(_ context.Context, q Query) ([]Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	snaps := make([]Snapshot, 0, len(m.data[q.Collection]))
	for id, raw := range m.data[q.Collection] {
		doc, err := unmarshalDocument(raw)
		if err != nil {
			m.mu.RUnlock()
			return nil, err
		}
		snaps = append(snaps, Snapshot{Ref: Ref{Collection: q.Collection, ID: id}, Data: doc})
	}
	m.mu.RUnlock()
	return evaluate(snaps, q), nil
}

func (m *MemoryStore) BatchDelete(_ context.Context, refs []Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ref := range refs {
		delete(m.data[ref.Collection], ref.ID)
	}
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func unmarshalDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}
