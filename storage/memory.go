package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process memory. Commit applies a batch
// under one lock, so readers never see half a batch.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]map[string]Fields
	order map[string][]string

	// FailCommit, when set, makes every Commit return it without writing.
	FailCommit error
	// FailFind, when set, makes every FindOne return it.
	FailFind error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]map[string]Fields),
		order: make(map[string][]string),
	}
}

func (m *MemoryStore) FindOne(_ context.Context, collection, field string, value any) (*Ref, error) {
	if err := checkField(collection, field); err != nil {
		return nil, err
	}
	if m.FailFind != nil {
		return nil, m.FailFind
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range m.order[collection] {
		doc := m.docs[collection][id]
		if doc[field] == value {
			return &Ref{Collection: collection, ID: id}, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) NewRef(collection string) Ref {
	return Ref{Collection: collection, ID: uuid.NewString()}
}

func (m *MemoryStore) Batch() Batch {
	return &memoryBatch{store: m}
}

func (m *MemoryStore) Count(_ context.Context, collection string) (int, error) {
	if _, ok := collectionFields[collection]; !ok {
		return 0, ErrUnknownCollection
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[collection]), nil
}

// Get returns a copy of one document, for inspection in tests and tools.
func (m *MemoryStore) Get(ref Ref) (Fields, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[ref.Collection][ref.ID]
	if !ok {
		return nil, false
	}
	out := make(Fields, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, true
}

// All returns copies of every document of collection in insertion order.
func (m *MemoryStore) All(collection string) []Fields {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Fields, 0, len(m.order[collection]))
	for _, id := range m.order[collection] {
		doc := make(Fields, len(m.docs[collection][id])+1)
		for k, v := range m.docs[collection][id] {
			doc[k] = v
		}
		doc["id"] = id
		out = append(out, doc)
	}
	return out
}

func (m *MemoryStore) Close() error { return nil }

type memoryBatch struct {
	store *MemoryStore
	ops   []op
}

func (b *memoryBatch) Set(ref Ref, fields Fields) {
	b.ops = append(b.ops, op{kind: opSet, ref: ref, fields: fields})
}

func (b *memoryBatch) Update(ref Ref, fields Fields) {
	b.ops = append(b.ops, op{kind: opUpdate, ref: ref, fields: fields})
}

func (b *memoryBatch) Len() int { return len(b.ops) }

func (b *memoryBatch) Commit(_ context.Context) error {
	m := b.store
	if m.FailCommit != nil {
		return fmt.Errorf("memory: commit: %w", m.FailCommit)
	}

	for _, o := range b.ops {
		if err := checkFields(o.ref.Collection, o.fields); err != nil {
			return fmt.Errorf("memory: commit %s/%s: %w", o.ref.Collection, o.ref.ID, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate updates against the state as it will be after earlier sets.
	pending := make(map[Ref]bool)
	for _, o := range b.ops {
		switch o.kind {
		case opSet:
			pending[o.ref] = true
		case opUpdate:
			if _, ok := m.docs[o.ref.Collection][o.ref.ID]; !ok && !pending[o.ref] {
				return fmt.Errorf("memory: update %s/%s: document not found", o.ref.Collection, o.ref.ID)
			}
		}
	}

	for _, o := range b.ops {
		coll := m.docs[o.ref.Collection]
		if coll == nil {
			coll = make(map[string]Fields)
			m.docs[o.ref.Collection] = coll
		}
		switch o.kind {
		case opSet:
			if _, exists := coll[o.ref.ID]; !exists {
				m.order[o.ref.Collection] = append(m.order[o.ref.Collection], o.ref.ID)
			}
			doc := make(Fields, len(o.fields))
			for k, v := range o.fields {
				doc[k] = v
			}
			coll[o.ref.ID] = doc
		case opUpdate:
			for k, v := range o.fields {
				coll[o.ref.ID][k] = v
			}
		}
	}
	return nil
}
