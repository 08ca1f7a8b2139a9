package docstore

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Backend. It enforces the same rules as the
// Postgres backend and can be switched offline to exercise retry paths.
type Memory struct {
	mu      sync.Mutex
	docs    map[string]map[string]Document
	version int64
	offline bool
	commits int

	// Reject, when set, is consulted before every commit.
	Reject func(Mutation) error
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]Document)}
}

// SetOnline toggles connectivity; offline calls fail with ErrUnavailable.
func (m *Memory) SetOnline(online bool) {
	m.mu.Lock()
	m.offline = !online
	m.mu.Unlock()
}

// Commits returns the number of successful commits.
func (m *Memory) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

func (m *Memory) Get(ctx context.Context, parent, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reachable(ctx); err != nil {
		return Document{}, err
	}
	d, ok := m.docs[parent][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return copyDoc(d), nil
}

func (m *Memory) Query(ctx context.Context, q Query) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reachable(ctx); err != nil {
		return nil, err
	}
	all := make([]Document, 0, len(m.docs[q.Parent]))
	for _, d := range m.docs[q.Parent] {
		all = append(all, copyDoc(d))
	}
	return Evaluate(all, q), nil
}

func (m *Memory) Commit(ctx context.Context, mu Mutation) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reachable(ctx); err != nil {
		return Document{}, err
	}
	if err := Validate(mu); err != nil {
		return Document{}, err
	}
	if err := Authorize(mu); err != nil {
		return Document{}, err
	}
	if m.Reject != nil {
		if err := m.Reject(mu); err != nil {
			return Document{}, err
		}
	}

	m.version++
	m.commits++
	coll := m.docs[mu.Parent]
	if coll == nil {
		coll = make(map[string]Document)
		m.docs[mu.Parent] = coll
	}

	switch mu.Op {
	case OpDelete:
		delete(coll, mu.ID)
		return Document{Parent: mu.Parent, ID: mu.ID, Version: m.version}, nil
	case OpMerge:
		d := Document{Parent: mu.Parent, ID: mu.ID, Version: m.version}
		d.Fields = Merge(coll[mu.ID].Fields, mu.Fields)
		coll[mu.ID] = d
		return copyDoc(d), nil
	default:
		d := Document{Parent: mu.Parent, ID: mu.ID, Fields: Clone(mu.Fields), Version: m.version}
		coll[mu.ID] = d
		return copyDoc(d), nil
	}
}

func (m *Memory) reachable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.offline {
		return fmt.Errorf("%w: offline", ErrUnavailable)
	}
	return nil
}

func copyDoc(d Document) Document {
	d.Fields = Clone(d.Fields)
	return d
}
