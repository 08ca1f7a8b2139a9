package docstore

import (
	"context"
	"sync"
)

// Change announces a committed write to other replicas of the same account.
type Change struct {
	Account string   `json:"account"`
	Doc     Document `json:"doc"`
	Deleted bool     `json:"deleted,omitempty"`
	Origin  string   `json:"origin"`
}

// Feed is the push channel of the store.
type Feed interface {
	Publish(ctx context.Context, c Change) error
	Subscribe(account string, fn func(Change)) (cancel func(), err error)
}

// MemoryFeed delivers changes synchronously to in-process subscribers.
type MemoryFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]func(Change)
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string]map[int]func(Change))}
}

func (f *MemoryFeed) Publish(_ context.Context, c Change) error {
	f.mu.Lock()
	handlers := make([]func(Change), 0, len(f.subs[c.Account]))
	for _, fn := range f.subs[c.Account] {
		handlers = append(handlers, fn)
	}
	f.mu.Unlock()

	for _, fn := range handlers {
		fn(c)
	}
	return nil
}

func (f *MemoryFeed) Subscribe(account string, fn func(Change)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	if f.subs[account] == nil {
		f.subs[account] = make(map[int]func(Change))
	}
	f.subs[account][id] = fn

	return func() {
		f.mu.Lock()
		delete(f.subs[account], id)
		f.mu.Unlock()
	}, nil
}
