package syncstore

import (
	"sync"

	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

// Snapshot is the full, ordered result of a query at one instant.
type Snapshot struct {
	Docs []docstore.Document
	// Pending holds the ids of documents with writes not yet delivered.
	Pending   map[string]bool
	FromCache bool
}

func (s Snapshot) HasPendingWrites() bool { return len(s.Pending) > 0 }

// Next returns the cursor that continues after the last document, or nil
// when the snapshot is empty.
func (s Snapshot) Next(orderBy string) *docstore.Cursor {
	if len(s.Docs) == 0 {
		return nil
	}
	c := docstore.CursorOf(s.Docs[len(s.Docs)-1], orderBy)
	return &c
}

// Subscription is a live query. Updates delivers the latest snapshot; a slow
// reader skips intermediate ones. The channel is closed by Close, by
// Store.CloseAccount or by Store.Close.
type Subscription struct {
	store *Store
	q     Query
	ch    chan Snapshot
	once  sync.Once

	// guarded by store.mu
	fromCache bool
	closed    bool
}

func (s *Subscription) Updates() <-chan Snapshot { return s.ch }

func (s *Subscription) Query() Query { return s.q }

func (s *Subscription) Close() {
	s.once.Do(func() {
		st := s.store
		st.mu.Lock()
		defer st.mu.Unlock()
		if s.closed {
			return
		}
		if set := st.subs[s.q.Parent]; set != nil {
			delete(set, s)
			if len(set) == 0 {
				delete(st.subs, s.q.Parent)
			}
		}
		s.closeLocked()
	})
}

func (s *Subscription) closeLocked() {
	s.closed = true
	close(s.ch)
}

// push replaces any unread snapshot with snap. Callers hold store.mu, so
// there is a single sender at a time.
func (s *Subscription) push(snap Snapshot) {
	if s.closed {
		return
	}
	select {
	case s.ch <- snap:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	default:
	}
}
