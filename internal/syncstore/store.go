// Package syncstore is the offline-first facade over the document store.
// Writes are journaled locally and become visible to every subscription over
// the same collection before the remote store has seen them; a background
// worker delivers them in issue order and retries through connectivity loss.
package syncstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

// Mode selects how a write to an existing document is applied.
type Mode int

const (
	// Merge deep-merges the patch into the current document.
	Merge Mode = iota
	// Replace overwrites the whole document.
	Replace
)

type Options struct {
	// NodeID names this store instance; it keys the journal and tags feed
	// changes, so it must be unique per running process.
	NodeID  string
	Journal Journal
	Backend docstore.Backend
	// Feed is optional. Without it other instances only see changes on refresh.
	Feed    docstore.Feed
	Logger  *slog.Logger
	Metrics Metrics

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RemoteTimeout  time.Duration
	// ProbeInterval is how often an idle offline store retries its reads.
	ProbeInterval time.Duration

	Now func() time.Time
}

// WriteResult is returned as soon as a write is journaled.
type WriteResult struct {
	ID      string      `json:"id"`
	WriteID string      `json:"write_id"`
	Status  WriteStatus `json:"status"`
}

type Store struct {
	node    string
	journal Journal
	backend docstore.Backend
	feed    docstore.Feed
	log     *slog.Logger
	metrics Metrics
	now     func() time.Time

	initialBackoff time.Duration
	maxBackoff     time.Duration
	remoteTimeout  time.Duration
	probeInterval  time.Duration

	recoverOnce sync.Once
	recoverErr  error
	wake        chan struct{}

	appendMu sync.Mutex

	mu      sync.Mutex
	closed  bool
	online  bool
	stale   bool
	base    map[string]map[string]docstore.Document
	tombs   map[string]int64
	pending []Entry
	subs    map[string]map[*Subscription]struct{}
	feeds   map[string]func()
	waiters map[string][]chan WriteState
}

func New(opts Options) *Store {
	if opts.NodeID == "" {
		opts.NodeID = "local"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 200 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = 5 * time.Second
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Store{
		node:           opts.NodeID,
		journal:        opts.Journal,
		backend:        opts.Backend,
		feed:           opts.Feed,
		log:            opts.Logger.With("component", "syncstore", "node", opts.NodeID),
		metrics:        opts.Metrics,
		now:            opts.Now,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
		remoteTimeout:  opts.RemoteTimeout,
		probeInterval:  opts.ProbeInterval,
		wake:           make(chan struct{}, 1),
		online:         true,
		base:           make(map[string]map[string]docstore.Document),
		tombs:          make(map[string]int64),
		subs:           make(map[string]map[*Subscription]struct{}),
		feeds:          make(map[string]func()),
		waiters:        make(map[string][]chan WriteState),
	}
}

// NewID returns a fresh document id.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ----------------------------------------------------------------------------
// Writes
// ----------------------------------------------------------------------------

// Write creates (id == "") or updates one document. It returns once the write
// is journaled; remote delivery happens in the background.
func (s *Store) Write(ctx context.Context, scope Scope, parent, id string, patch map[string]any, mode Mode) (WriteResult, error) {
	if err := scope.Validate(); err != nil {
		return WriteResult{}, err
	}
	fields, err := docstore.Normalize(patch)
	if err != nil {
		return WriteResult{}, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	op := docstore.OpMerge
	if mode == Replace {
		op = docstore.OpSet
	}
	if id == "" {
		id = NewID()
		op = docstore.OpSet
	}

	return s.enqueue(ctx, Entry{
		Account: scope.AccountID,
		Op:      op,
		Parent:  parent,
		DocID:   id,
		Fields:  fields,
	})
}

// Delete hard-deletes one document. Callers must pass confirmed=true.
func (s *Store) Delete(ctx context.Context, scope Scope, parent, id string, confirmed bool) (WriteResult, error) {
	if !confirmed {
		return WriteResult{}, ErrNotConfirmed
	}
	if err := scope.Validate(); err != nil {
		return WriteResult{}, err
	}
	return s.enqueue(ctx, Entry{
		Account: scope.AccountID,
		Op:      docstore.OpDelete,
		Parent:  parent,
		DocID:   id,
	})
}

func (s *Store) enqueue(ctx context.Context, e Entry) (WriteResult, error) {
	m := e.Mutation()
	if err := docstore.Validate(m); err != nil {
		return WriteResult{}, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	if err := docstore.Authorize(m); err != nil {
		return WriteResult{}, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	e.WriteID = uuid.NewString()
	e.IssuedAt = s.now().UTC()
	e.UserAgent = userAgent(ctx)

	// appendMu keeps pending in journal order while the append itself runs
	// without holding mu.
	s.appendMu.Lock()
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		s.appendMu.Unlock()
		return WriteResult{}, ErrClosed
	}
	if err := s.journal.Append(ctx, &e); err != nil {
		s.appendMu.Unlock()
		err = fmt.Errorf("%w: %w", ErrLocalPersistence, err)
		s.log.Error("journal append failed", "parent", e.Parent, "id", e.DocID, "err", err)
		if e.Parent != docstore.ErrorLogsCollection {
			_ = s.ReportError(ctx, Scope{AccountID: e.Account}, err, "write "+e.Parent)
		}
		return WriteResult{}, err
	}
	s.mu.Lock()
	s.pending = append(s.pending, e)
	if !s.closed {
		s.publishLocked(e.Parent)
	}
	s.metrics.JournalDepth(len(s.pending))
	s.mu.Unlock()
	s.appendMu.Unlock()

	s.signal()
	return WriteResult{ID: e.DocID, WriteID: e.WriteID, Status: StatusPending}, nil
}

func (s *Store) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Status reports the delivery state of a write.
func (s *Store) Status(ctx context.Context, writeID string) (WriteState, error) {
	s.mu.Lock()
	pending := s.isPendingLocked(writeID)
	s.mu.Unlock()
	if pending {
		return WriteState{WriteID: writeID, Status: StatusPending}, nil
	}
	return s.journal.Status(ctx, writeID)
}

// Await blocks until the write is delivered or rejected. A rejected write
// returns ErrWriteRejected carrying the remote reason.
func (s *Store) Await(ctx context.Context, writeID string) (WriteState, error) {
	s.mu.Lock()
	if !s.isPendingLocked(writeID) {
		s.mu.Unlock()
		st, err := s.journal.Status(ctx, writeID)
		if err != nil {
			return WriteState{}, err
		}
		return st, st.err()
	}
	ch := make(chan WriteState, 1)
	s.waiters[writeID] = append(s.waiters[writeID], ch)
	s.mu.Unlock()

	select {
	case st := <-ch:
		if st.Status == StatusPending {
			return st, ErrClosed
		}
		return st, st.err()
	case <-ctx.Done():
		s.mu.Lock()
		s.removeWaiterLocked(writeID, ch)
		s.mu.Unlock()
		return WriteState{WriteID: writeID, Status: StatusPending}, ctx.Err()
	}
}

func (st WriteState) err() error {
	if st.Status == StatusFailed {
		return fmt.Errorf("%w: %s", ErrWriteRejected, st.Reason)
	}
	return nil
}

// Pending returns the number of journaled writes not yet delivered.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Online reports whether the last remote call succeeded.
func (s *Store) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// ----------------------------------------------------------------------------
// Reads
// ----------------------------------------------------------------------------

// Open starts a live subscription. The first snapshot is available on
// Updates() when Open returns; later snapshots follow every local write and
// every remote change over the same collection.
func (s *Store) Open(ctx context.Context, q Query) (*Subscription, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if err := s.watchLocked(q.Scope.AccountID); err != nil {
		s.log.Warn("change feed unavailable", "account", q.Scope.AccountID, "err", err)
	}
	s.mu.Unlock()

	fromCache, err := s.refresh(ctx, q)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	sub := &Subscription{store: s, q: q, ch: make(chan Snapshot, 1), fromCache: fromCache}
	if s.subs[q.Parent] == nil {
		s.subs[q.Parent] = make(map[*Subscription]struct{})
	}
	s.subs[q.Parent][sub] = struct{}{}
	sub.push(s.snapshotLocked(q, fromCache))
	return sub, nil
}

// Find is a one-shot read with the same semantics as the first snapshot of Open.
func (s *Store) Find(ctx context.Context, q Query) (Snapshot, error) {
	if err := q.validate(); err != nil {
		return Snapshot{}, err
	}
	fromCache, err := s.refresh(ctx, q)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(q, fromCache), nil
}

// Get reads one document, preferring the remote copy and falling back to the
// local view when offline. The bool reports a pending local write.
func (s *Store) Get(ctx context.Context, scope Scope, parent, id string) (docstore.Document, bool, error) {
	if err := scope.Validate(); err != nil {
		return docstore.Document{}, false, err
	}
	if err := docstore.ValidatePath(parent, id); err != nil {
		return docstore.Document{}, false, fmt.Errorf("%w: %v", ErrInvalidScope, err)
	}
	if !scope.canRead(parent, id) {
		return docstore.Document{}, false, fmt.Errorf("%w: %s/%s", ErrPermissionDenied, parent, id)
	}

	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	remote, err := s.backend.Get(rctx, parent, id)

	offline := false
	switch {
	case err == nil:
		s.mu.Lock()
		s.applyRemoteLocked(remote, false)
		s.mu.Unlock()
		s.setOnline(true)
	case errors.Is(err, docstore.ErrNotFound):
		s.mu.Lock()
		if coll := s.base[parent]; coll != nil {
			delete(coll, id)
		}
		s.mu.Unlock()
		s.setOnline(true)
	case docstore.IsTransient(err) && ctx.Err() == nil:
		offline = true
		s.setOnline(false)
	case errors.Is(err, docstore.ErrPermissionDenied):
		return docstore.Document{}, false, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	default:
		return docstore.Document{}, false, err
	}

	s.mu.Lock()
	docs, pending := s.viewLocked(parent)
	s.mu.Unlock()

	d, ok := docs[id]
	if !ok {
		if offline {
			return docstore.Document{}, false, ErrUnavailable
		}
		return docstore.Document{}, false, ErrNotFound
	}
	d.Fields = docstore.Clone(d.Fields)
	return d, pending[id], nil
}

// refresh pulls q from the remote store into the local base. A transient
// failure is not an error: the caller is served from cache.
func (s *Store) refresh(ctx context.Context, q Query) (fromCache bool, err error) {
	dq := q.docQuery()

	s.mu.Lock()
	before := make(map[string]int64)
	for id, d := range s.base[q.Parent] {
		if docstore.Matches(d, dq.Filters) {
			before[id] = d.Version
		}
	}
	s.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	docs, err := s.backend.Query(rctx, dq)
	if err != nil {
		switch {
		case docstore.IsTransient(err) && ctx.Err() == nil:
			s.setOnline(false)
			s.log.Debug("serving from cache", "parent", q.Parent, "err", err)
			return true, nil
		case errors.Is(err, docstore.ErrPermissionDenied):
			return false, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return false, err
	}

	s.mu.Lock()
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		seen[d.ID] = true
		s.applyRemoteLocked(d, false)
	}
	if q.complete() {
		// absent and untouched while the query ran: deleted remotely
		for id, v := range before {
			if seen[id] {
				continue
			}
			if cur, ok := s.base[q.Parent][id]; ok && cur.Version == v {
				delete(s.base[q.Parent], id)
			}
		}
	}
	s.mu.Unlock()

	s.setOnline(true)
	return false, nil
}

// refreshAll re-reads every subscribed query and republishes.
func (s *Store) refreshAll(ctx context.Context) {
	s.mu.Lock()
	var subs []*Subscription
	for _, set := range s.subs {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()

	ok := true
	for _, sub := range subs {
		fromCache, err := s.refresh(ctx, sub.q)
		if err != nil {
			s.log.Warn("subscription refresh failed", "parent", sub.q.Parent, "err", err)
			continue
		}
		if fromCache {
			ok = false
			break
		}
		s.mu.Lock()
		sub.fromCache = false
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ok && s.online {
		s.stale = false
	}
	parents := make(map[string]struct{}, len(subs))
	for _, sub := range subs {
		parents[sub.q.Parent] = struct{}{}
	}
	for p := range parents {
		s.publishLocked(p)
	}
}

// ----------------------------------------------------------------------------
// Local view
// ----------------------------------------------------------------------------

// viewLocked returns the documents of parent as the remote copy overlaid with
// every pending write in issue order, plus the ids touched by pending writes.
func (s *Store) viewLocked(parent string) (map[string]docstore.Document, map[string]bool) {
	docs := make(map[string]docstore.Document, len(s.base[parent]))
	for id, d := range s.base[parent] {
		docs[id] = d
	}
	pending := make(map[string]bool)
	for _, e := range s.pending {
		if e.Parent != parent {
			continue
		}
		pending[e.DocID] = true
		cur := docs[e.DocID]
		switch e.Op {
		case docstore.OpDelete:
			delete(docs, e.DocID)
		case docstore.OpSet:
			docs[e.DocID] = docstore.Document{Parent: parent, ID: e.DocID, Fields: e.Fields, Version: cur.Version}
		case docstore.OpMerge:
			docs[e.DocID] = docstore.Document{Parent: parent, ID: e.DocID, Fields: docstore.Merge(cur.Fields, e.Fields), Version: cur.Version}
		}
	}
	return docs, pending
}

func (s *Store) snapshotLocked(q Query, fromCache bool) Snapshot {
	docs, pending := s.viewLocked(q.Parent)
	list := make([]docstore.Document, 0, len(docs))
	for _, d := range docs {
		list = append(list, d)
	}

	out := Snapshot{
		Docs:      docstore.Evaluate(list, q.docQuery()),
		Pending:   make(map[string]bool),
		FromCache: fromCache,
	}
	for i, d := range out.Docs {
		out.Docs[i].Fields = docstore.Clone(d.Fields)
		if pending[d.ID] {
			out.Pending[d.ID] = true
		}
	}
	return out
}

func (s *Store) publishLocked(parent string) {
	for sub := range s.subs[parent] {
		sub.push(s.snapshotLocked(sub.q, sub.fromCache))
	}
}

// applyRemoteLocked folds a remote document into the base unless a newer
// version (or a newer deletion) is already known. It reports whether
// anything changed.
func (s *Store) applyRemoteLocked(d docstore.Document, deleted bool) bool {
	path := d.Path()
	if v, ok := s.tombs[path]; ok && v >= d.Version {
		return false
	}
	coll := s.base[d.Parent]
	if cur, ok := coll[d.ID]; ok && cur.Version >= d.Version {
		return false
	}

	if deleted {
		s.tombs[path] = d.Version
		if coll != nil {
			delete(coll, d.ID)
		}
		return true
	}

	delete(s.tombs, path)
	if coll == nil {
		coll = make(map[string]docstore.Document)
		s.base[d.Parent] = coll
	}
	d.Fields = docstore.Clone(d.Fields)
	coll[d.ID] = d
	return true
}

func (s *Store) isPendingLocked(writeID string) bool {
	for _, e := range s.pending {
		if e.WriteID == writeID {
			return true
		}
	}
	return false
}

func (s *Store) dropPendingLocked(writeID string) {
	for i, e := range s.pending {
		if e.WriteID == writeID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

func (s *Store) settleLocked(st WriteState) {
	for _, ch := range s.waiters[st.WriteID] {
		ch <- st
	}
	delete(s.waiters, st.WriteID)
}

func (s *Store) removeWaiterLocked(writeID string, ch chan WriteState) {
	list := s.waiters[writeID]
	for i, c := range list {
		if c == ch {
			s.waiters[writeID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(s.waiters[writeID]) == 0 {
		delete(s.waiters, writeID)
	}
}

// setOnline records connectivity. Going offline marks every subscription
// stale so the worker re-reads them after reconnecting.
func (s *Store) setOnline(online bool) {
	s.mu.Lock()
	prev := s.online
	s.online = online
	if !online {
		s.stale = true
	}
	s.mu.Unlock()

	if prev == online {
		return
	}
	s.metrics.Online(online)
	if online {
		s.log.Info("remote store reachable")
		s.signal()
	} else {
		s.log.Warn("remote store unreachable, queueing writes")
	}
}

// ----------------------------------------------------------------------------
// Change feed
// ----------------------------------------------------------------------------

func (s *Store) watchLocked(account string) error {
	if s.feed == nil {
		return nil
	}
	if _, ok := s.feeds[account]; ok {
		return nil
	}
	cancel, err := s.feed.Subscribe(account, s.onChange)
	if err != nil {
		return err
	}
	s.feeds[account] = cancel
	return nil
}

func (s *Store) onChange(c docstore.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.applyRemoteLocked(c.Doc, c.Deleted) {
		s.publishLocked(c.Doc.Parent)
	}
}

// ----------------------------------------------------------------------------
// Lifecycle
// ----------------------------------------------------------------------------

// Recover loads undelivered writes from the journal into the local view. It
// runs once; Run calls it too.
func (s *Store) Recover(ctx context.Context) error {
	s.recoverOnce.Do(func() {
		s.appendMu.Lock()
		defer s.appendMu.Unlock()

		entries, err := s.journal.Pending(ctx)
		if err != nil {
			s.recoverErr = fmt.Errorf("%w: %w", ErrLocalPersistence, err)
			return
		}

		s.mu.Lock()
		known := make(map[string]bool, len(s.pending))
		for _, e := range s.pending {
			known[e.WriteID] = true
		}
		var replay []Entry
		parents := make(map[string]struct{})
		for _, e := range entries {
			if known[e.WriteID] {
				continue
			}
			replay = append(replay, e)
			parents[e.Parent] = struct{}{}
		}
		s.pending = append(replay, s.pending...)
		for p := range parents {
			s.publishLocked(p)
		}
		s.metrics.JournalDepth(len(s.pending))
		s.mu.Unlock()

		if len(replay) > 0 {
			s.log.Info("replayed journal", "entries", len(replay))
			s.signal()
		}
	})
	return s.recoverErr
}

// Subscriptions counts the open subscriptions of one account.
func (s *Store) Subscriptions(account string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, set := range s.subs {
		for sub := range set {
			if sub.q.Scope.AccountID == account {
				n++
			}
		}
	}
	return n
}

// CloseAccount ends every subscription and the change feed of one account.
func (s *Store) CloseAccount(account string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for parent, set := range s.subs {
		for sub := range set {
			if sub.q.Scope.AccountID != account {
				continue
			}
			delete(set, sub)
			sub.closeLocked()
			n++
		}
		if len(set) == 0 {
			delete(s.subs, parent)
		}
	}
	if cancel, ok := s.feeds[account]; ok {
		cancel()
		delete(s.feeds, account)
	}
	return n
}

// Close ends all subscriptions and feeds. Journaled writes stay queued for
// the next start.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	for _, cancel := range s.feeds {
		cancel()
	}
	s.feeds = make(map[string]func())
	for _, set := range s.subs {
		for sub := range set {
			sub.closeLocked()
		}
	}
	s.subs = make(map[string]map[*Subscription]struct{})
	for id, chans := range s.waiters {
		for _, ch := range chans {
			ch <- WriteState{WriteID: id, Status: StatusPending}
		}
	}
	s.waiters = make(map[string][]chan WriteState)
}
