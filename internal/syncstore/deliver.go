package syncstore

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

// Run delivers journaled writes until ctx is done. Writes are delivered one
// at a time in issue order; a transient failure holds the queue and retries
// with exponential backoff.
func (s *Store) Run(ctx context.Context) error {
	if err := s.Recover(ctx); err != nil {
		return err
	}
	s.log.Info("delivery worker started")
	defer s.log.Info("delivery worker stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}
		if s.resyncDue() {
			s.refreshAll(ctx)
		}

		if e, ok := s.head(); ok {
			s.deliver(ctx, e)
			continue
		}

		var (
			timer *time.Timer
			probe <-chan time.Time
		)
		if !s.Online() {
			timer = time.NewTimer(s.probeInterval)
			probe = timer.C
		}
		select {
		case <-ctx.Done():
		case <-s.wake:
		case <-probe:
			s.refreshAll(ctx)
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (s *Store) head() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return Entry{}, false
	}
	return s.pending[0], true
}

func (s *Store) resyncDue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online && s.stale
}

func (s *Store) deliver(ctx context.Context, e Entry) {
	start := s.now()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.initialBackoff
	bo.MaxInterval = s.maxBackoff

	doc, err := backoff.Retry(ctx, func() (docstore.Document, error) {
		rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
		defer cancel()

		d, err := s.backend.Commit(rctx, e.Mutation())
		switch {
		case err == nil:
			return d, nil
		case ctx.Err() != nil:
			return d, ctx.Err()
		case docstore.IsTransient(err):
			s.setOnline(false)
			s.metrics.Retried(e.Op)
			s.log.Debug("delivery deferred", "write_id", e.WriteID, "err", err)
			return d, err
		default:
			return d, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(bo), backoff.WithMaxElapsedTime(0))

	if err != nil {
		if ctx.Err() != nil {
			// still journaled, delivered after restart
			return
		}
		s.reject(ctx, e, err)
		return
	}

	s.setOnline(true)
	s.metrics.Delivered(e.Op, s.now().Sub(start))
	s.ack(ctx, e, doc)
}

func (s *Store) ack(ctx context.Context, e Entry, doc docstore.Document) {
	if err := s.journal.Ack(context.WithoutCancel(ctx), e); err != nil {
		s.log.Warn("journal ack failed, write may be delivered twice", "write_id", e.WriteID, "err", err)
	}

	deleted := e.Op == docstore.OpDelete
	s.mu.Lock()
	s.dropPendingLocked(e.WriteID)
	s.applyRemoteLocked(doc, deleted)
	s.publishLocked(e.Parent)
	s.settleLocked(WriteState{WriteID: e.WriteID, Status: StatusDelivered})
	s.metrics.JournalDepth(len(s.pending))
	s.mu.Unlock()

	if s.feed == nil || e.Parent == docstore.ErrorLogsCollection {
		return
	}
	c := docstore.Change{Account: e.Account, Doc: doc, Deleted: deleted, Origin: s.node}
	if err := s.feed.Publish(context.WithoutCancel(ctx), c); err != nil {
		s.log.Warn("change feed publish failed", "path", doc.Path(), "err", err)
	}
}

// reject drops a write the remote store refused and rolls back its overlay.
func (s *Store) reject(ctx context.Context, e Entry, cause error) {
	reason := cause.Error()
	if err := s.journal.Reject(context.WithoutCancel(ctx), e, reason); err != nil {
		s.log.Warn("journal reject failed", "write_id", e.WriteID, "err", err)
	}

	s.mu.Lock()
	s.dropPendingLocked(e.WriteID)
	s.publishLocked(e.Parent)
	s.settleLocked(WriteState{WriteID: e.WriteID, Status: StatusFailed, Reason: reason})
	s.metrics.JournalDepth(len(s.pending))
	s.mu.Unlock()

	s.metrics.Failed(e.Op)
	s.log.Warn("write rejected",
		"write_id", e.WriteID,
		"op", e.Op,
		"path", docstore.Join(e.Parent, e.DocID),
		"err", cause,
	)

	if e.Parent != docstore.ErrorLogsCollection {
		where := fmt.Sprintf("deliver %s %s", e.Op, docstore.Join(e.Parent, e.DocID))
		rctx := WithUserAgent(context.WithoutCancel(ctx), e.UserAgent)
		_ = s.ReportError(rctx, Scope{AccountID: e.Account}, cause, where)
	}
}
