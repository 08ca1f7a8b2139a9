package syncstore

import (
	"context"
	"strconv"
	"sync"
)

// MemoryJournal is a non-durable Journal for tests and single-shot CLI runs.
type MemoryJournal struct {
	mu      sync.Mutex
	seq     int
	entries []Entry
	states  map[string]WriteState

	// FailAppend, when set, is consulted before every append.
	FailAppend func(Entry) error
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{states: make(map[string]WriteState)}
}

func (j *MemoryJournal) Append(_ context.Context, e *Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.FailAppend != nil {
		if err := j.FailAppend(*e); err != nil {
			return err
		}
	}
	j.seq++
	e.Seq = strconv.Itoa(j.seq)
	j.entries = append(j.entries, *e)
	j.states[e.WriteID] = WriteState{WriteID: e.WriteID, Status: StatusPending}
	return nil
}

func (j *MemoryJournal) Pending(context.Context) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Entry(nil), j.entries...), nil
}

func (j *MemoryJournal) Ack(_ context.Context, e Entry) error {
	j.settle(e, WriteState{WriteID: e.WriteID, Status: StatusDelivered})
	return nil
}

func (j *MemoryJournal) Reject(_ context.Context, e Entry, reason string) error {
	j.settle(e, WriteState{WriteID: e.WriteID, Status: StatusFailed, Reason: reason})
	return nil
}

func (j *MemoryJournal) settle(e Entry, st WriteState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.entries {
		if j.entries[i].Seq == e.Seq {
			j.entries = append(j.entries[:i], j.entries[i+1:]...)
			break
		}
	}
	j.states[e.WriteID] = st
}

func (j *MemoryJournal) Status(_ context.Context, writeID string) (WriteState, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	st, ok := j.states[writeID]
	if !ok {
		return WriteState{}, ErrUnknownWrite
	}
	return st, nil
}
