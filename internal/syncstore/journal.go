package syncstore

import (
	"context"
	"time"

	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

type WriteStatus string

const (
	StatusPending   WriteStatus = "pending"
	StatusDelivered WriteStatus = "delivered"
	StatusFailed    WriteStatus = "failed"
)

// WriteState is the observable outcome of one queued write.
type WriteState struct {
	WriteID string      `json:"write_id"`
	Status  WriteStatus `json:"status"`
	Reason  string      `json:"reason,omitempty"`
}

// Entry is one queued mutation. Seq is assigned by the journal on append and
// orders delivery.
type Entry struct {
	Seq       string         `json:"-"`
	WriteID   string         `json:"write_id"`
	Account   string         `json:"account"`
	Op        docstore.Op    `json:"op"`
	Parent    string         `json:"parent"`
	DocID     string         `json:"doc_id"`
	Fields    map[string]any `json:"fields,omitempty"`
	IssuedAt  time.Time      `json:"issued_at"`
	UserAgent string         `json:"user_agent,omitempty"`
}

func (e Entry) Mutation() docstore.Mutation {
	return docstore.Mutation{
		Op:      e.Op,
		Parent:  e.Parent,
		ID:      e.DocID,
		Fields:  e.Fields,
		Account: e.Account,
	}
}

// Journal is the durable write-ahead queue. Append must be durable when it
// returns nil; Pending returns undelivered entries in append order.
type Journal interface {
	Append(ctx context.Context, e *Entry) error
	Pending(ctx context.Context) ([]Entry, error)
	Ack(ctx context.Context, e Entry) error
	Reject(ctx context.Context, e Entry, reason string) error
	Status(ctx context.Context, writeID string) (WriteState, error)
}
