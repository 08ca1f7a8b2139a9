// Package docstore is the hosted document database the application syncs
// against. Documents live in collections addressed by slash-separated paths
// ("users/<uid>/patients"); every committed write bumps a global version so
// replicas can discard stale change notifications.
package docstore

import (
	"context"
	"strings"
)

// Document is a single record inside a collection.
type Document struct {
	Parent  string         `json:"parent"`
	ID      string         `json:"id"`
	Fields  map[string]any `json:"fields,omitempty"`
	Version int64          `json:"version"`
}

func (d Document) Path() string { return d.Parent + "/" + d.ID }

// String returns a top-level field rendered as text, "" when absent.
func (d Document) String(field string) string {
	return Text(d.Fields[field])
}

type Op string

const (
	OpSet    Op = "set"    // replace the whole document
	OpMerge  Op = "merge"  // deep-merge fields, creating the document if missing
	OpDelete Op = "delete" // hard delete
)

// Mutation is one write against one document. Account is the principal the
// write is made on behalf of; empty means a trusted system write.
type Mutation struct {
	Op      Op
	Parent  string
	ID      string
	Fields  map[string]any
	Account string
}

// Filter is an equality match on the text form of a top-level field.
type Filter struct {
	Field string
	Value string
}

// Cursor positions a query after a previously seen document.
type Cursor struct {
	Value string `json:"value"`
	ID    string `json:"id"`
}

// Query selects documents of one collection ordered by OrderBy descending
// (ties broken by id descending). Documents missing OrderBy are excluded.
type Query struct {
	Parent  string
	OrderBy string
	Limit   int
	After   *Cursor
	Filters []Filter
}

// Backend is the remote store contract.
type Backend interface {
	Get(ctx context.Context, parent, id string) (Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	// Commit applies m and returns the resulting document. For deletes the
	// returned document carries only the address and the new version.
	Commit(ctx context.Context, m Mutation) (Document, error)
}

// Join builds a collection or document path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}
