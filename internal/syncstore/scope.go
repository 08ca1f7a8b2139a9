package syncstore

import (
	"fmt"
	"strings"

	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

// Scope is the explicit data-access context of every call: the account that
// owns the data and the clinic currently selected.
type Scope struct {
	AccountID string
	ClinicID  string
}

func (s Scope) Validate() error {
	if s.AccountID == "" {
		return fmt.Errorf("%w: missing account", ErrInvalidScope)
	}
	return nil
}

// owns reports whether parent is a collection the account may read.
func (s Scope) owns(parent string) bool {
	return strings.HasPrefix(parent, docstore.Join(docstore.UsersCollection, s.AccountID)+"/")
}

// canRead extends owns with the account's own profile document.
func (s Scope) canRead(parent, id string) bool {
	return s.owns(parent) || (parent == docstore.UsersCollection && id == s.AccountID)
}

// Query describes a live or one-shot read over one collection.
type Query struct {
	Scope   Scope
	Parent  string
	OrderBy string
	// Limit of 0 reads the whole collection.
	Limit int
	// After continues a previous page.
	After *docstore.Cursor
	// Broad ignores the clinic partition.
	Broad   bool
	Filters []docstore.Filter
}

// ClinicField is the document field holding the clinic partition key.
const ClinicField = "clinicId"

func (q Query) docQuery() docstore.Query {
	filters := append([]docstore.Filter(nil), q.Filters...)
	if !q.Broad && q.Scope.ClinicID != "" {
		filters = append(filters, docstore.Filter{Field: ClinicField, Value: q.Scope.ClinicID})
	}
	return docstore.Query{
		Parent:  q.Parent,
		OrderBy: q.OrderBy,
		Limit:   q.Limit,
		After:   q.After,
		Filters: filters,
	}
}

// complete reports whether the query reads every matching document, which is
// what allows absent documents to be treated as deleted.
func (q Query) complete() bool {
	return q.Limit == 0 && q.After == nil
}

func (q Query) validate() error {
	if err := q.Scope.Validate(); err != nil {
		return err
	}
	if err := docstore.ValidatePath(q.Parent, "x"); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScope, err)
	}
	if !q.Scope.owns(q.Parent) {
		return fmt.Errorf("%w: %s is outside account %s", ErrPermissionDenied, q.Parent, q.Scope.AccountID)
	}
	return nil
}
