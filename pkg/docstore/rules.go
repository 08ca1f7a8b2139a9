package docstore

import (
	"fmt"
	"strings"
)

const (
	UsersCollection       = "users"
	ErrorLogsCollection   = "error_logs"
	CredentialsCollection = "auth_credentials"
)

// Authorize applies the ownership rules of the store: an account may write
// its own profile, anything below it, and append to the error log.
// Credentials are only writable by system principals.
func Authorize(m Mutation) error {
	if m.Account == "" {
		return nil
	}
	switch {
	case m.Parent == UsersCollection && m.ID == m.Account:
		if m.Op == OpDelete {
			return fmt.Errorf("%w: accounts are never deleted", ErrPermissionDenied)
		}
		return nil
	case strings.HasPrefix(m.Parent, UsersCollection+"/"+m.Account+"/"):
		return nil
	case m.Parent == ErrorLogsCollection && m.Op == OpSet:
		return nil
	}
	return fmt.Errorf("%w: %s/%s is outside account %s", ErrPermissionDenied, m.Parent, m.ID, m.Account)
}

// Validate checks the shape of a mutation before it is accepted.
func Validate(m Mutation) error {
	if err := ValidatePath(m.Parent, m.ID); err != nil {
		return err
	}
	switch m.Op {
	case OpSet, OpMerge:
		if len(m.Fields) == 0 {
			return fmt.Errorf("%w: empty patch", ErrInvalidArgument)
		}
		return ValidateFields(m.Fields)
	case OpDelete:
		return nil
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidArgument, m.Op)
	}
}

// ValidatePath requires a collection path with an odd number of non-empty
// segments and a document id without separators.
func ValidatePath(parent, id string) error {
	if parent == "" {
		return fmt.Errorf("%w: empty collection path", ErrInvalidArgument)
	}
	segs := strings.Split(parent, "/")
	if len(segs)%2 == 0 {
		return fmt.Errorf("%w: %q is a document path", ErrInvalidArgument, parent)
	}
	for _, s := range segs {
		if s == "" {
			return fmt.Errorf("%w: empty segment in %q", ErrInvalidArgument, parent)
		}
	}
	if id == "" || strings.Contains(id, "/") {
		return fmt.Errorf("%w: invalid document id %q", ErrInvalidArgument, id)
	}
	return nil
}

// ValidateFields rejects empty, dotted and reserved (__x) field names at any depth.
func ValidateFields(fields map[string]any) error {
	for k, v := range fields {
		if k == "" || strings.Contains(k, ".") || strings.HasPrefix(k, "__") {
			return fmt.Errorf("%w: invalid field name %q", ErrInvalidArgument, k)
		}
		if nested, ok := v.(map[string]any); ok {
			if err := ValidateFields(nested); err != nil {
				return err
			}
		}
	}
	return nil
}
