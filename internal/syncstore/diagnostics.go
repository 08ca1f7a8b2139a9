package syncstore

import (
	"context"
	"errors"

	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

type userAgentKey struct{}

// WithUserAgent attaches the client user agent recorded by ReportError.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, ua)
}

func userAgent(ctx context.Context) string {
	ua, _ := ctx.Value(userAgentKey{}).(string)
	return ua
}

// ReportError queues a diagnostic record in error_logs. It goes through the
// journal like any other write, so it survives being offline.
func (s *Store) ReportError(ctx context.Context, scope Scope, cause error, where string) error {
	if cause == nil {
		return nil
	}
	fields := map[string]any{
		"message":   cause.Error(),
		"code":      ErrorCode(cause),
		"context":   where,
		"timestamp": docstore.FormatTime(s.now()),
	}
	if ua := userAgent(ctx); ua != "" {
		fields["userAgent"] = ua
	}
	if scope.AccountID != "" {
		fields["account"] = scope.AccountID
	}

	_, err := s.enqueue(ctx, Entry{
		Account: scope.AccountID,
		Op:      docstore.OpSet,
		Parent:  docstore.ErrorLogsCollection,
		DocID:   NewID(),
		Fields:  fields,
	})
	return err
}

// ErrorCode is the short machine code stored with a diagnostic.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, docstore.ErrPermissionDenied):
		return "permission-denied"
	case errors.Is(err, ErrInvalidPatch), errors.Is(err, docstore.ErrInvalidArgument):
		return "invalid-argument"
	case errors.Is(err, ErrLocalPersistence):
		return "local-persistence"
	case errors.Is(err, ErrNotFound), errors.Is(err, docstore.ErrNotFound):
		return "not-found"
	case errors.Is(err, ErrUnavailable), docstore.IsTransient(err):
		return "unavailable"
	default:
		return "unknown"
	}
}
