package authorize

import (
	"context"
	"log/slog"
	"time"

	"github.com/Alijeyrad/consultorio_backend/pkg/reqctx"
)

// AuditedAuthorization logs every decision with the caller's account.
type AuditedAuthorization struct {
	inner  IAuthorization
	logger *slog.Logger
}

func NewAuditedAuthorization(inner IAuthorization, logger *slog.Logger) IAuthorization {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditedAuthorization{inner: inner, logger: logger}
}

func (a *AuditedAuthorization) Enforce(ctx context.Context, role Role, object Resource, action Action) (bool, error) {
	start := time.Now()
	allowed, err := a.inner.Enforce(ctx, role, object, action)

	attrs := []any{
		"role", string(role),
		"resource", string(object),
		"action", string(action),
		"allowed", allowed,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if p, ok := reqctx.PrincipalFromContext(ctx); ok {
		attrs = append(attrs, "account_id", p.AccountID)
	}
	if id := reqctx.RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}

	switch {
	case err != nil:
		a.logger.Error("authz_decision", append(attrs, "error", err.Error())...)
	case allowed:
		a.logger.Debug("authz_decision", attrs...)
	default:
		a.logger.Warn("authz_decision", attrs...)
	}
	return allowed, err
}

func (a *AuditedAuthorization) MustEnforce(ctx context.Context, role Role, object Resource, action Action) error {
	ok, err := a.Enforce(ctx, role, object, action)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
