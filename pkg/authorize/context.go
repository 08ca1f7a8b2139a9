package authorize

import (
	"context"
	"errors"

	"github.com/Alijeyrad/consultorio_backend/pkg/reqctx"
)

var ErrNoSubjectInContext = errors.New("no subject found in context")

// RoleFromContext returns the role of the authenticated principal.
func RoleFromContext(ctx context.Context) (Role, error) {
	p, ok := reqctx.PrincipalFromContext(ctx)
	if !ok || p.Role == "" {
		return "", ErrNoSubjectInContext
	}
	return Role(p.Role), nil
}

// Check enforces object/action for the principal in ctx.
func Check(ctx context.Context, authz IAuthorization, object Resource, action Action) error {
	role, err := RoleFromContext(ctx)
	if err != nil {
		return ErrForbidden
	}
	return authz.MustEnforce(ctx, role, object, action)
}
