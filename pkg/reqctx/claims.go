package reqctx

import "context"

// Principal is the resolved identity behind an authenticated request.
type Principal struct {
	AccountID string
	SessionID string
	Username  string
	Role      string
	// ClinicID is the active clinic selected by the caller, "" when none.
	ClinicID string
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, keyPrincipal, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(keyPrincipal).(*Principal)
	return p, ok && p != nil
}

// MustPrincipal panics when no principal is set. Use only behind the
// authentication middleware.
func MustPrincipal(ctx context.Context) *Principal {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		panic("reqctx: principal not found in context")
	}
	return p
}

func IsAuthenticated(ctx context.Context) bool {
	p, ok := PrincipalFromContext(ctx)
	return ok && p.AccountID != ""
}
