// Package reqctx carries request-scoped values through context.Context.
//
// HTTP middleware sets RequestMeta on every request and a Principal on
// authenticated ones:
//
//	ctx = reqctx.WithRequestMeta(ctx, &reqctx.RequestMeta{RequestID: id})
//	ctx = reqctx.WithPrincipal(ctx, &reqctx.Principal{AccountID: uid, Role: "doctor"})
//
// Services read them back with RequestMetaFromContext and
// PrincipalFromContext. Keys are unexported so no other package can collide.
package reqctx
