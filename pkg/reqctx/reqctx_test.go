package reqctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestMeta(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", RequestIDFromContext(ctx))

	ctx = WithRequestMeta(ctx, &RequestMeta{RequestID: "r1", UserAgent: "curl"})
	meta, ok := RequestMetaFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "curl", meta.UserAgent)
	assert.Equal(t, "r1", RequestIDFromContext(ctx))
}

func TestPrincipal(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsAuthenticated(ctx))
	assert.Panics(t, func() { MustPrincipal(ctx) })

	ctx = WithPrincipal(ctx, &Principal{AccountID: "u1", Role: "doctor"})
	assert.True(t, IsAuthenticated(ctx))
	assert.Equal(t, "u1", MustPrincipal(ctx).AccountID)

	// a typed nil is not a principal
	ctx = WithPrincipal(context.Background(), nil)
	_, ok := PrincipalFromContext(ctx)
	assert.False(t, ok)
}
