package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/consultorio_backend/pkg/logs"
)

func TestBreakerOpensOnTransientFailures(t *testing.T) {
	mem := NewMemory()
	mem.SetOnline(false)
	b := NewBreaker(mem, BreakerConfig{MaxFailures: 2, OpenTimeout: time.Hour}, logs.Discard())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := b.Get(ctx, patients, "p")
		require.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	mem.SetOnline(true)
	_, err := b.Query(ctx, Query{Parent: patients})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, IsTransient(err))
}

func TestBreakerIgnoresLogicalErrors(t *testing.T) {
	mem := NewMemory()
	b := NewBreaker(mem, BreakerConfig{MaxFailures: 1}, logs.Discard())

	for i := 0; i < 3; i++ {
		_, err := b.Commit(context.Background(), Mutation{Op: OpSet, Parent: "users/x/patients", ID: "p", Account: "y", Fields: map[string]any{"a": "b"}})
		require.ErrorIs(t, err, ErrPermissionDenied)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
