package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateBlocksUntilResolved(t *testing.T) {
	f := newFixture(t)
	f.provision(t, "draruiz", "secreto1")
	tokens, _, err := f.svc.Login(context.Background(), "draruiz", "secreto1")
	require.NoError(t, err)

	g := NewGate(f.svc)
	assert.Equal(t, StateResolving, g.State())

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Wait(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "dependents stay blocked while resolving")

	got := make(chan *Identity, 1)
	go func() {
		id, _ := g.Wait(context.Background())
		got <- id
	}()

	require.NoError(t, g.Resolve(context.Background(), tokens.AccessToken))
	select {
	case id := <-got:
		require.NotNil(t, id)
		assert.Equal(t, "draruiz", id.Account.Username)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Resolve")
	}
	assert.Equal(t, StateAuthenticated, g.State())
}

func TestGateResolvesAnonymous(t *testing.T) {
	f := newFixture(t)

	g := NewGate(f.svc)
	require.NoError(t, g.Resolve(context.Background(), ""))
	assert.Equal(t, StateAnonymous, g.State())
	_, err := g.Wait(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	g = NewGate(f.svc)
	assert.Error(t, g.Resolve(context.Background(), "v4.local.garbage"))
	assert.Equal(t, StateAnonymous, g.State())
}

func TestGateSignOutTearsDownOnce(t *testing.T) {
	f := newFixture(t)
	f.provision(t, "draruiz", "secreto1")
	ctx := context.Background()

	g := NewGate(f.svc)
	id, err := g.SignIn(ctx, "draruiz", "secreto1")
	require.NoError(t, err)
	access := g.Tokens().AccessToken

	closed := 0
	g.OnSignOut(func() { closed++ })

	require.NoError(t, g.SignOut(ctx))
	require.NoError(t, g.SignOut(ctx))
	assert.Equal(t, 1, closed)
	assert.Equal(t, StateAnonymous, g.State())
	assert.Nil(t, g.Tokens())

	_, err = f.svc.Authenticate(ctx, access)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, f.mr.Exists(redisKeySession(id.SessionID)))
}
