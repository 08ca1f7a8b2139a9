package importer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/consultorio_backend/internal/schema"
	"github.com/Alijeyrad/consultorio_backend/internal/service/auth"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/logs"
	pasetotoken "github.com/Alijeyrad/consultorio_backend/pkg/paseto"
	"github.com/Alijeyrad/consultorio_backend/pkg/util/password"
)

type countdown struct{ n atomic.Int32 }

func (c *countdown) Pending() int {
	if v := c.n.Load(); v > 0 {
		c.n.Add(-1)
		return int(v)
	}
	return 0
}

func TestWaitDrained(t *testing.T) {
	c := &countdown{}
	c.n.Store(3)
	assert.NoError(t, waitDrained(context.Background(), c, 5*time.Second))

	stuck := &stuckStore{}
	err := waitDrained(context.Background(), stuck, 50*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type stuckStore struct{}

func (stuckStore) Pending() int { return 1 }

func newAuth(t *testing.T) auth.Service {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	backend := docstore.NewMemory()
	store := syncstore.New(syncstore.Options{
		Journal: syncstore.NewMemoryJournal(),
		Backend: backend,
		Logger:  logs.Discard(),
	})
	t.Cleanup(store.Close)

	mgr, err := pasetotoken.New(pasetotoken.Config{Mode: pasetotoken.ModeLocal, Issuer: "consultorio", Audience: "consultorio-cli"}, pasetotoken.NewLocalKeys())
	require.NoError(t, err)
	hasher := password.NewHasher(password.Params{Memory: 1024, Iterations: 1, Parallelism: 1}, 6)
	svc := auth.New(backend, store, rdb, mgr, hasher, auth.Options{LoginSuffix: "@sistema.local", Logger: logs.Discard()})

	_, err = svc.Provision(context.Background(), auth.ProvisionRequest{
		Username: "admin",
		Password: "secreto1",
		Role:     schema.RoleAdmin,
		Clinics:  map[string]schema.ClinicConfig{"clinic_a": {Name: "Centro"}},
	})
	require.NoError(t, err)
	return svc
}

func TestSignInWithPassword(t *testing.T) {
	svc := newAuth(t)
	ctx := context.Background()

	gate := auth.NewGate(svc)
	id, err := signIn(ctx, gate, "", "Admin", "secreto1")
	require.NoError(t, err)
	assert.Equal(t, "admin", id.Account.Username)
	assert.Equal(t, schema.RoleAdmin, id.Account.Role)
	assert.Equal(t, auth.StateAuthenticated, gate.State())

	_, err = signIn(ctx, auth.NewGate(svc), "", "admin", "otra")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestSignInWithToken(t *testing.T) {
	svc := newAuth(t)
	ctx := context.Background()

	tokens, _, err := svc.Login(ctx, "admin", "secreto1")
	require.NoError(t, err)

	gate := auth.NewGate(svc)
	id, err := signIn(ctx, gate, tokens.AccessToken, "", "")
	require.NoError(t, err)
	assert.Equal(t, "admin", id.Account.Username)
}

func TestSignInWithoutCredentials(t *testing.T) {
	svc := newAuth(t)

	gate := auth.NewGate(svc)
	_, err := signIn(context.Background(), gate, "", "", "")
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	assert.Equal(t, auth.StateAnonymous, gate.State())
}
