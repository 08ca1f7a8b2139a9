package auth

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
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/logs"
	pasetotoken "github.com/Alijeyrad/consultorio_backend/pkg/paseto"
	"github.com/Alijeyrad/consultorio_backend/pkg/util/password"
)

const suffix = "@sistema.local"

type fixture struct {
	svc     Service
	backend *docstore.Memory
	rdb     *redis.Client
	mr      *miniredis.Miniredis
	hasher  *password.Hasher
	keys    pasetotoken.Keys
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		backend: docstore.NewMemory(),
		rdb:     rdb,
		mr:      mr,
		hasher:  password.NewHasher(password.Params{Memory: 1024, Iterations: 1, Parallelism: 1}, 6),
		keys:    pasetotoken.NewLocalKeys(),
	}
	f.svc = f.newService(t, "node-a")
	return f
}

func (f *fixture) newService(t *testing.T, node string) Service {
	t.Helper()
	store := syncstore.New(syncstore.Options{
		NodeID:        node,
		Journal:       syncstore.NewMemoryJournal(),
		Backend:       f.backend,
		Logger:        logs.Discard(),
		RemoteTimeout: time.Second,
	})
	t.Cleanup(store.Close)

	mgr, err := pasetotoken.New(pasetotoken.Config{
		Mode:     pasetotoken.ModeLocal,
		Issuer:   "consultorio",
		Audience: "consultorio-web",
	}, f.keys)
	require.NoError(t, err)

	return New(f.backend, store, f.rdb, mgr, f.hasher, Options{
		LoginSuffix: suffix,
		NodeID:      node,
		Logger:      logs.Discard(),
	})
}

func (f *fixture) provision(t *testing.T, username, secret string) *schema.Account {
	t.Helper()
	acct, err := f.svc.Provision(context.Background(), ProvisionRequest{
		Username: username,
		Password: secret,
		Role:     schema.RoleDoctor,
		Clinics: map[string]schema.ClinicConfig{
			"clinic_a": {Name: "Consultorio Centro", DoctorName: "Dra. Ruiz", PrimaryColor: "#0f766e"},
		},
	})
	require.NoError(t, err)
	return acct
}

func TestCanonicalLogin(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "dra.ruiz@sistema.local", f.svc.CanonicalLogin("  Dra.Ruiz "))
}

func TestLoginAuthenticateLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.provision(t, "DraRuiz", "secreto1")
	assert.Equal(t, "draruiz@sistema.local", acct.Email)

	tokens, id, err := f.svc.Login(ctx, " draruiz ", "secreto1")
	require.NoError(t, err)
	assert.Equal(t, acct.UID, id.Account.UID)
	assert.True(t, id.Account.HasClinic("clinic_a"))

	got, err := f.svc.Authenticate(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, id.SessionID, got.SessionID)

	// refresh tokens are not access tokens
	_, err = f.svc.Authenticate(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	refreshed, err := f.svc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, refreshed.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, acct.UID, id.SessionID))
	require.NoError(t, f.svc.Logout(ctx, acct.UID, id.SessionID), "logout is idempotent")

	_, err = f.svc.Authenticate(ctx, tokens.AccessToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.svc.Refresh(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "draruiz", "secreto1")

	_, _, unknown := f.svc.Login(ctx, "nadie", "secreto1")
	_, _, wrong := f.svc.Login(ctx, "draruiz", "otro-secreto")
	assert.ErrorIs(t, unknown, ErrInvalidCredentials)
	assert.ErrorIs(t, wrong, ErrInvalidCredentials)
	assert.Equal(t, unknown.Error(), wrong.Error())
}

func TestLoginLocksAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provision(t, "draruiz", "secreto1")

	for i := 0; i < maxLoginAttempts; i++ {
		_, _, err := f.svc.Login(ctx, "draruiz", "mal")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, _, err := f.svc.Login(ctx, "draruiz", "secreto1")
	assert.ErrorIs(t, err, ErrAccountLocked)

	f.mr.FastForward(lockDuration + time.Second)
	_, _, err = f.svc.Login(ctx, "draruiz", "secreto1")
	assert.NoError(t, err)
}

func TestOrphanedCredentialFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hash, err := f.hasher.Hash("secreto1")
	require.NoError(t, err)
	fields, err := schema.Credential{UID: "ghost", PasswordHash: hash}.Fields()
	require.NoError(t, err)
	_, err = f.backend.Commit(ctx, docstore.Mutation{
		Op: docstore.OpSet, Parent: docstore.CredentialsCollection, ID: "fantasma" + suffix, Fields: fields,
	})
	require.NoError(t, err)

	_, _, err = f.svc.Login(ctx, "fantasma", "secreto1")
	assert.ErrorIs(t, err, ErrOrphanedCredential)
	assert.Empty(t, f.mr.Keys(), "no session is created for an orphan")
}

func TestLoginWhileStoreUnreachable(t *testing.T) {
	f := newFixture(t)
	f.provision(t, "draruiz", "secreto1")
	f.backend.SetOnline(false)

	_, _, err := f.svc.Login(context.Background(), "draruiz", "secreto1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.provision(t, "draruiz", "secreto1")

	assert.ErrorIs(t, f.svc.ChangePassword(ctx, acct.UID, "secreto1", "corta"), ErrPasswordTooShort)
	assert.ErrorIs(t, f.svc.ChangePassword(ctx, acct.UID, "equivocada", "nuevo-secreto"), ErrWrongPassword)
	require.NoError(t, f.svc.ChangePassword(ctx, acct.UID, "secreto1", "nuevo-secreto"))

	_, _, err := f.svc.Login(ctx, "draruiz", "secreto1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = f.svc.Login(ctx, "draruiz", "nuevo-secreto")
	assert.NoError(t, err)
}

func TestProvisionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clinics := map[string]schema.ClinicConfig{"clinic_a": {Name: "Centro"}}
	f.provision(t, "draruiz", "secreto1")

	tests := []struct {
		name string
		req  ProvisionRequest
		want error
	}{
		{"taken", ProvisionRequest{Username: "DRARUIZ", Password: "secreto1", Role: schema.RoleDoctor, Clinics: clinics}, ErrUsernameTaken},
		{"bad username", ProvisionRequest{Username: "a b", Password: "secreto1", Role: schema.RoleDoctor, Clinics: clinics}, ErrInvalidUsername},
		{"bad role", ProvisionRequest{Username: "otro", Password: "secreto1", Role: "nurse", Clinics: clinics}, ErrInvalidRole},
		{"no clinics", ProvisionRequest{Username: "otro", Password: "secreto1", Role: schema.RoleAdmin}, schema.ErrNoClinics},
		{"short secret", ProvisionRequest{Username: "otro", Password: "123", Role: schema.RoleAdmin, Clinics: clinics}, ErrPasswordTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Provision(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTeardownReachesOtherNodes(t *testing.T) {
	f := newFixture(t)
	other := f.newService(t, "node-b")
	acct := f.provision(t, "draruiz", "secreto1")

	var local, remote atomic.Int32
	f.svc.OnTeardown(func(accountID, _ string) {
		if accountID == acct.UID {
			local.Add(1)
		}
	})
	other.OnTeardown(func(accountID, _ string) {
		if accountID == acct.UID {
			remote.Add(1)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- other.WatchRevocations(ctx) }()

	// the subscription may not be live yet; logout is idempotent so retry
	require.Eventually(t, func() bool {
		_ = f.svc.Logout(context.Background(), acct.UID, "s1")
		return remote.Load() > 0
	}, 2*time.Second, 20*time.Millisecond)
	assert.Positive(t, local.Load())

	cancel()
	assert.NoError(t, <-done)
}
