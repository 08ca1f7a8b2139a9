package authorize

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/consultorio_backend/pkg/reqctx"
)

func TestDefaultPolicies(t *testing.T) {
	a, err := New(Config{})
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		role   Role
		object Resource
		action Action
		want   bool
	}{
		{RoleDoctor, ResourcePatient, ActionCreate, true},
		{RoleDoctor, ResourcePatient, ActionDelete, true},
		{RoleDoctor, ResourceClinicalEvent, ActionUpdate, true},
		{RoleDoctor, ResourceReport, ActionExecute, true},
		{RoleDoctor, ResourceProfile, ActionUpdate, true},
		{RoleDoctor, ResourceImport, ActionExecute, false},
		{RoleDoctor, ResourceClinic, ActionDelete, false},
		{RoleAdmin, ResourceImport, ActionExecute, true},
		{RoleAdmin, ResourcePatient, ActionList, true},
		{RoleAdmin, ResourceSync, ActionRead, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.object)+"/"+string(tt.action), func(t *testing.T) {
			got, err := a.Enforce(ctx, tt.role, tt.object, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnforceRejectsUnknownArguments(t *testing.T) {
	a, err := New(Config{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = a.Enforce(ctx, "nurse", ResourcePatient, ActionRead)
	assert.ErrorIs(t, err, ErrInvalidArgs)
	_, err = a.Enforce(ctx, RoleDoctor, "wallet", ActionRead)
	assert.ErrorIs(t, err, ErrInvalidArgs)
	_, err = a.Enforce(ctx, RoleDoctor, ResourcePatient, "grant")
	assert.ErrorIs(t, err, ErrInvalidArgs)

	assert.ErrorIs(t, a.MustEnforce(ctx, RoleDoctor, ResourceImport, ActionExecute), ErrForbidden)
}

func TestDenyOverridesInheritedAllow(t *testing.T) {
	a, err := New(Config{})
	require.NoError(t, err)
	require.NoError(t, a.Seed([]PermissionPolicy{
		{RoleAdmin, ResourcePatient, ActionDelete, EffectDeny},
	}, nil))

	ok, err := a.Enforce(context.Background(), RoleAdmin, ResourcePatient, ActionDelete)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, a.Seed([]PermissionPolicy{{RoleAdmin, ResourcePatient, ActionDelete, "maybe"}}, nil), ErrInvalidArgs)
}

func TestPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.csv")
	require.NoError(t, os.WriteFile(path, []byte("p, doctor, patient, read, allow\n"), 0o644))

	a, err := New(Config{PolicyPath: path})
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := a.Enforce(ctx, RoleDoctor, ResourcePatient, ActionRead)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Enforce(ctx, RoleDoctor, ResourcePatient, ActionDelete)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckUsesPrincipalRole(t *testing.T) {
	a, err := New(Config{})
	require.NoError(t, err)

	var buf bytes.Buffer
	audited := NewAuditedAuthorization(a, slog.New(slog.NewTextHandler(&buf, nil)))

	assert.ErrorIs(t, Check(context.Background(), audited, ResourcePatient, ActionRead), ErrForbidden)

	ctx := reqctx.WithPrincipal(context.Background(), &reqctx.Principal{AccountID: "u1", Role: "doctor"})
	assert.NoError(t, Check(ctx, audited, ResourcePatient, ActionRead))
	assert.ErrorIs(t, Check(ctx, audited, ResourceImport, ActionExecute), ErrForbidden)
	assert.Contains(t, buf.String(), "account_id=u1")
}
