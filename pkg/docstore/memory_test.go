package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const patients = "users/u1/patients"

func seed(t *testing.T, m *Memory, id, created, clinic string) {
	t.Helper()
	_, err := m.Commit(context.Background(), Mutation{
		Op:     OpSet,
		Parent: patients,
		ID:     id,
		Fields: map[string]any{"name": id, "createdAt": created, "clinicId": clinic},
	})
	require.NoError(t, err)
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestMemoryQueryOrderingAndPagination(t *testing.T) {
	m := NewMemory()
	seed(t, m, "a", "2024-01-01T00:00:00.000000000Z", "clinic_a")
	seed(t, m, "b", "2024-01-03T00:00:00.000000000Z", "clinic_b")
	seed(t, m, "c", "2024-01-02T00:00:00.000000000Z", "clinic_a")
	seed(t, m, "d", "2024-01-03T00:00:00.000000000Z", "clinic_a")

	ctx := context.Background()

	all, err := m.Query(ctx, Query{Parent: patients, OrderBy: "createdAt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b", "c", "a"}, ids(all))

	page, err := m.Query(ctx, Query{Parent: patients, OrderBy: "createdAt", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b"}, ids(page))

	cur := CursorOf(page[1], "createdAt")
	next, err := m.Query(ctx, Query{Parent: patients, OrderBy: "createdAt", Limit: 2, After: &cur})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(next))

	scoped, err := m.Query(ctx, Query{
		Parent:  patients,
		OrderBy: "createdAt",
		Filters: []Filter{{Field: "clinicId", Value: "clinic_a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "a"}, ids(scoped))
}

func TestMemoryMergeIsDeep(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Commit(ctx, Mutation{Op: OpSet, Parent: "users", ID: "u1", Account: "u1", Fields: map[string]any{
		"username": "ana",
		"clinics": map[string]any{
			"clinic_a": map[string]any{"name": "Centro", "doctorName": "Doctor"},
		},
	}})
	require.NoError(t, err)

	d, err := m.Commit(ctx, Mutation{Op: OpMerge, Parent: "users", ID: "u1", Account: "u1", Fields: map[string]any{
		"clinics": map[string]any{"clinic_a": map[string]any{"doctorName": "Dra. Ruiz"}},
	}})
	require.NoError(t, err)

	clinic := d.Fields["clinics"].(map[string]any)["clinic_a"].(map[string]any)
	assert.Equal(t, "Centro", clinic["name"])
	assert.Equal(t, "Dra. Ruiz", clinic["doctorName"])
	assert.Equal(t, "ana", d.Fields["username"])
}

func TestMemoryVersionsIncrease(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.Commit(ctx, Mutation{Op: OpSet, Parent: patients, ID: "p", Fields: map[string]any{"name": "x"}})
	require.NoError(t, err)
	del, err := m.Commit(ctx, Mutation{Op: OpDelete, Parent: patients, ID: "p"})
	require.NoError(t, err)

	assert.Greater(t, del.Version, first.Version)
	_, err = m.Get(ctx, patients, "p")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryOffline(t *testing.T) {
	m := NewMemory()
	m.SetOnline(false)

	_, err := m.Commit(context.Background(), Mutation{Op: OpSet, Parent: patients, ID: "p", Fields: map[string]any{"name": "x"}})
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	m.SetOnline(true)
	_, err = m.Commit(context.Background(), Mutation{Op: OpSet, Parent: patients, ID: "p", Fields: map[string]any{"name": "x"}})
	assert.NoError(t, err)
	assert.Equal(t, 1, m.Commits())
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name    string
		m       Mutation
		wantErr bool
	}{
		{"system principal", Mutation{Op: OpSet, Parent: CredentialsCollection, ID: "x"}, false},
		{"own profile", Mutation{Op: OpMerge, Parent: UsersCollection, ID: "u1", Account: "u1"}, false},
		{"delete own profile", Mutation{Op: OpDelete, Parent: UsersCollection, ID: "u1", Account: "u1"}, true},
		{"other profile", Mutation{Op: OpMerge, Parent: UsersCollection, ID: "u2", Account: "u1"}, true},
		{"own patients", Mutation{Op: OpSet, Parent: "users/u1/patients", ID: "p", Account: "u1"}, false},
		{"foreign patients", Mutation{Op: OpSet, Parent: "users/u2/patients", ID: "p", Account: "u1"}, true},
		{"error log append", Mutation{Op: OpSet, Parent: ErrorLogsCollection, ID: "e", Account: "u1"}, false},
		{"error log delete", Mutation{Op: OpDelete, Parent: ErrorLogsCollection, ID: "e", Account: "u1"}, true},
		{"credentials", Mutation{Op: OpSet, Parent: CredentialsCollection, ID: "x", Account: "u1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.m)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPermissionDenied)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		m    Mutation
	}{
		{"document path as parent", Mutation{Op: OpSet, Parent: "users/u1", ID: "x", Fields: map[string]any{"a": 1}}},
		{"empty id", Mutation{Op: OpSet, Parent: "users", Fields: map[string]any{"a": 1}}},
		{"slash in id", Mutation{Op: OpSet, Parent: "users", ID: "a/b", Fields: map[string]any{"a": 1}}},
		{"empty patch", Mutation{Op: OpMerge, Parent: "users", ID: "u"}},
		{"dotted field", Mutation{Op: OpMerge, Parent: "users", ID: "u", Fields: map[string]any{"a.b": 1}}},
		{"reserved nested field", Mutation{Op: OpMerge, Parent: "users", ID: "u", Fields: map[string]any{"a": map[string]any{"__x": 1}}}},
		{"unknown op", Mutation{Op: "upsert", Parent: "users", ID: "u", Fields: map[string]any{"a": 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tt.m), ErrInvalidArgument)
		})
	}

	assert.NoError(t, Validate(Mutation{Op: OpDelete, Parent: "users/u1/patients", ID: "p"}))
}

func TestMemoryReject(t *testing.T) {
	m := NewMemory()
	boom := errors.New("quota")
	m.Reject = func(Mutation) error { return boom }

	_, err := m.Commit(context.Background(), Mutation{Op: OpSet, Parent: patients, ID: "p", Fields: map[string]any{"a": "b"}})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Commits())
}
