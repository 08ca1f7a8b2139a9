package docstore

import (
	"context"
	"database/sql"
	"net"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func TestPostgresGet(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(sqlGet)).
		WithArgs(patients, "p1").
		WillReturnRows(sqlmock.NewRows([]string{"data", "version"}).AddRow([]byte(`{"name":"Ana"}`), int64(9)))

	d, err := p.Get(context.Background(), patients, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", d.String("name"))
	assert.Equal(t, int64(9), d.Version)

	mock.ExpectQuery(regexp.QuoteMeta(sqlGet)).
		WithArgs(patients, "nope").
		WillReturnError(sql.ErrNoRows)

	_, err = p.Get(context.Background(), patients, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCommitMerge(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(sqlMerge)).
		WithArgs(patients, "p1", []byte(`{"phone":"555"}`)).
		WillReturnRows(sqlmock.NewRows([]string{"data", "version"}).AddRow([]byte(`{"name":"Ana","phone":"555"}`), int64(12)))

	d, err := p.Commit(context.Background(), Mutation{
		Op:      OpMerge,
		Parent:  patients,
		ID:      "p1",
		Fields:  map[string]any{"phone": "555"},
		Account: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", d.String("name"))
	assert.Equal(t, int64(12), d.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCommitDelete(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(sqlNextVersion)).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(40)))
	mock.ExpectExec(regexp.QuoteMeta(sqlDelete)).
		WithArgs(patients, "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	d, err := p.Commit(context.Background(), Mutation{Op: OpDelete, Parent: patients, ID: "p1", Account: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(40), d.Version)
	assert.Nil(t, d.Fields)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCommitDeniedBeforeSQL(t *testing.T) {
	p, mock := newMock(t)

	_, err := p.Commit(context.Background(), Mutation{
		Op:      OpSet,
		Parent:  "users/other/patients",
		ID:      "p1",
		Fields:  map[string]any{"name": "x"},
		Account: "u1",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQuery(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectQuery(`SELECT id, data, version FROM documents WHERE parent = \$1 AND data->>\$2::text = \$3`).
		WithArgs(patients, "clinicId", "clinic_a", "createdAt", "2024-01-02", "c", 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "version"}).
			AddRow("b", []byte(`{"createdAt":"2024-01-01"}`), int64(3)))

	docs, err := p.Query(context.Background(), Query{
		Parent:  patients,
		OrderBy: "createdAt",
		Limit:   2,
		After:   &Cursor{Value: "2024-01-02", ID: "c"},
		Filters: []Filter{{Field: "clinicId", Value: "clinic_a"}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, patients, docs[0].Parent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildQuery(t *testing.T) {
	stmt, args := buildQuery(Query{Parent: patients, OrderBy: "date", Limit: 20})

	assert.Equal(t,
		`SELECT id, data, version FROM documents WHERE parent = $1 AND data->>$2::text IS NOT NULL ORDER BY (data->>$2::text) COLLATE "C" DESC, id DESC LIMIT $3`,
		stmt)
	assert.Equal(t, []any{patients, "date", 20}, args)
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(&pq.Error{Code: "08006"}), ErrUnavailable)
	assert.ErrorIs(t, classify(&pq.Error{Code: "42501"}), ErrPermissionDenied)
	assert.ErrorIs(t, classify(&pq.Error{Code: "22P02"}), ErrInvalidArgument)
	assert.ErrorIs(t, classify(&net.OpError{Op: "dial", Err: assert.AnError}), ErrUnavailable)
	assert.ErrorIs(t, classify(sql.ErrNoRows), ErrNotFound)
	assert.NoError(t, classify(nil))
}
