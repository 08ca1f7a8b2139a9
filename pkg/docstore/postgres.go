package docstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Schema creates the documents table, the version sequence and the deep
// merge function used by merge commits.
const Schema = `
CREATE SEQUENCE IF NOT EXISTS document_versions;

CREATE TABLE IF NOT EXISTS documents (
	parent     TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	version    BIGINT      NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (parent, id)
);

CREATE INDEX IF NOT EXISTS documents_parent_created_idx
	ON documents (parent, (data->>'createdAt') DESC);

CREATE INDEX IF NOT EXISTS documents_legacy_idx
	ON documents (parent, (data->>'legacyId'));

CREATE OR REPLACE FUNCTION jsonb_deep_merge(a jsonb, b jsonb) RETURNS jsonb
LANGUAGE plpgsql IMMUTABLE AS $$
BEGIN
	RETURN (
		SELECT COALESCE(jsonb_object_agg(
			COALESCE(ka, kb),
			CASE
				WHEN va IS NULL THEN vb
				WHEN vb IS NULL THEN va
				WHEN jsonb_typeof(va) = 'object' AND jsonb_typeof(vb) = 'object'
					THEN jsonb_deep_merge(va, vb)
				ELSE vb
			END
		), '{}'::jsonb)
		FROM jsonb_each(a) AS e1(ka, va)
		FULL JOIN jsonb_each(b) AS e2(kb, vb) ON ka = kb
	);
END
$$;
`

const (
	sqlGet = `SELECT data, version FROM documents WHERE parent = $1 AND id = $2`

	sqlSet = `INSERT INTO documents (parent, id, data, version)
VALUES ($1, $2, $3, nextval('document_versions'))
ON CONFLICT (parent, id) DO UPDATE
SET data = EXCLUDED.data, version = EXCLUDED.version, updated_at = now()
RETURNING data, version`

	sqlMerge = `INSERT INTO documents (parent, id, data, version)
VALUES ($1, $2, $3, nextval('document_versions'))
ON CONFLICT (parent, id) DO UPDATE
SET data = jsonb_deep_merge(documents.data, EXCLUDED.data), version = EXCLUDED.version, updated_at = now()
RETURNING data, version`

	sqlNextVersion = `SELECT nextval('document_versions')`
	sqlDelete      = `DELETE FROM documents WHERE parent = $1 AND id = $2`
)

// Postgres stores documents as JSONB rows keyed by (parent, id).
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate applies Schema. It is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("docstore migrate: %w", classify(err))
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, parent, id string) (Document, error) {
	var (
		raw     []byte
		version int64
	)
	err := p.db.QueryRowContext(ctx, sqlGet, parent, id).Scan(&raw, &version)
	if err != nil {
		return Document{}, classify(err)
	}
	return decodeRow(parent, id, raw, version)
}

func (p *Postgres) Query(ctx context.Context, q Query) ([]Document, error) {
	stmt, args := buildQuery(q)
	rows, err := p.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var (
			id      string
			raw     []byte
			version int64
		)
		if err := rows.Scan(&id, &raw, &version); err != nil {
			return nil, classify(err)
		}
		d, err := decodeRow(q.Parent, id, raw, version)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (p *Postgres) Commit(ctx context.Context, m Mutation) (Document, error) {
	if err := Validate(m); err != nil {
		return Document{}, err
	}
	if err := Authorize(m); err != nil {
		return Document{}, err
	}

	if m.Op == OpDelete {
		return p.delete(ctx, m)
	}

	payload, err := json.Marshal(m.Fields)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	stmt := sqlSet
	if m.Op == OpMerge {
		stmt = sqlMerge
	}

	var (
		raw     []byte
		version int64
	)
	if err := p.db.QueryRowContext(ctx, stmt, m.Parent, m.ID, payload).Scan(&raw, &version); err != nil {
		return Document{}, classify(err)
	}
	return decodeRow(m.Parent, m.ID, raw, version)
}

func (p *Postgres) delete(ctx context.Context, m Mutation) (Document, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Document{}, classify(err)
	}
	defer tx.Rollback()

	var version int64
	if err := tx.QueryRowContext(ctx, sqlNextVersion).Scan(&version); err != nil {
		return Document{}, classify(err)
	}
	if _, err := tx.ExecContext(ctx, sqlDelete, m.Parent, m.ID); err != nil {
		return Document{}, classify(err)
	}
	if err := tx.Commit(); err != nil {
		return Document{}, classify(err)
	}
	return Document{Parent: m.Parent, ID: m.ID, Version: version}, nil
}

// buildQuery renders q as SQL. Field names travel as parameters.
func buildQuery(q Query) (string, []any) {
	var (
		sb   strings.Builder
		args = []any{q.Parent}
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	sb.WriteString("SELECT id, data, version FROM documents WHERE parent = $1")
	for _, f := range q.Filters {
		fmt.Fprintf(&sb, " AND data->>%s::text = %s", arg(f.Field), arg(f.Value))
	}

	if q.OrderBy != "" {
		field := arg(q.OrderBy)
		order := fmt.Sprintf(`(data->>%s::text) COLLATE "C"`, field)
		fmt.Fprintf(&sb, " AND data->>%s::text IS NOT NULL", field)
		if q.After != nil {
			v, id := arg(q.After.Value), arg(q.After.ID)
			fmt.Fprintf(&sb, " AND (%s < %s OR (%s = %s AND id < %s))", order, v, order, v, id)
		}
		fmt.Fprintf(&sb, " ORDER BY %s DESC, id DESC", order)
	} else {
		if q.After != nil {
			fmt.Fprintf(&sb, " AND id < %s", arg(q.After.ID))
		}
		sb.WriteString(" ORDER BY id DESC")
	}

	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %s", arg(q.Limit))
	}
	return sb.String(), args
}

func decodeRow(parent, id string, raw []byte, version int64) (Document, error) {
	d := Document{Parent: parent, ID: id, Version: version}
	if err := json.Unmarshal(raw, &d.Fields); err != nil {
		return Document{}, fmt.Errorf("decode %s/%s: %w", parent, id, err)
	}
	return d, nil
}

// classify maps driver errors onto the package sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "42501":
			return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "53", pqErr.Code.Class() == "57":
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		case pqErr.Code.Class() == "22", pqErr.Code.Class() == "23":
			return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
