// Package bucket implements the four bucket operations: create, get,
// list, delete against manta_bucket per vnode.
package bucket

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cuemby/bucketsmdapi/pkg/mdapierror"
	"github.com/cuemby/bucketsmdapi/pkg/pg"
	"github.com/cuemby/bucketsmdapi/pkg/types"
)

// CreatePayload is the decoded createbucket request.
type CreatePayload struct {
	Owner     uuid.UUID `json:"owner"`
	Name      string    `json:"name"`
	Vnode     uint64    `json:"vnode"`
	RequestID uuid.UUID `json:"request_id"`
}

// GetPayload is the decoded getbucket request; deletebucket shares the
// same shape.
type GetPayload struct {
	Owner     uuid.UUID `json:"owner"`
	Name      string    `json:"name"`
	Vnode     uint64    `json:"vnode"`
	RequestID uuid.UUID `json:"request_id"`
}

// DeletePayload is the decoded deletebucket request.
type DeletePayload = GetPayload

// ListPayload is the decoded listbuckets request.
type ListPayload struct {
	Owner     uuid.UUID `json:"owner"`
	Vnode     uint64    `json:"vnode"`
	Prefix    *string   `json:"prefix"`
	Limit     uint64    `json:"limit"`
	Marker    *string   `json:"marker"`
	RequestID uuid.UUID `json:"request_id"`
}

// Create inserts a new bucket row. It returns mdapierror.BucketAlreadyExists
// when (owner, name) already exists in this vnode.
func Create(ctx context.Context, conn pg.Conn, p CreatePayload) (*types.Bucket, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	defer tx.Rollback(ctx)

	sql := createSQL(p.Vnode)
	rows, err := pg.TxQuery(ctx, tx, pg.BucketCreate, sql, uuid.New(), p.Owner, p.Name)
	if err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	defer rows.Close()

	b, err := scanOne(rows)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, mdapierror.BucketAlreadyExists()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	return b, nil
}

// Get fetches a bucket by (owner, name). It returns
// mdapierror.BucketNotFound when no row matches.
func Get(ctx context.Context, conn pg.Conn, p GetPayload) (*types.Bucket, error) {
	sql := getSQL(p.Vnode)
	rows, err := pg.Query(ctx, conn, pg.BucketGet, sql, p.Owner, p.Name)
	if err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	defer rows.Close()

	b, err := scanOne(rows)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, mdapierror.BucketNotFound()
	}
	return b, nil
}

// Delete moves the bucket row to its tombstone table, then deletes it,
// within one transaction. It returns the number of rows deleted (0 or 1);
// callers surface mdapierror.BucketNotFound when it is 0.
func Delete(ctx context.Context, conn pg.Conn, p DeletePayload) (int64, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, mdapierror.Postgres(err.Error())
	}
	defer tx.Rollback(ctx)

	moveSQL := insertDeletedSQL(p.Vnode)
	if _, err := pg.TxExec(ctx, tx, pg.BucketDeleteMove, moveSQL, p.Owner, p.Name); err != nil {
		return 0, mdapierror.Postgres(err.Error())
	}

	deleteSQL := deleteSQL(p.Vnode)
	tag, err := pg.TxExec(ctx, tx, pg.BucketDelete, deleteSQL, p.Owner, p.Name)
	if err != nil {
		return 0, mdapierror.Postgres(err.Error())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, mdapierror.Postgres(err.Error())
	}
	return tag.RowsAffected(), nil
}

// List returns buckets owned by p.Owner, ordered by name ascending,
// optionally filtered by prefix and/or resuming after marker. It returns
// mdapierror.LimitConstraintError when p.Limit is outside [1, 1024].
func List(ctx context.Context, conn pg.Conn, p ListPayload) ([]types.Bucket, error) {
	if p.Limit < 1 || p.Limit > 1024 {
		return nil, mdapierror.LimitConstraintError(fmt.Sprintf(
			"the listbuckets limit option must be a value between 1 and 1024. the requested limit was %d", p.Limit))
	}

	var (
		sql  string
		args []any
	)
	switch {
	case p.Marker != nil && p.Prefix != nil:
		sql = listSQLPrefixMarker(p.Vnode, p.Limit)
		args = []any{p.Owner, *p.Prefix + "%", *p.Marker}
	case p.Marker != nil:
		sql = listSQLMarker(p.Vnode, p.Limit)
		args = []any{p.Owner, *p.Marker}
	case p.Prefix != nil:
		sql = listSQLPrefix(p.Vnode, p.Limit)
		args = []any{p.Owner, *p.Prefix + "%"}
	default:
		sql = listSQL(p.Vnode, p.Limit)
		args = []any{p.Owner}
	}

	rows, err := pg.Query(ctx, conn, pg.BucketList, sql, args...)
	if err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	defer rows.Close()

	var out []types.Bucket
	for rows.Next() {
		var b types.Bucket
		if err := rows.Scan(&b.ID, &b.Owner, &b.Name, &b.Created); err != nil {
			return nil, mdapierror.Postgres(err.Error())
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	return out, nil
}

func scanOne(rows pg.Rows) (*types.Bucket, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, mdapierror.Postgres(err.Error())
		}
		return nil, nil
	}
	var b types.Bucket
	if err := rows.Scan(&b.ID, &b.Owner, &b.Name, &b.Created); err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	if rows.Next() {
		return nil, mdapierror.Postgres("query returned more than one row, expected at most 1")
	}
	return &b, nil
}

func createSQL(vnode uint64) string {
	return fmt.Sprintf(
		`INSERT INTO manta_bucket_%d.manta_bucket (id, owner, name) VALUES ($1, $2, $3) `+
			`ON CONFLICT DO NOTHING RETURNING id, owner, name, created`, vnode)
}

func getSQL(vnode uint64) string {
	return fmt.Sprintf(
		`SELECT id, owner, name, created FROM manta_bucket_%d.manta_bucket WHERE owner = $1 AND name = $2`, vnode)
}

func insertDeletedSQL(vnode uint64) string {
	return fmt.Sprintf(
		`INSERT INTO manta_bucket_%d.manta_bucket_deleted_bucket (id, owner, name, created) `+
			`SELECT id, owner, name, created FROM manta_bucket_%d.manta_bucket WHERE owner = $1 AND name = $2`,
		vnode, vnode)
}

func deleteSQL(vnode uint64) string {
	return fmt.Sprintf(`DELETE FROM manta_bucket_%d.manta_bucket WHERE owner = $1 AND name = $2`, vnode)
}

func listSQL(vnode uint64, limit uint64) string {
	return fmt.Sprintf(
		`SELECT id, owner, name, created FROM manta_bucket_%d.manta_bucket WHERE owner = $1 `+
			`ORDER BY name ASC LIMIT %d`, vnode, limit)
}

func listSQLMarker(vnode uint64, limit uint64) string {
	return fmt.Sprintf(
		`SELECT id, owner, name, created FROM manta_bucket_%d.manta_bucket WHERE owner = $1 AND name > $2 `+
			`ORDER BY name ASC LIMIT %d`, vnode, limit)
}

func listSQLPrefix(vnode uint64, limit uint64) string {
	return fmt.Sprintf(
		`SELECT id, owner, name, created FROM manta_bucket_%d.manta_bucket WHERE owner = $1 AND name LIKE $2 `+
			`ORDER BY name ASC LIMIT %d`, vnode, limit)
}

func listSQLPrefixMarker(vnode uint64, limit uint64) string {
	return fmt.Sprintf(
		`SELECT id, owner, name, created FROM manta_bucket_%d.manta_bucket `+
			`WHERE owner = $1 AND name LIKE $2 AND name > $3 ORDER BY name ASC LIMIT %d`, vnode, limit)
}
