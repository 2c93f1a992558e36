// Package object implements the five object operations: create, get,
// list, update, delete against manta_bucket_object per vnode, including
// delete-by-move and the conditional-predicate gate shared by
// create/get/update/delete.
package object

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cuemby/bucketsmdapi/pkg/conditional"
	"github.com/cuemby/bucketsmdapi/pkg/mdapierror"
	"github.com/cuemby/bucketsmdapi/pkg/pg"
	"github.com/cuemby/bucketsmdapi/pkg/types"
)

// CreatePayload is the decoded createobject request. Sharks are carried
// as entered by the caller; overwrite semantics are governed by the
// conditions bundle.
type CreatePayload struct {
	Owner         uuid.UUID                    `json:"owner"`
	BucketID      uuid.UUID                    `json:"bucket_id"`
	Name          string                       `json:"name"`
	ID            uuid.UUID                    `json:"id"`
	Vnode         uint64                       `json:"vnode"`
	ContentLength int64                        `json:"content_length"`
	ContentMD5    string                       `json:"content_md5"` // base64
	ContentType   string                       `json:"content_type"`
	Headers       map[string]*string           `json:"headers"`
	Sharks        []types.StorageNodeIdentifier `json:"sharks"`
	Properties    json.RawMessage              `json:"properties,omitempty"`
	RequestID     uuid.UUID                    `json:"request_id"`
	Conditions    types.Conditions             `json:"conditions,omitempty"`
}

// GetPayload is the decoded getobject request.
type GetPayload struct {
	Owner      uuid.UUID         `json:"owner"`
	BucketID   uuid.UUID         `json:"bucket_id"`
	Name       string            `json:"name"`
	Vnode      uint64            `json:"vnode"`
	RequestID  uuid.UUID         `json:"request_id"`
	Conditions types.Conditions  `json:"conditions,omitempty"`
}

// DeletePayload is the decoded deleteobject request; same shape as Get.
type DeletePayload = GetPayload

// UpdatePayload is the decoded updateobject request.
type UpdatePayload struct {
	Owner       uuid.UUID          `json:"owner"`
	BucketID    uuid.UUID          `json:"bucket_id"`
	Name        string             `json:"name"`
	ID          uuid.UUID          `json:"id"`
	Vnode       uint64             `json:"vnode"`
	ContentType string             `json:"content_type"`
	Headers     map[string]*string `json:"headers"`
	Properties  json.RawMessage    `json:"properties,omitempty"`
	RequestID   uuid.UUID          `json:"request_id"`
	Conditions  types.Conditions   `json:"conditions,omitempty"`
}

// ListPayload is the decoded listobjects request.
type ListPayload struct {
	Owner     uuid.UUID `json:"owner"`
	BucketID  uuid.UUID `json:"bucket_id"`
	Vnode     uint64    `json:"vnode"`
	Prefix    *string   `json:"prefix"`
	Limit     uint64    `json:"limit"`
	Marker    *string   `json:"marker"`
	RequestID uuid.UUID `json:"request_id"`
}

// Create performs the conditional check (against "no row" when none
// exists), moves any current live row to its tombstone, then upserts by
// (owner, bucket_id, name). A successful overwrite carries the old row's
// id into the tombstone so it survives for GC.
func Create(ctx context.Context, conn pg.Conn, p CreatePayload) (*types.Object, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	defer tx.Rollback(ctx)

	if !conditional.IsEmpty(p.Conditions) {
		existing, err := fetchTx(ctx, tx, p.Vnode, p.Owner, p.BucketID, p.Name)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			if err := conditional.CheckAgainstMissing(p.Conditions); err != nil {
				return nil, err
			}
		} else if err := conditional.Check(p.Conditions, existing.Etag(), existing.Modified); err != nil {
			return nil, err
		}
	}

	moveSQL := insertDeletedSQL(p.Vnode)
	if _, err := pg.TxExec(ctx, tx, pg.ObjectCreateMove, moveSQL, p.Owner, p.BucketID, p.Name); err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}

	contentMD5, err := base64.StdEncoding.DecodeString(p.ContentMD5)
	if err != nil {
		return nil, mdapierror.ContentMD5(err.Error())
	}

	createSQL := createSQL(p.Vnode)
	rows, err := pg.TxQuery(ctx, tx, pg.ObjectCreate, createSQL,
		p.ID, p.Owner, p.BucketID, p.Name, p.ContentLength, contentMD5, p.ContentType,
		p.Headers, sharksToText(p.Sharks), nullableJSON(p.Properties))
	if err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	defer rows.Close()

	obj, err := scanOne(rows)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		// The INSERT...ON CONFLICT DO UPDATE always affects exactly one
		// row; an empty RETURNING here means the statement itself
		// failed silently, which should not be possible.
		return nil, mdapierror.Postgres("createobject: insert returned no row")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	return obj, nil
}

// Get fetches an object by (owner, bucket_id, name) and evaluates the
// conditional predicate, if any, against the same row returned to the
// caller.
func Get(ctx context.Context, conn pg.Conn, p GetPayload) (*types.Object, error) {
	sql := getSQL(p.Vnode)
	rows, err := pg.Query(ctx, conn, pg.ObjectGet, sql, p.Owner, p.BucketID, p.Name)
	if err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	defer rows.Close()

	obj, err := scanOne(rows)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, mdapierror.ObjectNotFound()
	}

	if !conditional.IsEmpty(p.Conditions) {
		if err := conditional.Check(p.Conditions, obj.Etag(), obj.Modified); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// Update runs the same conditional check as Get, then applies
// content_type/headers/properties and returns the updated row.
func Update(ctx context.Context, conn pg.Conn, p UpdatePayload) (*types.Object, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	defer tx.Rollback(ctx)

	if !conditional.IsEmpty(p.Conditions) {
		existing, err := fetchTx(ctx, tx, p.Vnode, p.Owner, p.BucketID, p.Name)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, mdapierror.ObjectNotFound()
		}
		if err := conditional.Check(p.Conditions, existing.Etag(), existing.Modified); err != nil {
			return nil, err
		}
	}

	sql := updateSQL(p.Vnode)
	rows, err := pg.TxQuery(ctx, tx, pg.ObjectUpdate, sql,
		p.ContentType, p.Headers, nullableJSON(p.Properties), p.Owner, p.BucketID, p.Name)
	if err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	defer rows.Close()

	obj, err := scanOne(rows)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, mdapierror.ObjectNotFound()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	return obj, nil
}

// Delete performs the conditional check, moves the live row to its
// tombstone, then deletes it, returning the deleted row summary.
func Delete(ctx context.Context, conn pg.Conn, p DeletePayload) (*types.DeleteObjectResult, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	defer tx.Rollback(ctx)

	if !conditional.IsEmpty(p.Conditions) {
		existing, err := fetchTx(ctx, tx, p.Vnode, p.Owner, p.BucketID, p.Name)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, mdapierror.ObjectNotFound()
		}
		if err := conditional.Check(p.Conditions, existing.Etag(), existing.Modified); err != nil {
			return nil, err
		}
	}

	moveSQL := insertDeletedSQL(p.Vnode)
	if _, err := pg.TxExec(ctx, tx, pg.ObjectDeleteMove, moveSQL, p.Owner, p.BucketID, p.Name); err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}

	deleteSQL := deleteSQL(p.Vnode)
	rows, err := pg.TxQuery(ctx, tx, pg.ObjectDelete, deleteSQL, p.Owner, p.BucketID, p.Name)
	if err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, mdapierror.Postgres(err.Error())
		}
		return nil, mdapierror.ObjectNotFound()
	}

	var res types.DeleteObjectResult
	var sharkCount *int32
	if err := rows.Scan(&res.ID, &res.Owner, &res.BucketID, &res.Name, &res.ContentLength, &sharkCount); err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	if sharkCount != nil {
		res.SharkCount = *sharkCount
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	return &res, nil
}

// List returns objects in bucket_id owned by p.Owner, ordered by name
// ascending, optionally filtered by prefix and/or resuming after marker.
func List(ctx context.Context, conn pg.Conn, p ListPayload) ([]types.Object, error) {
	if p.Limit < 1 || p.Limit > 1024 {
		return nil, mdapierror.LimitConstraintError(fmt.Sprintf(
			"the listobjects limit option must be a value between 1 and 1024. the requested limit was %d", p.Limit))
	}

	var (
		sql  string
		args []any
	)
	switch {
	case p.Marker != nil && p.Prefix != nil:
		sql = listSQLPrefixMarker(p.Vnode, p.Limit)
		args = []any{p.Owner, p.BucketID, *p.Prefix + "%", *p.Marker}
	case p.Marker != nil:
		sql = listSQLMarker(p.Vnode, p.Limit)
		args = []any{p.Owner, p.BucketID, *p.Marker}
	case p.Prefix != nil:
		sql = listSQLPrefix(p.Vnode, p.Limit)
		args = []any{p.Owner, p.BucketID, *p.Prefix + "%"}
	default:
		sql = listSQL(p.Vnode, p.Limit)
		args = []any{p.Owner, p.BucketID}
	}

	rows, err := pg.Query(ctx, conn, pg.ObjectList, sql, args...)
	if err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	defer rows.Close()

	var out []types.Object
	for rows.Next() {
		obj, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *obj)
	}
	if err := rows.Err(); err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	return out, nil
}

// fetchTx is the conditional-evaluator's own fetch: it runs the exact
// getobject query inside the caller's transaction so create/update/delete
// see a consistent row.
func fetchTx(ctx context.Context, tx pg.Tx, vnode uint64, owner, bucketID uuid.UUID, name string) (*types.Object, error) {
	sql := getSQL(vnode)
	rows, err := pg.TxQuery(ctx, tx, pg.ObjectGet, sql, owner, bucketID, name)
	if err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	defer rows.Close()
	return scanOne(rows)
}

func scanOne(rows pg.Rows) (*types.Object, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, mdapierror.Postgres(err.Error())
		}
		return nil, nil
	}
	obj, err := scanRow(rows)
	if err != nil {
		return nil, err
	}
	if rows.Next() {
		return nil, mdapierror.Postgres("query returned more than one row, expected at most 1")
	}
	return obj, nil
}

func scanRow(rows pg.Rows) (*types.Object, error) {
	var (
		obj        types.Object
		sharksText []string
		properties json.RawMessage
	)
	if err := rows.Scan(
		&obj.ID, &obj.Owner, &obj.BucketID, &obj.Name, &obj.Created, &obj.Modified,
		&obj.ContentLength, &obj.ContentMD5, &obj.ContentType, &obj.Headers, &sharksText, &properties,
	); err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	obj.Sharks = textToSharks(sharksText)
	if len(properties) > 0 {
		obj.Properties = properties
	}
	return &obj, nil
}

// sharksToText renders sharks as "<datacenter>:<manta_storage_id>"
// strings for the text[] sharks column, preserving order.
func sharksToText(sharks []types.StorageNodeIdentifier) []string {
	out := make([]string, len(sharks))
	for i, s := range sharks {
		out[i] = s.Datacenter + ":" + s.MantaStorageID
	}
	return out
}

// textToSharks is sharksToText's inverse.
func textToSharks(text []string) []types.StorageNodeIdentifier {
	out := make([]types.StorageNodeIdentifier, len(text))
	for i, s := range text {
		dc, id, _ := strings.Cut(s, ":")
		out[i] = types.StorageNodeIdentifier{Datacenter: dc, MantaStorageID: id}
	}
	return out
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func insertDeletedSQL(vnode uint64) string {
	return fmt.Sprintf(
		`INSERT INTO manta_bucket_%d.manta_bucket_deleted_object `+
			`(id, owner, bucket_id, name, created, modified, content_length, content_md5, content_type, headers, sharks, properties) `+
			`SELECT id, owner, bucket_id, name, created, modified, content_length, content_md5, content_type, headers, sharks, properties `+
			`FROM manta_bucket_%d.manta_bucket_object WHERE owner = $1 AND bucket_id = $2 AND name = $3`,
		vnode, vnode)
}

func createSQL(vnode uint64) string {
	return fmt.Sprintf(
		`INSERT INTO manta_bucket_%d.manta_bucket_object `+
			`(id, owner, bucket_id, name, content_length, content_md5, content_type, headers, sharks, properties) `+
			`VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) `+
			`ON CONFLICT (owner, bucket_id, name) DO UPDATE SET `+
			`id = EXCLUDED.id, created = current_timestamp, modified = current_timestamp, `+
			`content_length = EXCLUDED.content_length, content_md5 = EXCLUDED.content_md5, `+
			`content_type = EXCLUDED.content_type, headers = EXCLUDED.headers, `+
			`sharks = EXCLUDED.sharks, properties = EXCLUDED.properties `+
			`RETURNING id, owner, bucket_id, name, created, modified, content_length, content_md5, content_type, headers, sharks, properties`,
		vnode)
}

func getSQL(vnode uint64) string {
	return fmt.Sprintf(
		`SELECT id, owner, bucket_id, name, created, modified, content_length, content_md5, content_type, headers, sharks, properties `+
			`FROM manta_bucket_%d.manta_bucket_object WHERE owner = $1 AND bucket_id = $2 AND name = $3`, vnode)
}

func updateSQL(vnode uint64) string {
	return fmt.Sprintf(
		`UPDATE manta_bucket_%d.manta_bucket_object SET content_type = $1, headers = $2, properties = $3, `+
			`modified = current_timestamp WHERE owner = $4 AND bucket_id = $5 AND name = $6 `+
			`RETURNING id, owner, bucket_id, name, created, modified, content_length, content_md5, content_type, headers, sharks, properties`,
		vnode)
}

func deleteSQL(vnode uint64) string {
	return fmt.Sprintf(
		`DELETE FROM manta_bucket_%d.manta_bucket_object WHERE owner = $1 AND bucket_id = $2 AND name = $3 `+
			`RETURNING id, owner, bucket_id, name, content_length, array_length(sharks, 1) AS shark_count`, vnode)
}

func listSQL(vnode uint64, limit uint64) string {
	return fmt.Sprintf(
		`SELECT id, owner, bucket_id, name, created, modified, content_length, content_md5, content_type, headers, sharks, properties `+
			`FROM manta_bucket_%d.manta_bucket_object WHERE owner = $1 AND bucket_id = $2 ORDER BY name ASC LIMIT %d`, vnode, limit)
}

func listSQLMarker(vnode uint64, limit uint64) string {
	return fmt.Sprintf(
		`SELECT id, owner, bucket_id, name, created, modified, content_length, content_md5, content_type, headers, sharks, properties `+
			`FROM manta_bucket_%d.manta_bucket_object WHERE owner = $1 AND bucket_id = $2 AND name > $3 ORDER BY name ASC LIMIT %d`,
		vnode, limit)
}

func listSQLPrefix(vnode uint64, limit uint64) string {
	return fmt.Sprintf(
		`SELECT id, owner, bucket_id, name, created, modified, content_length, content_md5, content_type, headers, sharks, properties `+
			`FROM manta_bucket_%d.manta_bucket_object WHERE owner = $1 AND bucket_id = $2 AND name LIKE $3 ORDER BY name ASC LIMIT %d`,
		vnode, limit)
}

func listSQLPrefixMarker(vnode uint64, limit uint64) string {
	return fmt.Sprintf(
		`SELECT id, owner, bucket_id, name, created, modified, content_length, content_md5, content_type, headers, sharks, properties `+
			`FROM manta_bucket_%d.manta_bucket_object WHERE owner = $1 AND bucket_id = $2 AND name LIKE $3 AND name > $4 `+
			`ORDER BY name ASC LIMIT %d`, vnode, limit)
}
