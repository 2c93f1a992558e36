// Package gc implements the garbage-collection batch protocol:
// getgcbatch samples tombstoned rows across every vnode schema via the
// GARBAGE_BATCH materialized view, and deletegcbatch permanently removes
// the rows a given batch names, gated on the batch token still being
// current so a delete has at-most-once effect.
package gc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cuemby/bucketsmdapi/pkg/mdapierror"
	"github.com/cuemby/bucketsmdapi/pkg/pg"
	"github.com/cuemby/bucketsmdapi/pkg/types"
)

// DeleteBatchPayload is the decoded deletegcbatch request.
type DeleteBatchPayload struct {
	BatchID   uuid.UUID `json:"batch_id"`
	RequestID uuid.UUID `json:"request_id"`
}

const (
	garbageSelectSQL  = `SELECT schma, id, owner, bucket_id, name, created, modified, content_length, content_md5, content_type, headers, sharks, properties FROM GARBAGE_BATCH`
	garbageRefreshSQL = `REFRESH MATERIALIZED VIEW GARBAGE_BATCH`
	batchIDGetSQL     = `SELECT batch_id FROM garbage_batch_id WHERE id = 1`
	batchIDUpdateSQL  = `UPDATE garbage_batch_id SET batch_id = $1 WHERE id = 1`
	garbageDeleteSQL  = `DELETE FROM %s.manta_bucket_deleted_object WHERE owner = $1 AND bucket_id = $2 AND name = $3 AND id = $4`
)

// garbageRow is one sampled tombstoned object, plus the vnode schema it
// lives in so DeleteBatch can target the right deleted-object table.
type garbageRow struct {
	schema string
	obj    types.Object
}

// GetBatch samples up to the view's configured row count of tombstoned
// objects across all vnode schemas. If the view is empty it is refreshed
// once and re-selected, since a prior deletegcbatch may have just emptied
// it. BatchID is nil when the batch is empty, otherwise the current token
// from garbage_batch_id; two calls with no intervening delete return the
// same token.
func GetBatch(ctx context.Context, conn pg.Conn) (*types.GarbageBatch, error) {
	rows, err := selectGarbage(ctx, conn)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		if _, err := pg.Exec(ctx, conn, pg.GarbageRefresh, garbageRefreshSQL); err != nil {
			return nil, mdapierror.Postgres(err.Error())
		}
		rows, err = selectGarbage(ctx, conn)
		if err != nil {
			return nil, err
		}
	}

	batch := &types.GarbageBatch{Garbage: make([]types.Object, len(rows))}
	for i, r := range rows {
		batch.Garbage[i] = r.obj
	}
	if len(rows) == 0 {
		return batch, nil
	}

	id, err := batchID(ctx, conn)
	if err != nil {
		return nil, err
	}
	batch.BatchID = &id
	return batch, nil
}

// DeleteBatch permanently deletes the tombstoned rows currently sampled
// by GARBAGE_BATCH, provided p.BatchID still matches the live token in
// garbage_batch_id. A stale token is a no-op: some other caller already
// consumed this batch and rotated the token, so this request's view of
// the batch is no longer valid. Either way the returned string is "ok".
func DeleteBatch(ctx context.Context, conn pg.Conn, p DeleteBatchPayload) (string, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return "", mdapierror.Postgres(err.Error())
	}
	defer tx.Rollback(ctx)

	current, err := batchIDTx(ctx, tx)
	if err != nil {
		return "", err
	}
	if current != p.BatchID {
		return "ok", tx.Commit(ctx)
	}

	rows, err := selectGarbageTx(ctx, tx)
	if err != nil {
		return "", err
	}
	for _, r := range rows {
		sql := garbageRecordDeleteSQL(r.schema)
		if _, err := pg.TxExec(ctx, tx, pg.GarbageRecordDelete, sql, r.obj.Owner, r.obj.BucketID, r.obj.Name, r.obj.ID); err != nil {
			return "", mdapierror.Postgres(err.Error())
		}
	}

	if _, err := pg.TxExec(ctx, tx, pg.GarbageRefresh, garbageRefreshSQL); err != nil {
		return "", mdapierror.Postgres(err.Error())
	}

	next := uuid.New()
	if _, err := pg.TxExec(ctx, tx, pg.GarbageBatchIDUpdate, batchIDUpdateSQL, next); err != nil {
		return "", mdapierror.Postgres(err.Error())
	}

	if err := tx.Commit(ctx); err != nil {
		return "", mdapierror.Postgres(err.Error())
	}
	return "ok", nil
}

func batchID(ctx context.Context, conn pg.Conn) (uuid.UUID, error) {
	rows, err := pg.Query(ctx, conn, pg.GarbageBatchIDGet, batchIDGetSQL)
	if err != nil {
		return uuid.UUID{}, mdapierror.Postgres(err.Error())
	}
	defer rows.Close()
	return scanBatchID(rows)
}

func batchIDTx(ctx context.Context, tx pg.Tx) (uuid.UUID, error) {
	rows, err := pg.TxQuery(ctx, tx, pg.GarbageBatchIDGet, batchIDGetSQL)
	if err != nil {
		return uuid.UUID{}, mdapierror.Postgres(err.Error())
	}
	defer rows.Close()
	return scanBatchID(rows)
}

func scanBatchID(rows pg.Rows) (uuid.UUID, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return uuid.UUID{}, mdapierror.Postgres(err.Error())
		}
		return uuid.UUID{}, mdapierror.Postgres("garbage_batch_id: expected exactly one row, got none")
	}
	var id uuid.UUID
	if err := rows.Scan(&id); err != nil {
		return uuid.UUID{}, mdapierror.Postgres(err.Error())
	}
	if rows.Next() {
		return uuid.UUID{}, mdapierror.Postgres("garbage_batch_id: expected exactly one row, got more than one")
	}
	return id, nil
}

func selectGarbage(ctx context.Context, conn pg.Conn) ([]garbageRow, error) {
	rows, err := pg.Query(ctx, conn, pg.GarbageGet, garbageSelectSQL)
	if err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	defer rows.Close()
	return scanGarbage(rows)
}

func selectGarbageTx(ctx context.Context, tx pg.Tx) ([]garbageRow, error) {
	rows, err := pg.TxQuery(ctx, tx, pg.GarbageGet, garbageSelectSQL)
	if err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	defer rows.Close()
	return scanGarbage(rows)
}

func scanGarbage(rows pg.Rows) ([]garbageRow, error) {
	var out []garbageRow
	for rows.Next() {
		var (
			r          garbageRow
			sharksText []string
			properties json.RawMessage
		)
		if err := rows.Scan(
			&r.schema, &r.obj.ID, &r.obj.Owner, &r.obj.BucketID, &r.obj.Name, &r.obj.Created, &r.obj.Modified,
			&r.obj.ContentLength, &r.obj.ContentMD5, &r.obj.ContentType, &r.obj.Headers, &sharksText, &properties,
		); err != nil {
			return nil, mdapierror.Postgres(err.Error())
		}
		r.obj.Sharks = textToSharks(sharksText)
		if len(properties) > 0 {
			r.obj.Properties = properties
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mdapierror.Postgres(err.Error())
	}
	return out, nil
}

func textToSharks(text []string) []types.StorageNodeIdentifier {
	out := make([]types.StorageNodeIdentifier, len(text))
	for i, s := range text {
		dc, id, _ := strings.Cut(s, ":")
		out[i] = types.StorageNodeIdentifier{Datacenter: dc, MantaStorageID: id}
	}
	return out
}

func garbageRecordDeleteSQL(schema string) string {
	return fmt.Sprintf(garbageDeleteSQL, schema)
}
