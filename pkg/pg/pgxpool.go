package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool adapts a *pgxpool.Pool to the Pool interface. It is the only
// concrete connection-pool implementation this repository owns; the
// backend discovery and load-balancing behind it are pgxpool's own
// concern, not reimplemented here.
type PgxPool struct {
	pool *pgxpool.Pool
}

// NewPgxPool parses dsn and opens a pool, registering the hstore codec
// every claimed connection needs to scan manta_bucket_object.headers
// directly into map[string]*string.
func NewPgxPool(ctx context.Context, dsn string) (*PgxPool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	cfg.AfterConnect = registerHstore

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pg: open pool: %w", err)
	}
	return &PgxPool{pool: pool}, nil
}

// registerHstore looks up the hstore extension type's OID on conn and
// registers its codec, since hstore (unlike built-in types) has no
// static OID to register ahead of time.
func registerHstore(ctx context.Context, conn *pgx.Conn) error {
	var oid uint32
	if err := conn.QueryRow(ctx, `SELECT 'hstore'::regtype::oid`).Scan(&oid); err != nil {
		return fmt.Errorf("pg: resolve hstore oid: %w", err)
	}
	conn.TypeMap().RegisterType(&pgtype.Type{Name: "hstore", OID: oid, Codec: pgtype.HstoreCodec{}})
	return nil
}

// Claim acquires a pooled connection, bounding the wait to timeout.
func (p *PgxPool) Claim(ctx context.Context, timeout time.Duration) (Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("pg: acquire: %w", err)
	}
	return &pgxConn{c: c}, nil
}

// Close releases every idle connection and waits for in-use ones to be
// returned. Intended for graceful shutdown only.
func (p *PgxPool) Close() {
	p.pool.Close()
}

// pgxConn adapts *pgxpool.Conn to Conn.
type pgxConn struct {
	c        *pgxpool.Conn
	released bool
}

func (c *pgxConn) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return c.c.Query(ctx, sql, args...)
}

func (c *pgxConn) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	tag, err := c.c.Exec(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return tag, nil
}

func (c *pgxConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.c.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxTx{tx: tx}, nil
}

func (c *pgxConn) Release() {
	if c.released {
		return
	}
	c.released = true
	c.c.Release()
}

// pgxTx adapts pgx.Tx to Tx.
type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return t.tx.Query(ctx, sql, args...)
}

func (t *pgxTx) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return tag, nil
}

func (t *pgxTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgxTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err == pgx.ErrTxClosed {
		return nil
	}
	return err
}
