// Package fake is a minimal functional test double for pkg/pg's
// Pool/Conn/Tx/Rows interfaces. It does not parse SQL; each test wires up
// the exact sequence of Query/Exec/Begin calls it expects via function
// fields, in the spirit of an http.HandlerFunc.
package fake

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/bucketsmdapi/pkg/pg"
)

// Pool hands out a fixed Conn, or an error, from Claim.
type Pool struct {
	ConnFunc func(ctx context.Context) (pg.Conn, error)
}

func (p *Pool) Claim(ctx context.Context, timeout time.Duration) (pg.Conn, error) {
	if p.ConnFunc == nil {
		return nil, fmt.Errorf("fake.Pool: ConnFunc not set")
	}
	return p.ConnFunc(ctx)
}

// Conn is a functional stub for pg.Conn.
type Conn struct {
	QueryFunc   func(ctx context.Context, sql string, args ...any) (pg.Rows, error)
	ExecFunc    func(ctx context.Context, sql string, args ...any) (pg.CommandTag, error)
	BeginFunc   func(ctx context.Context) (pg.Tx, error)
	ReleaseFunc func()
	released    bool
}

func (c *Conn) Query(ctx context.Context, sql string, args ...any) (pg.Rows, error) {
	if c.QueryFunc == nil {
		return nil, fmt.Errorf("fake.Conn: QueryFunc not set")
	}
	return c.QueryFunc(ctx, sql, args...)
}

func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (pg.CommandTag, error) {
	if c.ExecFunc == nil {
		return nil, fmt.Errorf("fake.Conn: ExecFunc not set")
	}
	return c.ExecFunc(ctx, sql, args...)
}

func (c *Conn) Begin(ctx context.Context) (pg.Tx, error) {
	if c.BeginFunc == nil {
		return nil, fmt.Errorf("fake.Conn: BeginFunc not set")
	}
	return c.BeginFunc(ctx)
}

func (c *Conn) Release() {
	if c.released {
		return
	}
	c.released = true
	if c.ReleaseFunc != nil {
		c.ReleaseFunc()
	}
}

// Tx is a functional stub for pg.Tx.
type Tx struct {
	QueryFunc    func(ctx context.Context, sql string, args ...any) (pg.Rows, error)
	ExecFunc     func(ctx context.Context, sql string, args ...any) (pg.CommandTag, error)
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
	committed    bool
	rolledBack   bool
}

func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pg.Rows, error) {
	if t.QueryFunc == nil {
		return nil, fmt.Errorf("fake.Tx: QueryFunc not set")
	}
	return t.QueryFunc(ctx, sql, args...)
}

func (t *Tx) Exec(ctx context.Context, sql string, args ...any) (pg.CommandTag, error) {
	if t.ExecFunc == nil {
		return nil, fmt.Errorf("fake.Tx: ExecFunc not set")
	}
	return t.ExecFunc(ctx, sql, args...)
}

func (t *Tx) Commit(ctx context.Context) error {
	t.committed = true
	if t.CommitFunc == nil {
		return nil
	}
	return t.CommitFunc(ctx)
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.committed || t.rolledBack {
		return nil
	}
	t.rolledBack = true
	if t.RollbackFunc == nil {
		return nil
	}
	return t.RollbackFunc(ctx)
}

// Committed reports whether Commit was called.
func (t *Tx) Committed() bool { return t.committed }

// RolledBack reports whether Rollback ran (and Commit did not win first).
func (t *Tx) RolledBack() bool { return t.rolledBack }

// CommandTag is a fixed RowsAffected value.
type CommandTag int64

func (c CommandTag) RowsAffected() int64 { return int64(c) }

// Rows replays a fixed slice of pre-scanned rows. Each row is a slice of
// values assigned positionally into the pointers passed to Scan.
type Rows struct {
	rows []RowsRow
	pos  int
	err  error
}

// RowsRow is one row's worth of column values.
type RowsRow []any

// NewRows builds a Rows replaying the given rows in order.
func NewRows(rows ...RowsRow) *Rows {
	return &Rows{rows: rows, pos: -1}
}

// NewErrRows builds a Rows whose Err returns err immediately with no rows.
func NewErrRows(err error) *Rows {
	return &Rows{err: err, pos: -1}
}

func (r *Rows) Next() bool {
	if r.err != nil {
		return false
	}
	r.pos++
	return r.pos < len(r.rows)
}

func (r *Rows) Scan(dest ...any) error {
	if r.pos < 0 || r.pos >= len(r.rows) {
		return fmt.Errorf("fake.Rows: Scan called out of range")
	}
	row := r.rows[r.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("fake.Rows: Scan got %d dest, row has %d values", len(dest), len(row))
	}
	for i, v := range row {
		if err := assign(dest[i], v); err != nil {
			return fmt.Errorf("fake.Rows: column %d: %w", i, err)
		}
	}
	return nil
}

func (r *Rows) Close() {}

func (r *Rows) Err() error { return r.err }

// assign copies v into the value pointed to by dest, which must be a
// pointer to v's own type or to *T when v is a T (nullable column).
func assign(dest, v any) error {
	switch d := dest.(type) {
	case *string:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("value %T is not a string", v)
		}
		*d = s
	case *int64:
		n, ok := v.(int64)
		if !ok {
			return fmt.Errorf("value %T is not an int64", v)
		}
		*d = n
	case *int32:
		n, ok := v.(int32)
		if !ok {
			return fmt.Errorf("value %T is not an int32", v)
		}
		*d = n
	case *bool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("value %T is not a bool", v)
		}
		*d = b
	default:
		return assignReflect(dest, v)
	}
	return nil
}
