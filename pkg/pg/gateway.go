package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/bucketsmdapi/pkg/metrics"
)

// Method tags every SQL gateway call with the logical operation it
// belongs to, for the postgres_requests{method,success} histogram.
type Method string

const (
	BucketCreate     Method = "BucketCreate"
	BucketGet        Method = "BucketGet"
	BucketList       Method = "BucketList"
	BucketDeleteMove Method = "BucketDeleteMove"
	BucketDelete     Method = "BucketDelete"

	ObjectCreate     Method = "ObjectCreate"
	ObjectCreateMove Method = "ObjectCreateMove"
	ObjectGet        Method = "ObjectGet"
	ObjectList       Method = "ObjectList"
	ObjectUpdate     Method = "ObjectUpdate"
	ObjectDelete     Method = "ObjectDelete"
	ObjectDeleteMove Method = "ObjectDeleteMove"

	GarbageGet           Method = "GarbageGet"
	GarbageRefresh       Method = "GarbageRefresh"
	GarbageRecordDelete  Method = "GarbageRecordDelete"
	GarbageBatchIDGet    Method = "GarbageBatchIdGet"
	GarbageBatchIDUpdate Method = "GarbageBatchIdUpdate"
)

// Rows abstracts a result set. It matches the shape of pgx.Rows closely
// enough that a pgx-backed Conn/Tx can satisfy it directly.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close()
	Err() error
}

// CommandTag abstracts the result of Exec.
type CommandTag interface {
	RowsAffected() int64
}

// Conn is a single claimed database connection.
type Conn interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Begin(ctx context.Context) (Tx, error)
	// Release returns the connection to the pool. Safe to call more than
	// once; only the first call has effect.
	Release()
}

// Tx is a transaction opened against a claimed Conn.
type Tx interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Commit(ctx context.Context) error
	// Rollback is a no-op if Commit already succeeded.
	Rollback(ctx context.Context) error
}

// Pool claims a Conn within a bounded timeout. PgxPool is the concrete
// implementation; fake.Pool is the test double.
type Pool interface {
	Claim(ctx context.Context, timeout time.Duration) (Conn, error)
}

// Claim claims a connection from pool, observing the wait time into
// connection_claim_times{success}.
func Claim(ctx context.Context, pool Pool, timeout time.Duration) (Conn, error) {
	timer := metrics.NewTimer()
	conn, err := pool.Claim(ctx, timeout)
	timer.ObserveDurationVec(metrics.ConnectionClaimTimes, metrics.Success(err == nil))
	return conn, err
}

// Query runs sql against conn, tagged as method, observing elapsed time
// into postgres_requests{method,success}.
func Query(ctx context.Context, conn Conn, method Method, sql string, args ...any) (Rows, error) {
	timer := metrics.NewTimer()
	rows, err := conn.Query(ctx, sql, args...)
	timer.ObserveDurationVec(metrics.PostgresRequests, string(method), metrics.Success(err == nil))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return rows, nil
}

// Exec runs sql against conn, tagged as method, observing elapsed time
// into postgres_requests{method,success}.
func Exec(ctx context.Context, conn Conn, method Method, sql string, args ...any) (CommandTag, error) {
	timer := metrics.NewTimer()
	tag, err := conn.Exec(ctx, sql, args...)
	timer.ObserveDurationVec(metrics.PostgresRequests, string(method), metrics.Success(err == nil))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return tag, nil
}

// TxQuery is Query's transaction-scoped counterpart.
func TxQuery(ctx context.Context, tx Tx, method Method, sql string, args ...any) (Rows, error) {
	timer := metrics.NewTimer()
	rows, err := tx.Query(ctx, sql, args...)
	timer.ObserveDurationVec(metrics.PostgresRequests, string(method), metrics.Success(err == nil))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return rows, nil
}

// TxExec is Exec's transaction-scoped counterpart.
func TxExec(ctx context.Context, tx Tx, method Method, sql string, args ...any) (CommandTag, error) {
	timer := metrics.NewTimer()
	tag, err := tx.Exec(ctx, sql, args...)
	timer.ObserveDurationVec(metrics.PostgresRequests, string(method), metrics.Success(err == nil))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return tag, nil
}

// Schema returns the schema-qualified name "manta_bucket_<vnode>" for a
// vnode. Statements are built by concatenating this into the table name;
// values are always bound parameters, never interpolated.
func Schema(vnode uint64) string {
	return fmt.Sprintf("manta_bucket_%d", vnode)
}
