package health

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/bucketsmdapi/pkg/pg"
)

// PoolChecker probes liveness by claiming and immediately releasing a
// connection from the Postgres pool, the way the teacher's HTTPChecker
// probed a container's HTTP endpoint.
type PoolChecker struct {
	Pool    pg.Pool
	Timeout time.Duration
}

// NewPoolChecker builds a PoolChecker bounding each claim to timeout.
func NewPoolChecker(pool pg.Pool, timeout time.Duration) *PoolChecker {
	return &PoolChecker{Pool: pool, Timeout: timeout}
}

// Check claims a connection and releases it immediately; it never runs a
// query, since claim success already establishes the pool is serving
// connections.
func (p *PoolChecker) Check(ctx context.Context) Result {
	start := time.Now()

	conn, err := pg.Claim(ctx, p.Pool, p.Timeout)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("failed to claim postgres connection: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	conn.Release()

	return Result{
		Healthy:   true,
		Message:   "claimed postgres connection",
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type.
func (p *PoolChecker) Type() CheckType {
	return CheckTypePostgres
}
