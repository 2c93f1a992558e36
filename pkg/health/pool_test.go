package health_test

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/bucketsmdapi/pkg/health"
	"github.com/cuemby/bucketsmdapi/pkg/pg"
	"github.com/cuemby/bucketsmdapi/pkg/pg/fake"
)

func TestPoolCheckerHealthy(t *testing.T) {
	pool := &fake.Pool{ConnFunc: func(ctx context.Context) (pg.Conn, error) {
		return &fake.Conn{}, nil
	}}
	c := health.NewPoolChecker(pool, time.Second)

	res := c.Check(context.Background())
	if !res.Healthy {
		t.Errorf("expected healthy, got %+v", res)
	}
	if c.Type() != health.CheckTypePostgres {
		t.Errorf("got %v", c.Type())
	}
}

func TestPoolCheckerUnhealthyOnClaimFailure(t *testing.T) {
	pool := &fake.Pool{ConnFunc: func(ctx context.Context) (pg.Conn, error) {
		return nil, context.DeadlineExceeded
	}}
	c := health.NewPoolChecker(pool, time.Millisecond)

	res := c.Check(context.Background())
	if res.Healthy {
		t.Error("expected unhealthy on claim failure")
	}
}
