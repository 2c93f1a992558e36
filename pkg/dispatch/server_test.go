package dispatch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/bucketsmdapi/pkg/fast"
	"github.com/cuemby/bucketsmdapi/pkg/mdapierror"
	"github.com/cuemby/bucketsmdapi/pkg/pg"
	"github.com/cuemby/bucketsmdapi/pkg/pg/fake"
)

func poolWithConn(conn pg.Conn) *fake.Pool {
	return &fake.Pool{ConnFunc: func(ctx context.Context) (pg.Conn, error) { return conn, nil }}
}

func TestHandleUnknownMethodClosesSession(t *testing.T) {
	s := NewServer(poolWithConn(&fake.Conn{}), time.Second)
	msg, err := fast.Wrap(1, "nosuchmethod", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	_, closeSession := s.handle(context.Background(), msg)
	if !closeSession {
		t.Fatal("expected unknown method to signal session close")
	}
}

func TestHandleMalformedPayloadRepliesPostgresError(t *testing.T) {
	s := NewServer(poolWithConn(&fake.Conn{}), time.Second)
	bad := fast.Message{ID: 1, Method: "getbucket", Data: json.RawMessage(`[{"owner": 123}]`)}

	reply, closeSession := s.handle(context.Background(), bad)
	if closeSession {
		t.Fatal("malformed payload for a known method must not close the session")
	}
	if len(reply) != 1 {
		t.Fatalf("got %d reply messages, want 1", len(reply))
	}

	var payload map[string]any
	if err := fast.Unwrap(reply[0], &payload); err != nil {
		t.Fatalf("Unwrap reply: %v", err)
	}
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error payload, got %+v", payload)
	}
	if errObj["name"] != string(mdapierror.KindPostgresError) {
		t.Errorf("got error kind %v, want %s", errObj["name"], mdapierror.KindPostgresError)
	}
}

func TestHandleGetBucketNotFound(t *testing.T) {
	conn := &fake.Conn{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (pg.Rows, error) {
			return fake.NewRows(), nil
		},
	}
	s := NewServer(poolWithConn(conn), time.Second)

	msg, err := fast.Wrap(1, "getbucket", map[string]any{
		"owner": uuid.New().String(), "name": "b1", "vnode": 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	reply, closeSession := s.handle(context.Background(), msg)
	if closeSession {
		t.Fatal("unexpected session close")
	}
	if len(reply) != 1 {
		t.Fatalf("got %d reply messages, want 1", len(reply))
	}
	var payload map[string]any
	if err := fast.Unwrap(reply[0], &payload); err != nil {
		t.Fatalf("Unwrap reply: %v", err)
	}
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error payload, got %+v", payload)
	}
	if errObj["name"] != string(mdapierror.KindBucketNotFound) {
		t.Errorf("got %v, want BucketNotFound", errObj["name"])
	}
}

func TestHandleClaimFailureRepliesPostgresError(t *testing.T) {
	pool := &fake.Pool{ConnFunc: func(ctx context.Context) (pg.Conn, error) {
		return nil, context.DeadlineExceeded
	}}
	s := NewServer(pool, time.Millisecond)

	msg, err := fast.Wrap(1, "getbucket", map[string]any{
		"owner": uuid.New().String(), "name": "b1", "vnode": 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	reply, closeSession := s.handle(context.Background(), msg)
	if closeSession {
		t.Fatal("unexpected session close")
	}
	if len(reply) != 1 {
		t.Fatalf("got %d reply messages, want 1", len(reply))
	}
	var payload map[string]any
	if err := fast.Unwrap(reply[0], &payload); err != nil {
		t.Fatalf("Unwrap reply: %v", err)
	}
	errObj := payload["error"].(map[string]any)
	if errObj["name"] != string(mdapierror.KindPostgresError) {
		t.Errorf("got %v, want PostgresError", errObj["name"])
	}
}

func TestHandleListBucketsEmitsOneMessagePerRow(t *testing.T) {
	conn := &fake.Conn{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (pg.Rows, error) {
			return fake.NewRows(
				fake.RowsRow{uuid.New(), uuid.New(), "b1", time.Now()},
				fake.RowsRow{uuid.New(), uuid.New(), "b2", time.Now()},
				fake.RowsRow{uuid.New(), uuid.New(), "b3", time.Now()},
			), nil
		},
	}
	s := NewServer(poolWithConn(conn), time.Second)

	msg, err := fast.Wrap(1, "listbuckets", map[string]any{
		"owner": uuid.New().String(), "vnode": 1, "limit": 10,
	})
	if err != nil {
		t.Fatal(err)
	}

	reply, closeSession := s.handle(context.Background(), msg)
	if closeSession {
		t.Fatal("unexpected session close")
	}
	if len(reply) != 3 {
		t.Fatalf("got %d reply messages, want 3 (one per row)", len(reply))
	}
	for i, rm := range reply {
		var b map[string]any
		if err := fast.Unwrap(rm, &b); err != nil {
			t.Fatalf("Unwrap reply %d: %v", i, err)
		}
		if _, ok := b["name"]; !ok {
			t.Errorf("reply %d missing name field: %+v", i, b)
		}
	}
}

func TestHandleListBucketsEmptyResultEmitsNoMessages(t *testing.T) {
	conn := &fake.Conn{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (pg.Rows, error) {
			return fake.NewRows(), nil
		},
	}
	s := NewServer(poolWithConn(conn), time.Second)

	msg, err := fast.Wrap(1, "listbuckets", map[string]any{
		"owner": uuid.New().String(), "vnode": 1, "limit": 10,
	})
	if err != nil {
		t.Fatal(err)
	}

	reply, closeSession := s.handle(context.Background(), msg)
	if closeSession {
		t.Fatal("unexpected session close")
	}
	if len(reply) != 0 {
		t.Fatalf("got %d reply messages, want 0 for an empty result", len(reply))
	}
}
