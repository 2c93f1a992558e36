package fast

import (
	"bytes"
	"encoding/json"
	"testing"
)

type samplePayload struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg, err := Wrap(42, "createbucket", samplePayload{Owner: "u1", Name: "b1"})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, msg); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.ID != msg.ID || decoded.Method != msg.Method {
		t.Fatalf("decoded = %+v, want %+v", decoded, msg)
	}

	var got samplePayload
	if err := Unwrap(decoded, &got); err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if got != (samplePayload{Owner: "u1", Name: "b1"}) {
		t.Errorf("Unwrap = %+v, want {u1 b1}", got)
	}
}

func TestDecodeMultipleFramesOnOneStream(t *testing.T) {
	var buf bytes.Buffer
	m1, _ := Wrap(1, "getbucket", samplePayload{Owner: "a"})
	m2, _ := Wrap(2, "getbucket", samplePayload{Owner: "b"})
	_ = Encode(&buf, m1)
	_ = Encode(&buf, m2)

	d1, err := Decode(&buf)
	if err != nil || d1.ID != 1 {
		t.Fatalf("first decode = %+v, err=%v", d1, err)
	}
	d2, err := Decode(&buf)
	if err != nil || d2.ID != 2 {
		t.Fatalf("second decode = %+v, err=%v", d2, err)
	}
}

func TestDecodeRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := Decode(&buf); err == nil {
		t.Error("expected error for oversized frame length")
	}
}

func TestUnwrapRejectsEmptyArray(t *testing.T) {
	m := Message{ID: 1, Method: "x", Data: []byte("[]")}
	var v samplePayload
	if err := Unwrap(m, &v); err == nil {
		t.Error("expected error for empty data array")
	}
}

func TestEndBuildsEmptyArrayFrame(t *testing.T) {
	m := End(7, "listbuckets")
	if m.ID != 7 || m.Method != "listbuckets" {
		t.Fatalf("got %+v, want id=7 method=listbuckets", m)
	}
	if string(m.Data) != "[]" {
		t.Errorf("got Data=%s, want []", m.Data)
	}
	// An End frame must itself survive the wire round trip.
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.ID != m.ID || string(decoded.Data) != "[]" {
		t.Errorf("decoded = %+v, want matching End frame", decoded)
	}
}

func TestPeekFieldFindsTopLevelField(t *testing.T) {
	m, err := Wrap(1, "getbucket", map[string]any{
		"owner": "u1", "request_id": "abc-123",
	})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	got, ok := PeekField(m, "request_id")
	if !ok {
		t.Fatal("expected request_id to be found")
	}
	if got != "abc-123" {
		t.Errorf("got %q, want abc-123", got)
	}
}

func TestPeekFieldMissingField(t *testing.T) {
	m, err := Wrap(1, "getbucket", map[string]any{"owner": "u1"})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if _, ok := PeekField(m, "request_id"); ok {
		t.Error("expected request_id to be absent")
	}
}

func TestPeekFieldEmptyPayload(t *testing.T) {
	m := Message{ID: 1, Method: "x", Data: json.RawMessage("[]")}
	if _, ok := PeekField(m, "request_id"); ok {
		t.Error("expected no field found in an empty payload array")
	}
}

func TestPeekFieldNonStringValue(t *testing.T) {
	m, err := Wrap(1, "getbucket", map[string]any{"vnode": 1})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if _, ok := PeekField(m, "vnode"); ok {
		t.Error("expected a non-string field to not be returned as a string")
	}
}
