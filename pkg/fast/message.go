package fast

import (
	"encoding/json"
	"fmt"
)

// MaxFrameSize bounds a single frame's body to guard against a hostile or
// broken peer claiming an unbounded length.
const MaxFrameSize = 64 * 1024 * 1024

// Message is one Fast frame: a request or a response.
type Message struct {
	ID     uint32
	Method string
	Data   json.RawMessage // the raw one-element JSON array
}

// wireMessage is the on-the-wire JSON shape.
type wireMessage struct {
	ID     uint32          `json:"id"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"d"`
}

// Wrap builds a request/response Message whose "d" field is the
// one-element array [payload], preserving the Fast outer-array
// convention so handler code never has to think about it.
func Wrap(id uint32, method string, payload any) (Message, error) {
	inner, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("fast: marshal payload: %w", err)
	}
	arr := append(append([]byte("["), inner...), ']')
	return Message{ID: id, Method: method, Data: arr}, nil
}

// Unwrap decodes m's one-element "d" array into v.
func Unwrap(m Message, v any) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(m.Data, &arr); err != nil {
		return fmt.Errorf("fast: data field is not a JSON array: %w", err)
	}
	if len(arr) == 0 {
		return fmt.Errorf("fast: data field is an empty array")
	}
	return json.Unmarshal(arr[0], v)
}

// End builds the terminal frame for request id/method: a message whose
// "d" field is the empty array. A request's reply is zero or more data
// messages built with Wrap, always followed by exactly one End frame
// marking that no further messages for id are coming.
func End(id uint32, method string) Message {
	return Message{ID: id, Method: method, Data: json.RawMessage("[]")}
}

// PeekField extracts one top-level string field from m's payload without
// requiring a typed destination. Every RPC payload carries "request_id",
// so callers use this for request correlation before (or regardless of)
// the handler's own typed Unwrap.
func PeekField(m Message, field string) (string, bool) {
	var arr []json.RawMessage
	if err := json.Unmarshal(m.Data, &arr); err != nil || len(arr) == 0 {
		return "", false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(arr[0], &obj); err != nil {
		return "", false
	}
	raw, ok := obj[field]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
