package fast

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Encode writes one frame for m to w: a 4-byte big-endian length prefix
// followed by the JSON body.
func Encode(w io.Writer, m Message) error {
	body, err := json.Marshal(wireMessage{ID: m.ID, Method: m.Method, Data: m.Data})
	if err != nil {
		return fmt.Errorf("fast: encode: %w", err)
	}
	if len(body) > MaxFrameSize {
		return fmt.Errorf("fast: encode: body of %d bytes exceeds max frame size", len(body))
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(body)))

	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("fast: write length prefix: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("fast: write body: %w", err)
	}
	return nil
}

// Decode reads exactly one frame from r.
func Decode(r io.Reader) (Message, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return Message{}, err
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n > MaxFrameSize {
		return Message{}, fmt.Errorf("fast: decode: frame of %d bytes exceeds max frame size", n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, fmt.Errorf("fast: read body: %w", err)
	}

	var wm wireMessage
	if err := json.Unmarshal(body, &wm); err != nil {
		return Message{}, fmt.Errorf("fast: decode body: %w", err)
	}

	return Message{ID: wm.ID, Method: wm.Method, Data: wm.Data}, nil
}
