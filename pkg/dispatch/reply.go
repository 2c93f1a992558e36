package dispatch

import (
	"reflect"

	"github.com/cuemby/bucketsmdapi/pkg/fast"
)

// Reply is the sequence of payload values one handler invocation
// produces: SPEC_FULL.md §9's "variant... union-by-slice" in place of a
// tagged single/many type. Most operations return a single-element
// Reply; listbuckets, listobjects, and getgcbatch return one element per
// row, and an empty result is an empty Reply (zero data frames).
type Reply []any

// toReply adapts a handler's raw result into a Reply. A slice result
// becomes one element per entry — the one-message-per-row operations —
// anything else becomes a single-element Reply.
func toReply(result any) Reply {
	v := reflect.ValueOf(result)
	if v.Kind() == reflect.Slice {
		out := make(Reply, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = v.Index(i).Interface()
		}
		return out
	}
	return Reply{result}
}

// messages renders r as the ordered data frames for request id/method,
// one per element and in the order produced. The caller still owes the
// stream a terminal fast.End frame after writing these.
func (r Reply) messages(id uint32, method string) ([]fast.Message, error) {
	msgs := make([]fast.Message, len(r))
	for i, payload := range r {
		m, err := fast.Wrap(id, method, payload)
		if err != nil {
			return nil, err
		}
		msgs[i] = m
	}
	return msgs, nil
}
