/*
Package fast implements the wire codec for the Fast RPC protocol: a
length-prefixed record carrying a request or response message.

	┌──────────────┬──────────────────────────────────────┐
	│ length (u32) │  JSON body: {"id","method","d"}      │
	│ 4 bytes, BE  │  length bytes, UTF-8                 │
	└──────────────┴──────────────────────────────────────┘

"d" is always a one-element JSON array: the single logical payload object
on a request, or the single logical reply value on a response. Callers of
this package never see the array — Wrap/Unwrap hide it.

Errors are never a framing concern: a Fast-level failure (an operation
error) is carried as an ordinary, successfully-framed Message whose data
is {"error":{"name","message"}}. Only a malformed frame or a read/write
failure on the underlying connection is a codec-level error, and those
close the session.
*/
package fast
