/*
Package mdapierror models the closed set of error kinds the buckets
metadata API can surface. Every kind carries a stable name and a
human-readable message, and marshals to the canonical Fast error shape
{"error":{"name":"...","message":"..."}}. Operation errors travel through
the normal reply channel as data, never as a transport-level failure.
*/
package mdapierror

import "encoding/json"

// Kind is one of the seven closed error kinds.
type Kind string

const (
	KindBucketAlreadyExists    Kind = "BucketAlreadyExists"
	KindBucketNotFound         Kind = "BucketNotFound"
	KindObjectNotFound         Kind = "ObjectNotFound"
	KindLimitConstraintError   Kind = "LimitConstraintError"
	KindPreconditionFailed     Kind = "PreconditionFailedError"
	KindPostgresError          Kind = "PostgresError"
	KindContentMD5Error        Kind = "ContentMd5Error"
)

// Error is a Kind paired with a message; it implements Go's error
// interface so call sites can use errors.As to recover the Kind.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newf(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// BucketAlreadyExists is returned when createbucket collides on (owner,name).
func BucketAlreadyExists() *Error {
	return newf(KindBucketAlreadyExists, "requested bucket already exists")
}

// BucketNotFound is returned when a bucket row is missing.
func BucketNotFound() *Error {
	return newf(KindBucketNotFound, "requested bucket not found")
}

// ObjectNotFound is returned when an object row is missing.
func ObjectNotFound() *Error {
	return newf(KindObjectNotFound, "requested object not found")
}

// LimitConstraintError is returned when limit is outside [1, 1024].
func LimitConstraintError(msg string) *Error {
	return newf(KindLimitConstraintError, msg)
}

// PreconditionFailed is returned when a conditional predicate fails.
func PreconditionFailed(msg string) *Error {
	return newf(KindPreconditionFailed, msg)
}

// Postgres wraps an underlying database failure. Handlers must never
// propagate the raw driver error to the transport; this is the mapping
// point.
func Postgres(msg string) *Error {
	return newf(KindPostgresError, msg)
}

// ContentMD5 is returned when content_md5 is not valid base64.
func ContentMD5(underlying string) *Error {
	return newf(KindContentMD5Error, "content_md5 is not valid base64 encoded data: "+underlying)
}

// wrapped is the on-wire {"error":{"name","message"}} shape.
type wrapped struct {
	Error inner `json:"error"`
}

type inner struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ToFast renders e as the canonical Fast error payload value.
func (e *Error) ToFast() json.RawMessage {
	b, err := json.Marshal(wrapped{Error: inner{Name: string(e.Kind), Message: e.Message}})
	if err != nil {
		// json.Marshal on this fixed, string-only shape cannot fail.
		panic(err)
	}
	return b
}
