package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Bucket is a tuple (id, owner, name, created), unique per (owner, name)
// within a vnode schema.
type Bucket struct {
	ID      uuid.UUID `json:"id"`
	Owner   uuid.UUID `json:"owner"`
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
}

// StorageNodeIdentifier is a shark: a storage node (datacenter,
// manta_storage_id) pair. On the wire it is a JSON object; in Postgres it
// is stored as the single text "<datacenter>:<manta_storage_id>" inside a
// text[] column, so element order round-trips exactly.
type StorageNodeIdentifier struct {
	Datacenter     string `json:"datacenter"`
	MantaStorageID string `json:"manta_storage_id"`
}

// Object is a tuple (id, owner, bucket_id, name, created, modified,
// content_length, content_md5, content_type, headers, sharks,
// properties), unique per (owner, bucket_id, name) within a vnode schema.
type Object struct {
	ID            uuid.UUID               `json:"id"`
	Owner         uuid.UUID               `json:"owner"`
	BucketID      uuid.UUID               `json:"bucket_id"`
	Name          string                  `json:"name"`
	Created       time.Time               `json:"created"`
	Modified      time.Time               `json:"modified"`
	ContentLength int64                   `json:"content_length"`
	ContentMD5    []byte                  `json:"content_md5"` // raw bytes in storage; base64 on the wire
	ContentType   string                  `json:"content_type"`
	Headers       map[string]*string      `json:"headers"` // hstore: values may be SQL NULL
	Sharks        []StorageNodeIdentifier `json:"sharks"`
	Properties    json.RawMessage         `json:"properties,omitempty"` // optional, opaque JSON
}

// Etag is the object's id rendered as a string, used for if-[none-]match
// comparisons in the conditional evaluator.
func (o Object) Etag() string {
	return o.ID.String()
}

// Conditions is the predicate bundle accepted by createobject, getobject,
// updateobject and deleteobject. Absent or null fields mean "no
// predicate". Field names follow the wire's hyphenated JSON keys.
type Conditions struct {
	IfMatch           []string   `json:"if-match,omitempty"`
	IfNoneMatch       []string   `json:"if-none-match,omitempty"`
	IfModifiedSince   *time.Time `json:"if-modified-since,omitempty"`
	IfUnmodifiedSince *time.Time `json:"if-unmodified-since,omitempty"`
}

// IsEmpty reports whether the conditions bundle carries no predicate at
// all, counting an empty if-match or if-none-match list as absent. The
// object handlers gate the evaluator on conditional.IsEmpty instead, which
// counts an empty but non-nil list as a predicate.
func (c *Conditions) IsEmpty() bool {
	if c == nil {
		return true
	}
	return len(c.IfMatch) == 0 && len(c.IfNoneMatch) == 0 &&
		c.IfModifiedSince == nil && c.IfUnmodifiedSince == nil
}

// DeleteObjectResult is the per-row shape returned by deleteobject:
// content_length may be null in storage, and shark_count null coerces to
// zero.
type DeleteObjectResult struct {
	ID            uuid.UUID `json:"id"`
	Owner         uuid.UUID `json:"owner"`
	BucketID      uuid.UUID `json:"bucket_id"`
	Name          string    `json:"name"`
	ContentLength *int64    `json:"content_length"`
	SharkCount    int32     `json:"shark_count"`
}

// GarbageBatch is the response shape for getgcbatch: the current batch
// token (nil when the batch is empty) and the sampled tombstoned object
// rows.
type GarbageBatch struct {
	BatchID *uuid.UUID `json:"batch_id"`
	Garbage []Object   `json:"garbage"`
}
