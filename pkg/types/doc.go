/*
Package types defines the core data structures of the buckets metadata
API: buckets, objects, storage node identifiers (sharks), the conditional
predicate bundle, and the response shapes for delete and garbage-batch
operations.

These are plain records; relationships such as an object's bucket_id are
foreign values, never pointers to other structs.
*/
package types
