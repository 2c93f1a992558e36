/*
Package pg is the SQL gateway: typed query/execute wrappers over a
connection or a transaction, each tagged with a logical Method and timed
into the postgres_requests{method,success} histogram.

The gateway adds no retry and no timeout of its own. Statements are built
per vnode by string-concatenating the vnode number into the
schema-qualified table name; payload values are always passed as bound
parameters.

This package defines the Pool/Conn/Tx interfaces the handlers run
against. PgxPool (pgxpool.go) implements them over a *pgxpool.Pool, whose
backend connection management is pgxpool's own; pkg/pg/fake supplies a
minimal in-memory implementation used by tests.
*/
package pg
