/*
Package metrics provides Prometheus metrics collection and exposition for
the buckets metadata API.

# Metrics Catalog

incoming_request_count:
  - Type: Counter
  - Description: total Fast requests accepted by the dispatcher

metrics_request_count:
  - Type: Counter
  - Description: total scrapes of this process's own /metrics endpoint

fast_requests{method, success}:
  - Type: Histogram
  - Description: latency of a Fast request through claim and handler (reply encoding not included)

postgres_requests{method, success}:
  - Type: Histogram
  - Description: latency of a single SQL gateway call, keyed by logical method

connection_claim_times{success}:
  - Type: Histogram
  - Description: latency of claiming a pooled connection from the pool collaborator

# Usage

	timer := metrics.NewTimer()
	rows, err := pool.Query(ctx, sql, args...)
	timer.ObserveDurationVec(metrics.PostgresRequests, string(method), metrics.Success(err == nil))

# Design Patterns

All metrics are registered once in init() via prometheus.MustRegister, so
that /metrics is complete from the first scrape. Handler() exposes the
standard promhttp text encoder; nothing here performs periodic collection
— every metric is updated inline by the component that owns the
measurement (the dispatcher, the SQL gateway).
*/
package metrics
