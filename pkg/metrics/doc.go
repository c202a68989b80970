// Package metrics registers ORR's Prometheus collectors: reconciliation
// duration/count per cluster, cluster and node state gauges, and Node RPC
// Client latency/error counts. Handler exposes them for /metrics; Timer is
// a small helper for recording call duration into a histogram.
package metrics
