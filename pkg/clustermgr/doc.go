/*
Package clustermgr implements the Cluster Manager: the per-cluster
reconciliation loop that drives a set of nodes through version checks, HSM
and policy provisioning, signer startup, and zone setup, and derives the
cluster's own state from the aggregated result.

A Manager owns one NodeSource (satisfied by *pkg/watcher.Watcher) exclusively
and runs a single-threaded, self-rescheduling tick loop grounded on
cuemby-warren's pkg/reconciler.Reconciler: a timer-driven run() that calls a
sequence of idempotent sub-phases, the tick as a whole timed and counted via
pkg/metrics, with state mutation guarded by a mutex. Where the teacher's reconciler ticks
on a fixed interval and calls two sub-reconcilers unconditionally, a Manager
generalizes the interval into a back-off that resets to zero on progress and
saturates at a configured ceiling, and calls seven named phases (P1-P7)
whose completion flags live in a per-cluster reconciliation cache that a
node mutation (AddNode, RemoveNode) can flag for a full reset.
*/
package clustermgr
