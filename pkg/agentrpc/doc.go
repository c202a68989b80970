/*
Package agentrpc implements the Node RPC Client: one HTTP+JSON client per
remote signing node, exposing the agent's RPC catalogue (Ping, Versions,
SetupHSM, SetupPolicy, StartOpenDNSSEC, ReloadOpenDNSSEC, ZoneAdd,
ZoneRemove) as typed Go methods.

Every node's agent processes one RPC at a time. Client enforces that with a
FIFO queue (queue.go): callers may invoke methods concurrently, but each
call blocks until its turn in that node's queue comes up and the previous
call has returned. This replaces the teacher's weak-self-capture,
callback-queue-plus-timer pattern with a single goroutine draining a
channel, the idiomatic Go shape for "at most one in-flight operation per
resource, FIFO order".

Canonicalize supports idempotence checks: SetupHSM and SetupPolicy compare
the canonical form of the new data against the canonical form of what the
agent currently holds, and only issue an update when they differ.
*/
package agentrpc
