/*
Package watcher implements the Node Watcher: a periodic liveness probe
fanned out across every registered node, tracking each one's state
(unknown, offline, online, failure, standby, disabled).

The node registry is an orcaman/concurrent-map, since Add/Remove/SetState
calls from the owning Cluster Manager can arrive between or during a tick.
Each tick concurrently pings every node that is due a liveness check and
uses fanout (fanout.go) to wait for all of them before the next tick starts, so two ticks never overlap for
the same Watcher.
*/
package watcher
