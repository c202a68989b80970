// Package events implements a small in-process pub/sub broker: a buffered
// publish channel fanning out to per-subscriber buffered channels, dropping
// an event for any subscriber whose buffer is full rather than blocking the
// broadcaster and counting the drop in orr_events_dropped_total. Subscribe
// optionally filters by EventType so a consumer only interested in cluster
// state transitions isn't handed every zone fetch failure too. The Cluster
// Manager publishes on every lifecycle transition; orrd's event log tails
// the broker for everything, and the health server could narrow its own
// subscription to EventClusterStateChanged alone.
package events
