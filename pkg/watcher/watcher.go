package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/jelu/lim-plugin-orr/pkg/agentrpc"
	"github.com/jelu/lim-plugin-orr/pkg/log"
	"github.com/jelu/lim-plugin-orr/pkg/metrics"
	"github.com/jelu/lim-plugin-orr/pkg/types"
)

// DefaultInterval is the default tick interval between liveness probes.
const DefaultInterval = 5 * time.Second

// staleAfter is how long an ONLINE or STANDBY node can go unpinged before
// the next tick re-checks it; a freshly successful Ping need not be repeated
// every tick.
const staleAfter = 30 * time.Second

// entry is the Watcher's bookkeeping for one node: its RPC client and the
// state last observed for it, mutated from the tick loop and read by
// whoever owns the Watcher (a Cluster Manager).
type entry struct {
	mu       sync.RWMutex
	client   agentrpc.RPC
	state    types.NodeState
	lastSeen time.Time
	lastErr  string
}

// Watcher probes a set of nodes on a fixed interval and tracks each one's
// liveness state. The node registry is a concurrent-map keyed by node ID,
// since RPC completions from one tick race with Add/Remove/SetState calls
// issued by the owning Cluster Manager between ticks.
//
// A successful Ping only ever promotes a node out of UNKNOWN/OFFLINE into
// STANDBY; the Cluster Manager decides, during its own INITIALIZING phase,
// when a STANDBY node is safe to upgrade to ONLINE. This mirrors the split
// of responsibility between node-level liveness and cluster-level readiness.
type Watcher struct {
	registry  cmap.ConcurrentMap[string, *entry]
	interval  time.Duration
	clusterID uuid.UUID

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Watcher with the given tick interval. interval <= 0 uses
// DefaultInterval.
func New(interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		registry: cmap.New[*entry](),
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// SetClusterID labels this Watcher's metrics with the owning cluster.
// orrd's supervisor calls it right after construction, since a Watcher has
// no other way to know which cluster it belongs to.
func (w *Watcher) SetClusterID(id uuid.UUID) {
	w.clusterID = id
}

// Add registers a node for liveness probing. If the node is already
// registered its client is replaced and its state reset to unknown.
func (w *Watcher) Add(nodeID uuid.UUID, client agentrpc.RPC) {
	w.registry.Set(nodeID.String(), &entry{
		client: client,
		state:  types.NodeStateUnknown,
	})
	w.observeState(nodeID, types.NodeStateUnknown)
}

// Remove stops probing a node and drops it from the registry. If the
// node's client supports Close (the real agentrpc.Client does, to stop its
// FIFO dispatcher), it is closed first.
func (w *Watcher) Remove(nodeID uuid.UUID) {
	if e, ok := w.registry.Get(nodeID.String()); ok {
		if closer, ok := e.client.(interface{ Close() }); ok {
			closer.Close()
		}
	}
	w.registry.Remove(nodeID.String())
}

// SetState forces a node's state without waiting for the next tick, used
// by the Cluster Manager to upgrade a STANDBY node to ONLINE or to mark one
// DISABLED.
func (w *Watcher) SetState(nodeID uuid.UUID, state types.NodeState) {
	if e, ok := w.registry.Get(nodeID.String()); ok {
		e.mu.Lock()
		e.state = state
		e.mu.Unlock()
		w.observeState(nodeID, state)
	}
}

var allNodeStates = []types.NodeState{
	types.NodeStateUnknown,
	types.NodeStateOffline,
	types.NodeStateOnline,
	types.NodeStateFailure,
	types.NodeStateStandby,
	types.NodeStateDisabled,
}

// observeState sets orr_node_state to 1 for state and 0 for every other
// state this node could be in, so the gauge always reflects exactly one
// current state per node.
func (w *Watcher) observeState(nodeID uuid.UUID, state types.NodeState) {
	for _, s := range allNodeStates {
		v := 0.0
		if s == state {
			v = 1
		}
		metrics.NodeState.WithLabelValues(w.clusterID.String(), nodeID.String(), string(s)).Set(v)
	}
}

// State returns a node's last-observed state and whether the node is
// registered at all.
func (w *Watcher) State(nodeID uuid.UUID) (types.NodeState, bool) {
	e, ok := w.registry.Get(nodeID.String())
	if !ok {
		return types.NodeStateUnknown, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state, true
}

// Snapshot returns every registered node's current state.
func (w *Watcher) Snapshot() map[uuid.UUID]types.NodeState {
	out := make(map[uuid.UUID]types.NodeState, w.registry.Count())
	for id, e := range w.registry.Items() {
		nodeID, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		e.mu.RLock()
		out[nodeID] = e.state
		e.mu.RUnlock()
	}
	return out
}

// Client returns the RPC client bound to a registered node, for the Cluster
// Manager to issue fan-out work against, and whether the node is registered.
func (w *Watcher) Client(nodeID uuid.UUID) (agentrpc.RPC, bool) {
	e, ok := w.registry.Get(nodeID.String())
	if !ok {
		return nil, false
	}
	return e.client, true
}

// Start begins the tick loop in a new goroutine.
func (w *Watcher) Start() {
	go w.run()
}

// Stop halts the tick loop and waits for the current tick to finish.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick()
		case <-w.stopCh:
			return
		}
	}
}

// tick pings every node due for a liveness check: unconditionally if
// UNKNOWN or OFFLINE, or if ONLINE/STANDBY and stale past staleAfter. Nodes
// in FAILURE or DISABLED are never pinged here; FAILURE requires external
// reset and DISABLED is a deliberate exclusion by the Cluster Manager.
func (w *Watcher) tick() {
	items := w.registry.Items()

	due := make(map[uuid.UUID]*entry, len(items))
	for id, e := range items {
		nodeID, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		e.mu.RLock()
		state, lastSeen := e.state, e.lastSeen
		e.mu.RUnlock()

		switch {
		case state == types.NodeStateUnknown || state == types.NodeStateOffline:
			due[nodeID] = e
		case (state == types.NodeStateOnline || state == types.NodeStateStandby) && time.Since(lastSeen) > staleAfter:
			due[nodeID] = e
		}
	}

	fo := newFanout(len(due))
	for nodeID, e := range due {
		go func(nodeID uuid.UUID, e *entry) {
			defer fo.arrive()
			w.probe(nodeID, e)
		}(nodeID, e)
	}
	fo.wait()
}

func (w *Watcher) probe(nodeID uuid.UUID, e *entry) {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()

	logger := log.WithComponent("watcher").Node(nodeID).Logger()

	timer := metrics.NewTimer()
	err := e.client.Ping(ctx)
	timer.ObserveDurationVec(metrics.NodeRPCDuration, nodeID.String(), "Ping")

	e.mu.Lock()
	prev := e.state
	if err != nil {
		metrics.NodeRPCErrors.WithLabelValues(nodeID.String(), "Ping").Inc()
		e.lastErr = err.Error()
		if prev == types.NodeStateOnline || prev == types.NodeStateStandby || prev == types.NodeStateUnknown {
			e.state = types.NodeStateOffline
		}
	} else {
		e.lastSeen = time.Now()
		e.lastErr = ""
		if prev == types.NodeStateUnknown || prev == types.NodeStateOffline {
			e.state = types.NodeStateStandby
		}
	}
	next := e.state
	e.mu.Unlock()

	if next != prev {
		w.observeState(nodeID, next)
		logger.Info().Str("from", string(prev)).Str("to", string(next)).Msg("node state changed")
	}
}
