package clustermgr

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jelu/lim-plugin-orr/pkg/agentrpc"
	"github.com/jelu/lim-plugin-orr/pkg/events"
	"github.com/jelu/lim-plugin-orr/pkg/log"
	"github.com/jelu/lim-plugin-orr/pkg/metrics"
	"github.com/jelu/lim-plugin-orr/pkg/store"
	"github.com/jelu/lim-plugin-orr/pkg/types"
	"github.com/jelu/lim-plugin-orr/pkg/zoneinput"
)

// DefaultMaxInterval is the back-off ceiling used when no Option overrides it.
const DefaultMaxInterval = 10 * time.Second

// zoneBinding pairs a zone's static configuration with the Fetcher built
// for its input_type.
type zoneBinding struct {
	zone    types.Zone
	fetcher zoneinput.Fetcher
}

// Manager runs one cluster's reconciliation loop. It owns a NodeSource
// exclusively and holds the cluster's policy, HSMs and zones in memory.
// The Manager never reads the Config Store; when built WithStore, it
// writes each cluster state transition back to it.
type Manager struct {
	ID   uuid.UUID
	Name string
	Mode types.ClusterMode

	nodes NodeSource

	mu       sync.Mutex
	policy   types.Policy
	hsms     []types.HSM
	zones    map[uuid.UUID]zoneBinding
	zoneRT   map[uuid.UUID]*types.ZoneRuntime
	state    types.ClusterState
	lastErr  string
	cache    reconcileCache

	lock atomic.Bool // true while a tick is executing; guards against overlap

	interval    time.Duration
	maxInterval time.Duration

	store  *store.Store
	broker *events.Broker

	logBuf *logBuffer

	timer  *time.Timer
	stopCh chan struct{}
	doneCh chan struct{}
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithStore persists cluster state transitions to the Config Store.
func WithStore(s *store.Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithBroker publishes cluster and node lifecycle events.
func WithBroker(b *events.Broker) Option {
	return func(m *Manager) { m.broker = b }
}

// WithMaxInterval overrides the back-off ceiling.
func WithMaxInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.maxInterval = d
		}
	}
}

// New builds a Manager from a cluster's fully joined descriptor. It wires
// one agentrpc.Client per node into nodes and one zoneinput.Fetcher per
// zone from registry, and returns a ConfigError if the descriptor is
// invalid: exactly one policy is required per cluster.
func New(cfg types.ClusterConfig, nodes NodeSource, registry *zoneinput.Registry, opts ...Option) (*Manager, error) {
	if len(cfg.Policies) != 1 {
		return nil, &ConfigError{ClusterID: cfg.Cluster.ID.String(), Reason: "exactly one policy is required per cluster"}
	}

	m := &Manager{
		ID:          cfg.Cluster.ID,
		Name:        cfg.Cluster.Name,
		Mode:        cfg.Cluster.Mode,
		nodes:       nodes,
		policy:      cfg.Policies[0],
		hsms:        cfg.HSMs,
		zones:       make(map[uuid.UUID]zoneBinding),
		zoneRT:      make(map[uuid.UUID]*types.ZoneRuntime),
		state:       types.ClusterStateInitializing,
		cache:       newReconcileCache(),
		maxInterval: DefaultMaxInterval,
		logBuf:      newLogBuffer(500),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	for _, zone := range cfg.Zones {
		fetcher, err := registry.Build(zone.InputType, zone.Name, zone.InputData)
		if err != nil {
			return nil, &ConfigError{ClusterID: cfg.Cluster.ID.String(), Reason: err.Error()}
		}
		m.zones[zone.ID] = zoneBinding{zone: zone, fetcher: fetcher}
		m.zoneRT[zone.ID] = &types.ZoneRuntime{ZoneID: zone.ID}
	}

	for _, node := range cfg.Nodes {
		client := agentrpc.New(node.ID, node.URI)
		m.nodes.Add(node.ID, client)
	}

	for _, s := range allClusterStates {
		v := 0.0
		if s == m.state {
			v = 1
		}
		metrics.ClusterState.WithLabelValues(m.ID.String(), string(s)).Set(v)
	}

	return m, nil
}

// State returns the cluster's current state and last recorded error.
func (m *Manager) State() (types.ClusterState, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.lastErr
}

// Log returns a snapshot of the reconciliation log buffer.
func (m *Manager) Log() []LogEntry {
	return m.logBuf.snapshot()
}

// AddNode registers a new node with the Manager's Node Watcher and flags
// the reconciliation cache for a full reset on the next tick, per the
// invariant that cache.reset accumulates NodeAdd/NodeRemove mutations.
func (m *Manager) AddNode(node types.Node) {
	client := agentrpc.New(node.ID, node.URI)
	m.nodes.Add(node.ID, client)
	m.flagReset()
}

// RemoveNode drops a node from the Node Watcher and flags a reset.
func (m *Manager) RemoveNode(nodeID uuid.UUID) {
	m.nodes.Remove(nodeID)
	m.flagReset()
}

func (m *Manager) flagReset() {
	m.mu.Lock()
	m.cache.reset = true
	m.mu.Unlock()
}

// Start begins the Node Watcher's probe loop and this Manager's own tick
// loop in a new goroutine.
func (m *Manager) Start() {
	m.nodes.Start()
	go m.run()
}

// Stop halts the tick loop and the underlying Node Watcher.
func (m *Manager) Stop() {
	close(m.stopCh)
	<-m.doneCh
	m.nodes.Stop()
}

func (m *Manager) run() {
	defer close(m.doneCh)

	m.timer = time.NewTimer(0)
	defer m.timer.Stop()

	for {
		select {
		case <-m.timer.C:
			m.tick()
			m.timer.Reset(m.currentInterval())
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) currentInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// tick is the single-threaded, re-entrant reconciliation procedure described
// by the teacher's Reconciler.reconcile: mutex-guarded, timed, and
// decomposed into a fixed sequence of idempotent sub-phases.
func (m *Manager) tick() {
	if !m.lock.CompareAndSwap(false, true) {
		m.incInterval()
		return
	}
	defer m.lock.Store(false)

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ReconcileDuration, m.ID.String())

	if m.state == types.ClusterStateFailure {
		metrics.ReconcileTotal.WithLabelValues(m.ID.String(), "failure_fixpoint").Inc()
		m.incInterval()
		return
	}

	m.maybeReset()

	m.mu.Lock()
	state := m.state
	m.mu.Unlock()
	if state == types.ClusterStateInitializing && m.hasUnknownNode() {
		metrics.ReconcileTotal.WithLabelValues(m.ID.String(), "waiting_for_nodes").Inc()
		m.incInterval()
		return
	}
	m.checkInvariants(state)

	ctx := context.Background()
	progressed := false
	progressed = m.runP1Versions(ctx) || progressed
	progressed = m.runP2HSM(ctx) || progressed
	progressed = m.runP3Policy(ctx) || progressed
	progressed = m.runP4Start(ctx) || progressed
	progressed = m.runP5Reload(ctx) || progressed
	progressed = m.runP6ClusterState() || progressed

	prev := state
	m.mu.Lock()
	state = m.state
	m.mu.Unlock()
	if state == types.ClusterStateOperational || state == types.ClusterStateDegraded {
		progressed = m.runP7Zones(ctx) || progressed
	}

	m.mu.Lock()
	state = m.state
	m.mu.Unlock()
	if prev != types.ClusterStateOperational && state == types.ClusterStateOperational {
		m.appendLog("Cluster operational")
	}

	if progressed {
		m.resetInterval()
		metrics.ReconcileTotal.WithLabelValues(m.ID.String(), "progressed").Inc()
	} else {
		m.incInterval()
		metrics.ReconcileTotal.WithLabelValues(m.ID.String(), "idle").Inc()
	}
}

func (m *Manager) maybeReset() {
	m.mu.Lock()
	reset := m.cache.reset
	m.mu.Unlock()
	if !reset {
		return
	}

	m.mu.Lock()
	m.state = types.ClusterStateInitializing
	m.lastErr = "Resetting"
	m.cache = newReconcileCache()
	for _, zr := range m.zoneRT {
		*zr = types.ZoneRuntime{ZoneID: zr.ZoneID}
	}
	m.mu.Unlock()
	m.appendLog("Resetting")
}

// checkInvariants panics with an InvariantError when the reconciliation
// logic's own assumptions are violated: an UNKNOWN node can only exist
// while the cluster is still INITIALIZING (a node is UNKNOWN only once it
// has been added, and AddNode flags a reset that maybeReset turns into
// INITIALIZING before this check runs), so one surviving into OPERATIONAL
// or DEGRADED means that reset was skipped.
func (m *Manager) checkInvariants(state types.ClusterState) {
	if (state == types.ClusterStateOperational || state == types.ClusterStateDegraded) && m.hasUnknownNode() {
		err := &InvariantError{Reason: fmt.Sprintf("cluster %s has a node in UNKNOWN state while %s", m.ID, state)}
		logger := log.WithComponent("clustermgr").Cluster(m.ID).Logger()
		logger.Panic().Err(err).Msg("invariant violated")
	}
}

func (m *Manager) hasUnknownNode() bool {
	for _, state := range m.nodes.Snapshot() {
		if state == types.NodeStateUnknown {
			return true
		}
	}
	return false
}

// callableNodes returns the ids of nodes currently ONLINE or STANDBY, the
// only states the Node Watcher will dispatch queued work to.
func (m *Manager) callableNodes() []uuid.UUID {
	var out []uuid.UUID
	for id, state := range m.nodes.Snapshot() {
		if state == types.NodeStateOnline || state == types.NodeStateStandby {
			out = append(out, id)
		}
	}
	return out
}

func (m *Manager) incInterval() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval += time.Second
	if m.interval > m.maxInterval {
		m.interval = m.maxInterval
	}
}

func (m *Manager) resetInterval() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = 0
}

func (m *Manager) appendLog(message string) {
	m.logBuf.append(message)
	logger := log.WithComponent("clustermgr").Cluster(m.ID).Logger()
	logger.Info().Msg(message)
}

var allClusterStates = []types.ClusterState{
	types.ClusterStateInitializing,
	types.ClusterStateOperational,
	types.ClusterStateDegraded,
	types.ClusterStateDisfunctional,
	types.ClusterStateFailure,
	types.ClusterStateDisabled,
}

func (m *Manager) setState(state types.ClusterState, reason string) {
	m.mu.Lock()
	prev := m.state
	m.state = state
	m.lastErr = reason
	m.mu.Unlock()

	if prev == state {
		return
	}

	for _, s := range allClusterStates {
		v := 0.0
		if s == state {
			v = 1
		}
		metrics.ClusterState.WithLabelValues(m.ID.String(), string(s)).Set(v)
	}

	if m.store != nil {
		_ = m.store.UpdateClusterState(context.Background(), m.ID, state, reason)
	}
	if m.broker != nil {
		m.broker.Publish(&events.Event{
			Type:      events.EventClusterStateChanged,
			ClusterID: m.ID,
			Message:   reason,
			Metadata:  map[string]string{"from": string(prev), "to": string(state)},
		})
	}
}
