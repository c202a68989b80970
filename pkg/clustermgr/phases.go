package clustermgr

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jelu/lim-plugin-orr/pkg/agentrpc"
	"github.com/jelu/lim-plugin-orr/pkg/events"
	"github.com/jelu/lim-plugin-orr/pkg/log"
	"github.com/jelu/lim-plugin-orr/pkg/metrics"
	"github.com/jelu/lim-plugin-orr/pkg/types"
	"github.com/jelu/lim-plugin-orr/pkg/version"
)

// runP1Versions fetches and validates every callable node's reported
// component versions against the compiled-in support table, failing only
// the offending node unless every node fails. Once every checked node has
// passed, the result is cached and the phase becomes a no-op until a reset.
func (m *Manager) runP1Versions(ctx context.Context) bool {
	m.mu.Lock()
	alreadyChecked := m.cache.versionsChecked
	m.mu.Unlock()
	if alreadyChecked {
		return false
	}

	nodeIDs := m.callableNodes()
	if len(nodeIDs) == 0 {
		return false
	}

	m.appendLog("Fetching version information from nodes")

	results := fanOut(nodeIDs, func(id uuid.UUID) (*agentrpc.VersionsResponse, error) {
		client, ok := m.nodes.Client(id)
		if !ok {
			return nil, fmt.Errorf("clustermgr: node %s has no client", id)
		}
		timer := metrics.NewTimer()
		resp, err := client.Versions(ctx)
		timer.ObserveDurationVec(metrics.NodeRPCDuration, id.String(), "Versions")
		if err != nil {
			metrics.NodeRPCErrors.WithLabelValues(id.String(), "Versions").Inc()
		}
		return resp, err
	})

	allPassed := true
	for id, item := range results {
		if item.Err != nil {
			allPassed = false
			m.appendLog(fmt.Sprintf("Unable to fetch version information from node %s: %v", id, item.Err))
			continue
		}

		m.mu.Lock()
		m.cache.versions[id] = item.Value
		m.mu.Unlock()

		if err := checkNodeVersions(item.Value); err != nil {
			allPassed = false
			msg := err.Error()
			if verr, ok := err.(*version.UnsupportedVersionError); ok {
				verr.NodeID = id.String()
				msg = verr.Error()
			} else {
				msg = fmt.Sprintf("%v on node %s", err, id)
			}
			m.appendLog(msg)
			m.nodes.SetState(id, types.NodeStateFailure)
			if m.broker != nil {
				m.broker.Publish(&events.Event{
					Type:    events.EventNodeStateChanged,
					NodeID:  id,
					Message: msg,
				})
			}
		}
	}

	if allPassed {
		m.mu.Lock()
		m.cache.versionsChecked = true
		m.mu.Unlock()
		m.appendLog("Version information correct and supported")
	}

	return true
}

func checkNodeVersions(v *agentrpc.VersionsResponse) error {
	if v == nil {
		return fmt.Errorf("no version information reported")
	}
	if err := version.CheckAll(version.KindPlugin, v.Plugin); err != nil {
		return err
	}
	if err := version.CheckAll(version.KindProgram, v.Program); err != nil {
		return err
	}
	return nil
}

// runP2HSM provisions every HSM not yet attempted this reconciliation
// lifetime. A node whose SetupHSM reports mutated=true is queued for a
// signer reload in P5.
func (m *Manager) runP2HSM(ctx context.Context) bool {
	m.mu.Lock()
	if m.cache.hsmsSetup {
		m.mu.Unlock()
		return false
	}
	var pending []types.HSM
	for _, hsm := range m.hsms {
		if !m.cache.hsmAttempted[hsm.ID] {
			pending = append(pending, hsm)
		}
	}
	m.mu.Unlock()

	if len(pending) == 0 {
		m.mu.Lock()
		m.cache.hsmsSetup = true
		m.mu.Unlock()
		m.appendLog("All HSMs setup ok")
		return true
	}

	nodeIDs := m.callableNodes()
	for _, hsm := range pending {
		m.appendLog(fmt.Sprintf("Setting up HSM %s", hsm.ID))

		results := fanOut(nodeIDs, func(id uuid.UUID) (bool, error) {
			client, ok := m.nodes.Client(id)
			if !ok {
				return false, fmt.Errorf("clustermgr: node %s has no client", id)
			}
			timer := metrics.NewTimer()
			mutated, err := client.SetupHSM(ctx, hsm.Name, hsm.Data)
			timer.ObserveDurationVec(metrics.NodeRPCDuration, id.String(), "SetupHSM")
			if err != nil {
				metrics.NodeRPCErrors.WithLabelValues(id.String(), "SetupHSM").Inc()
			}
			return mutated, err
		})

		m.mu.Lock()
		for id, item := range results {
			if item.Err != nil {
				continue
			}
			if item.Value {
				m.cache.reload[id] = true
			}
		}
		m.cache.hsmAttempted[hsm.ID] = true
		m.mu.Unlock()
	}

	m.mu.Lock()
	allAttempted := true
	for _, hsm := range m.hsms {
		if !m.cache.hsmAttempted[hsm.ID] {
			allAttempted = false
			break
		}
	}
	if allAttempted {
		m.cache.hsmsSetup = true
	}
	m.mu.Unlock()

	if allAttempted {
		m.appendLog("All HSMs setup ok")
	}
	return true
}

// runP3Policy provisions the cluster's single policy once per
// reconciliation lifetime, following the same mutated-implies-reload rule
// as runP2HSM.
func (m *Manager) runP3Policy(ctx context.Context) bool {
	m.mu.Lock()
	if m.cache.policySetup {
		m.mu.Unlock()
		return false
	}
	policy := m.policy
	m.mu.Unlock()

	m.appendLog(fmt.Sprintf("Setting up Policy %s", policy.ID))

	nodeIDs := m.callableNodes()
	results := fanOut(nodeIDs, func(id uuid.UUID) (bool, error) {
		client, ok := m.nodes.Client(id)
		if !ok {
			return false, fmt.Errorf("clustermgr: node %s has no client", id)
		}
		timer := metrics.NewTimer()
		mutated, err := client.SetupPolicy(ctx, policy.Name, policy.Data)
		timer.ObserveDurationVec(metrics.NodeRPCDuration, id.String(), "SetupPolicy")
		if err != nil {
			metrics.NodeRPCErrors.WithLabelValues(id.String(), "SetupPolicy").Inc()
		}
		return mutated, err
	})

	m.mu.Lock()
	for id, item := range results {
		if item.Err == nil && item.Value {
			m.cache.reload[id] = true
		}
	}
	m.cache.policySetup = true
	m.mu.Unlock()

	m.appendLog("Policy setup ok")
	return true
}

// runP4Start starts the signer on every callable node once per
// reconciliation lifetime.
func (m *Manager) runP4Start(ctx context.Context) bool {
	m.mu.Lock()
	if m.cache.running {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	m.appendLog("Verifying OpenDNSSEC is running and starting if not")

	nodeIDs := m.callableNodes()
	fanOut(nodeIDs, func(id uuid.UUID) (struct{}, error) {
		client, ok := m.nodes.Client(id)
		if !ok {
			return struct{}{}, fmt.Errorf("clustermgr: node %s has no client", id)
		}
		timer := metrics.NewTimer()
		err := client.StartOpenDNSSEC(ctx)
		timer.ObserveDurationVec(metrics.NodeRPCDuration, id.String(), "StartOpenDNSSEC")
		if err != nil {
			metrics.NodeRPCErrors.WithLabelValues(id.String(), "StartOpenDNSSEC").Inc()
		}
		return struct{}{}, err
	})

	m.mu.Lock()
	m.cache.running = true
	m.mu.Unlock()
	return true
}

// runP5Reload drains the accumulated reload set, asking exactly the nodes
// that were actually mutated by runP2HSM or runP3Policy to reload.
func (m *Manager) runP5Reload(ctx context.Context) bool {
	m.appendLog("Reload OpenDNSSEC on nodes that need it")

	m.mu.Lock()
	var nodeIDs []uuid.UUID
	for id := range m.cache.reload {
		nodeIDs = append(nodeIDs, id)
	}
	m.cache.reload = make(map[uuid.UUID]bool)
	m.mu.Unlock()

	if len(nodeIDs) == 0 {
		return false
	}

	fanOut(nodeIDs, func(id uuid.UUID) (struct{}, error) {
		client, ok := m.nodes.Client(id)
		if !ok {
			return struct{}{}, fmt.Errorf("clustermgr: node %s has no client", id)
		}
		timer := metrics.NewTimer()
		err := client.ReloadOpenDNSSEC(ctx)
		timer.ObserveDurationVec(metrics.NodeRPCDuration, id.String(), "ReloadOpenDNSSEC")
		if err != nil {
			metrics.NodeRPCErrors.WithLabelValues(id.String(), "ReloadOpenDNSSEC").Inc()
		}
		return struct{}{}, err
	})
	return true
}

// runP6ClusterState aggregates every node's liveness state into the
// cluster's own state, per the rules in the external component design:
// a STANDBY node outside INITIALIZING forces a full re-initialization; a
// STANDBY node inside INITIALIZING is instead upgraded straight to ONLINE.
func (m *Manager) runP6ClusterState() bool {
	snapshot := m.nodes.Snapshot()

	m.mu.Lock()
	current := m.state
	m.mu.Unlock()

	var standby []uuid.UUID
	counts := map[types.NodeState]int{}
	for id, state := range snapshot {
		counts[state]++
		if state == types.NodeStateStandby {
			standby = append(standby, id)
		}
	}
	total := len(snapshot)

	if len(standby) > 0 && current != types.ClusterStateInitializing {
		m.mu.Lock()
		m.cache = newReconcileCache()
		for _, zr := range m.zoneRT {
			*zr = types.ZoneRuntime{ZoneID: zr.ZoneID}
		}
		m.mu.Unlock()
		m.setState(types.ClusterStateInitializing, "Cluster (re)initializing because of nodes in STANDBY state")
		m.appendLog("Cluster (re)initializing because of nodes in STANDBY state")
		return true
	}

	if len(standby) > 0 && current == types.ClusterStateInitializing {
		for _, id := range standby {
			m.nodes.SetState(id, types.NodeStateOnline)
		}
		return true
	}

	failures := counts[types.NodeStateFailure]
	offline := counts[types.NodeStateOffline]

	switch {
	case failures > 0 || offline > 0:
		if total > 0 && failures == total {
			m.setState(types.ClusterStateFailure, fmt.Sprintf("Nodes failure:%d offline:%d", failures, offline))
			return true
		}
		if current != types.ClusterStateDegraded {
			m.setState(types.ClusterStateDegraded, fmt.Sprintf("Nodes failure:%d offline:%d", failures, offline))
			m.appendLog(fmt.Sprintf("Nodes failure:%d offline:%d", failures, offline))
			return true
		}
		return false
	default:
		if current != types.ClusterStateOperational {
			m.setState(types.ClusterStateOperational, "")
			return true
		}
		return false
	}
}

// runP7Zones fetches and installs content for every non-locked zone.
// KSK/ZSK roll and sync, zone updates and signed-zone retrieval are not
// implemented: the key-management workflow they require is out of scope.
// A fetch failure transitions the whole cluster to FAILURE, since a zone
// that cannot be fetched can never be reconciled without external action.
func (m *Manager) runP7Zones(ctx context.Context) bool {
	m.mu.Lock()
	bindings := make(map[uuid.UUID]zoneBinding, len(m.zones))
	for id, b := range m.zones {
		bindings[id] = b
	}
	policyName := m.policy.Name
	m.mu.Unlock()

	progressed := false
	nodeIDs := m.callableNodes()

	for zoneID, binding := range bindings {
		m.mu.Lock()
		zr := m.zoneRT[zoneID]
		locked := zr.Locked
		pendingRemove := zr.PendingRemove
		m.mu.Unlock()

		if locked {
			continue
		}

		if pendingRemove {
			fanOut(nodeIDs, func(id uuid.UUID) (struct{}, error) {
				client, ok := m.nodes.Client(id)
				if !ok {
					return struct{}{}, fmt.Errorf("clustermgr: node %s has no client", id)
				}
				return struct{}{}, client.ZoneRemove(ctx, binding.zone.Name)
			})
			m.mu.Lock()
			delete(m.zones, zoneID)
			delete(m.zoneRT, zoneID)
			m.mu.Unlock()
			progressed = true
			continue
		}

		if zr.Content == "" {
			m.appendLog(fmt.Sprintf("Fetching zone content for zone %s", zoneID))
			content, err := binding.fetcher.Fetch(ctx)
			if err != nil {
				metrics.ZoneFetchErrors.WithLabelValues(zoneID.String()).Inc()
				logger := log.WithComponent("clustermgr").Cluster(m.ID).Zone(zoneID).Logger()
				logger.Error().Err(err).Msg("zone fetch failed")
				m.setState(types.ClusterStateFailure, fmt.Sprintf("Unable to fetch zone %s content", zoneID))
				m.appendLog(fmt.Sprintf("Unable to fetch zone %s content", zoneID))
				if m.broker != nil {
					m.broker.Publish(&events.Event{
						Type:    events.EventZoneFetchFailed,
						ZoneID:  zoneID,
						Message: err.Error(),
					})
				}
				return true
			}

			m.mu.Lock()
			zr.Content = content
			m.mu.Unlock()
			m.appendLog(fmt.Sprintf("Zone content for zone %s fetched", zoneID))
			progressed = true
		}

		m.mu.Lock()
		setupDone := zr.SetupDone
		content := zr.Content
		m.mu.Unlock()

		if !setupDone {
			m.appendLog(fmt.Sprintf("Setting up zone %s", zoneID))

			results := fanOut(nodeIDs, func(id uuid.UUID) (struct{}, error) {
				client, ok := m.nodes.Client(id)
				if !ok {
					return struct{}{}, fmt.Errorf("clustermgr: node %s has no client", id)
				}
				return struct{}{}, client.ZoneAdd(ctx, binding.zone.Name, policyName, content)
			})

			failed := false
			for id, item := range results {
				if item.Err != nil {
					failed = true
					m.appendLog(fmt.Sprintf("Setting up zone %s on node %s failed: %v", zoneID, id, item.Err))
					if m.broker != nil {
						m.broker.Publish(&events.Event{
							Type:    events.EventZoneSetupFailed,
							ZoneID:  zoneID,
							NodeID:  id,
							Message: item.Err.Error(),
						})
					}
				}
			}
			if !failed {
				m.mu.Lock()
				zr.SetupDone = true
				m.mu.Unlock()
				m.appendLog(fmt.Sprintf("Zone %s setup ok", zoneID))
			}
			progressed = true
		}
	}

	return progressed
}
