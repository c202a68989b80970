package clustermgr

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jelu/lim-plugin-orr/pkg/types"
	"github.com/jelu/lim-plugin-orr/pkg/zoneinput"
)

const fakeInputType = "fake"

func newTestRegistry(fetcher *fakeFetcher) *zoneinput.Registry {
	r := zoneinput.NewRegistry()
	r.Register(fakeInputType, func(zoneName string, data json.RawMessage) (zoneinput.Fetcher, error) {
		return fetcher, nil
	})
	return r
}

func oneNodeConfig(nodeID uuid.UUID, zoneID uuid.UUID) types.ClusterConfig {
	return types.ClusterConfig{
		Cluster: types.Cluster{ID: uuid.New(), Name: "test-cluster", Mode: types.ClusterModeBackup},
		Nodes: []types.Node{
			{ID: nodeID, Name: "node-a", URI: "http://node-a.invalid", Mode: types.NodeModePrimary},
		},
		HSMs: []types.HSM{
			{ID: uuid.New(), Name: "softhsm", Data: json.RawMessage(`{"module":"/usr/lib/softhsm.so"}`)},
		},
		Policies: []types.Policy{
			{ID: uuid.New(), Name: "default", Data: json.RawMessage(`{"resign":"PT1H"}`)},
		},
		Zones: []types.Zone{
			{ID: zoneID, Name: "example.com", InputType: fakeInputType, InputData: json.RawMessage(`{}`)},
		},
	}
}

func TestColdStartReachesOperational(t *testing.T) {
	nodeID := uuid.New()
	zoneID := uuid.New()
	cfg := oneNodeConfig(nodeID, zoneID)

	fetcher := &fakeFetcher{content: "example.com. 3600 IN SOA ..."}
	registry := newTestRegistry(fetcher)

	nodes := newFakeNodeSource()
	mgr, err := New(cfg, nodes, registry)
	require.NoError(t, err)

	rpc := &fakeRPC{versions: goodVersions(), hsmMutated: true, policyMutated: true}
	nodes.swapClient(nodeID, rpc)
	nodes.SetState(nodeID, types.NodeStateOnline)

	for i := 0; i < 6; i++ {
		mgr.tick()
	}

	state, _ := mgr.State()
	assert.Equal(t, types.ClusterStateOperational, state)

	var messages []string
	for _, entry := range mgr.Log() {
		messages = append(messages, entry.Message)
	}
	joined := strings.Join(messages, "\n")

	hsmID := cfg.HSMs[0].ID
	policyID := cfg.Policies[0].ID

	expectedInOrder := []string{
		"Fetching version information from nodes",
		"Version information correct and supported",
		"Setting up HSM " + hsmID.String(),
		"All HSMs setup ok",
		"Setting up Policy " + policyID.String(),
		"Policy setup ok",
		"Verifying OpenDNSSEC is running and starting if not",
		"Reload OpenDNSSEC on nodes that need it",
		"Fetching zone content for zone " + zoneID.String(),
		"Zone content for zone " + zoneID.String() + " fetched",
		"Setting up zone " + zoneID.String(),
		"Zone " + zoneID.String() + " setup ok",
		"Cluster operational",
	}
	searchFrom := 0
	for _, want := range expectedInOrder {
		idx := strings.Index(joined[searchFrom:], want)
		require.GreaterOrEqual(t, idx, 0, "expected log to contain %q after position %d; got:\n%s", want, searchFrom, joined)
		searchFrom += idx + len(want)
	}
}

func TestVersionMismatchFailsNodeAndCluster(t *testing.T) {
	nodeID := uuid.New()
	zoneID := uuid.New()
	cfg := oneNodeConfig(nodeID, zoneID)

	fetcher := &fakeFetcher{content: "zone content"}
	registry := newTestRegistry(fetcher)

	nodes := newFakeNodeSource()
	mgr, err := New(cfg, nodes, registry)
	require.NoError(t, err)

	bad := goodVersions()
	bad.Program["ods-signerd"] = "1.3.13"
	rpc := &fakeRPC{versions: bad}
	nodes.swapClient(nodeID, rpc)
	nodes.SetState(nodeID, types.NodeStateOnline)

	mgr.tick()

	nodeState, _ := nodes.State(nodeID)
	assert.Equal(t, types.NodeStateFailure, nodeState)

	want := fmt.Sprintf("Software ods-signerd version 1.3.13 on node %s is not supported. Supported are minimum version 1.3.14 and maximum version 1.3.15", nodeID)
	var found bool
	for _, entry := range mgr.Log() {
		if entry.Message == want {
			found = true
		}
	}
	assert.True(t, found, "expected log to contain %q; got:\n%v", want, mgr.Log())

	mgr.tick()
	state, _ := mgr.State()
	assert.Equal(t, types.ClusterStateFailure, state)
}

func TestTransientOfflineReachesDegraded(t *testing.T) {
	nodeA, nodeB := uuid.New(), uuid.New()
	zoneID := uuid.New()
	cfg := oneNodeConfig(nodeA, zoneID)
	cfg.Nodes = append(cfg.Nodes, types.Node{ID: nodeB, Name: "node-b", URI: "http://node-b.invalid", Mode: types.NodeModeSecondary})

	fetcher := &fakeFetcher{content: "zone content"}
	registry := newTestRegistry(fetcher)

	nodes := newFakeNodeSource()
	mgr, err := New(cfg, nodes, registry)
	require.NoError(t, err)

	rpcA := &fakeRPC{versions: goodVersions(), hsmMutated: true, policyMutated: true}
	nodes.swapClient(nodeA, rpcA)
	nodes.SetState(nodeA, types.NodeStateOnline)
	nodes.SetState(nodeB, types.NodeStateOffline)

	for i := 0; i < 6; i++ {
		mgr.tick()
	}

	state, _ := mgr.State()
	assert.Equal(t, types.ClusterStateDegraded, state)

	var found bool
	for _, entry := range mgr.Log() {
		if entry.Message == "Nodes failure:0 offline:1" {
			found = true
		}
	}
	assert.True(t, found)
	assert.GreaterOrEqual(t, rpcA.callCount("ZoneAdd"), 1, "zone setup should still fan out to the online node")
}

func TestSecondPassMakesNoRedundantSetupCalls(t *testing.T) {
	nodeID := uuid.New()
	zoneID := uuid.New()
	cfg := oneNodeConfig(nodeID, zoneID)

	fetcher := &fakeFetcher{content: "zone content"}
	registry := newTestRegistry(fetcher)

	nodes := newFakeNodeSource()
	mgr, err := New(cfg, nodes, registry)
	require.NoError(t, err)

	rpc := &fakeRPC{versions: goodVersions(), hsmMutated: true, policyMutated: true}
	nodes.swapClient(nodeID, rpc)
	nodes.SetState(nodeID, types.NodeStateOnline)

	for i := 0; i < 6; i++ {
		mgr.tick()
	}
	versionCalls := rpc.callCount("Versions")
	hsmCalls := rpc.callCount("SetupHSM")
	policyCalls := rpc.callCount("SetupPolicy")

	mgr.tick()

	assert.Equal(t, versionCalls, rpc.callCount("Versions"))
	assert.Equal(t, hsmCalls, rpc.callCount("SetupHSM"))
	assert.Equal(t, policyCalls, rpc.callCount("SetupPolicy"))
}

func TestNodeAddFlagsCacheReset(t *testing.T) {
	nodeID := uuid.New()
	zoneID := uuid.New()
	cfg := oneNodeConfig(nodeID, zoneID)

	fetcher := &fakeFetcher{content: "zone content"}
	registry := newTestRegistry(fetcher)

	nodes := newFakeNodeSource()
	mgr, err := New(cfg, nodes, registry)
	require.NoError(t, err)

	rpc := &fakeRPC{versions: goodVersions(), hsmMutated: true, policyMutated: true}
	nodes.swapClient(nodeID, rpc)
	nodes.SetState(nodeID, types.NodeStateOnline)

	for i := 0; i < 6; i++ {
		mgr.tick()
	}
	state, _ := mgr.State()
	require.Equal(t, types.ClusterStateOperational, state)

	newNode := types.Node{ID: uuid.New(), Name: "node-c", URI: "http://node-c.invalid"}
	mgr.AddNode(newNode)

	mgr.tick()
	state, reason := mgr.State()
	assert.Equal(t, types.ClusterStateInitializing, state)
	assert.Equal(t, "Resetting", reason)
}

func TestZoneFetchFailureTransitionsToFailure(t *testing.T) {
	nodeID := uuid.New()
	zoneID := uuid.New()
	cfg := oneNodeConfig(nodeID, zoneID)

	fetcher := &fakeFetcher{err: assertError("zone input unavailable")}
	registry := newTestRegistry(fetcher)

	nodes := newFakeNodeSource()
	mgr, err := New(cfg, nodes, registry)
	require.NoError(t, err)

	rpc := &fakeRPC{versions: goodVersions(), hsmMutated: true, policyMutated: true}
	nodes.swapClient(nodeID, rpc)
	nodes.SetState(nodeID, types.NodeStateOnline)

	for i := 0; i < 6; i++ {
		mgr.tick()
	}

	state, _ := mgr.State()
	assert.Equal(t, types.ClusterStateFailure, state)

	var found bool
	for _, entry := range mgr.Log() {
		if strings.Contains(entry.Message, "Unable to fetch zone") && strings.Contains(entry.Message, "content") {
			found = true
		}
	}
	assert.True(t, found)
}

type assertError string

func (e assertError) Error() string { return string(e) }

func TestCheckInvariantsPanicsOnUnknownNodeWhileOperational(t *testing.T) {
	nodeID := uuid.New()
	zoneID := uuid.New()
	cfg := oneNodeConfig(nodeID, zoneID)

	fetcher := &fakeFetcher{content: "zone content"}
	registry := newTestRegistry(fetcher)

	nodes := newFakeNodeSource()
	mgr, err := New(cfg, nodes, registry)
	require.NoError(t, err)

	mgr.mu.Lock()
	mgr.state = types.ClusterStateOperational
	mgr.mu.Unlock()
	nodes.SetState(nodeID, types.NodeStateUnknown)

	assert.Panics(t, func() {
		mgr.checkInvariants(types.ClusterStateOperational)
	})
}
