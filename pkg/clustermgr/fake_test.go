package clustermgr

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/jelu/lim-plugin-orr/pkg/agentrpc"
	"github.com/jelu/lim-plugin-orr/pkg/types"
)

// fakeRPC is a test double for agentrpc.RPC: every call is recorded and
// every outcome configurable, so reconciliation logic can be exercised
// without a real agent.
type fakeRPC struct {
	mu sync.Mutex

	calls []string

	versions    *agentrpc.VersionsResponse
	versionsErr error

	hsmMutated    bool
	hsmErr        error
	policyMutated bool
	policyErr     error

	startErr  error
	reloadErr error

	zoneAddErr    error
	zoneRemoveErr error
}

func (f *fakeRPC) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeRPC) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeRPC) Ping(ctx context.Context) error {
	f.record("Ping")
	return nil
}

func (f *fakeRPC) Versions(ctx context.Context) (*agentrpc.VersionsResponse, error) {
	f.record("Versions")
	return f.versions, f.versionsErr
}

func (f *fakeRPC) SetupHSM(ctx context.Context, name string, data json.RawMessage) (bool, error) {
	f.record("SetupHSM")
	return f.hsmMutated, f.hsmErr
}

func (f *fakeRPC) SetupPolicy(ctx context.Context, name string, data json.RawMessage) (bool, error) {
	f.record("SetupPolicy")
	return f.policyMutated, f.policyErr
}

func (f *fakeRPC) StartOpenDNSSEC(ctx context.Context) error {
	f.record("StartOpenDNSSEC")
	return f.startErr
}

func (f *fakeRPC) ReloadOpenDNSSEC(ctx context.Context) error {
	f.record("ReloadOpenDNSSEC")
	return f.reloadErr
}

func (f *fakeRPC) ZoneAdd(ctx context.Context, zoneName, policyName, content string) error {
	f.record("ZoneAdd")
	return f.zoneAddErr
}

func (f *fakeRPC) ZoneRemove(ctx context.Context, zoneName string) error {
	f.record("ZoneRemove")
	return f.zoneRemoveErr
}

var _ agentrpc.RPC = (*fakeRPC)(nil)

func goodVersions() *agentrpc.VersionsResponse {
	return &agentrpc.VersionsResponse{
		Plugin: map[string]string{
			"Agent":      "0.19",
			"OpenDNSSEC": "0.14",
		},
		Program: map[string]string{
			"ods-control":   "1",
			"ods-signerd":   "1.3.15",
			"ods-signer":    "1.3.15",
			"ods-enforcerd": "1.3.15",
			"ods-ksmutil":   "1.3.15",
		},
	}
}

// fakeNodeSource is a test double for NodeSource: a plain map of node
// states and RPC clients, mutated directly by tests instead of a real
// liveness-probing tick loop.
type fakeNodeSource struct {
	mu      sync.Mutex
	states  map[uuid.UUID]types.NodeState
	clients map[uuid.UUID]agentrpc.RPC
}

func newFakeNodeSource() *fakeNodeSource {
	return &fakeNodeSource{
		states:  make(map[uuid.UUID]types.NodeState),
		clients: make(map[uuid.UUID]agentrpc.RPC),
	}
}

func (f *fakeNodeSource) Add(nodeID uuid.UUID, client agentrpc.RPC) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[nodeID] = types.NodeStateUnknown
	f.clients[nodeID] = client
}

func (f *fakeNodeSource) Remove(nodeID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, nodeID)
	delete(f.clients, nodeID)
}

func (f *fakeNodeSource) SetState(nodeID uuid.UUID, state types.NodeState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[nodeID]; ok {
		f.states[nodeID] = state
	}
}

func (f *fakeNodeSource) State(nodeID uuid.UUID) (types.NodeState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[nodeID]
	return s, ok
}

func (f *fakeNodeSource) Snapshot() map[uuid.UUID]types.NodeState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]types.NodeState, len(f.states))
	for id, s := range f.states {
		out[id] = s
	}
	return out
}

func (f *fakeNodeSource) Client(nodeID uuid.UUID) (agentrpc.RPC, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[nodeID]
	return c, ok
}

func (f *fakeNodeSource) Start() {}
func (f *fakeNodeSource) Stop()  {}

// swapClient swaps in a fakeRPC client for a node already registered via
// New (which wires real agentrpc.Client instances).
// Tests call this right after New to replace them with controllable fakes.
func (f *fakeNodeSource) swapClient(nodeID uuid.UUID, client agentrpc.RPC) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients[nodeID] = client
}

var _ NodeSource = (*fakeNodeSource)(nil)

// fakeFetcher is a test double for zoneinput.Fetcher.
type fakeFetcher struct {
	content string
	err     error
}

func (f *fakeFetcher) Validate(data json.RawMessage) error { return nil }

func (f *fakeFetcher) Fetch(ctx context.Context) (string, error) {
	return f.content, f.err
}

