package watcher

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jelu/lim-plugin-orr/pkg/agentrpc"
	"github.com/jelu/lim-plugin-orr/pkg/types"
)

func TestTickMarksReachableUnknownNodeStandby(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version":"0.19"}`))
	}))
	defer srv.Close()

	w := New(50 * time.Millisecond)
	nodeID := uuid.New()
	w.Add(nodeID, agentrpc.New(nodeID, srv.URL))

	w.tick()

	state, ok := w.State(nodeID)
	require.True(t, ok)
	assert.Equal(t, types.NodeStateStandby, state)
}

func TestTickMarksUnreachableNodeOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srv.Close() // closed immediately: connection will be refused

	w := New(50 * time.Millisecond)
	nodeID := uuid.New()
	w.Add(nodeID, agentrpc.New(nodeID, srv.URL))

	w.tick()

	state, ok := w.State(nodeID)
	require.True(t, ok)
	assert.Equal(t, types.NodeStateOffline, state)
}

func TestTickLeavesFreshOnlineNodeUnpinged(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version":"0.19"}`))
	}))
	defer srv.Close()

	w := New(time.Second)
	nodeID := uuid.New()
	w.Add(nodeID, agentrpc.New(nodeID, srv.URL))
	w.tick() // first successful Ping: UNKNOWN -> STANDBY, lastSeen set
	w.SetState(nodeID, types.NodeStateOnline)
	calls = 0

	w.tick()

	assert.Equal(t, 0, calls, "a freshly-ONLINE node should not be pinged again before it goes stale")
}

func TestSetStateOverridesUntilNextTick(t *testing.T) {
	w := New(time.Second)
	nodeID := uuid.New()
	w.Add(nodeID, agentrpc.New(nodeID, "http://127.0.0.1:0"))

	w.SetState(nodeID, types.NodeStateStandby)

	state, ok := w.State(nodeID)
	require.True(t, ok)
	assert.Equal(t, types.NodeStateStandby, state)
}

func TestRemoveDropsNodeFromSnapshot(t *testing.T) {
	w := New(time.Second)
	nodeID := uuid.New()
	w.Add(nodeID, agentrpc.New(nodeID, "http://127.0.0.1:0"))
	w.Remove(nodeID)

	_, ok := w.State(nodeID)
	assert.False(t, ok)
}
