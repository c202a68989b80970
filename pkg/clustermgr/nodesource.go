package clustermgr

import (
	"github.com/google/uuid"

	"github.com/jelu/lim-plugin-orr/pkg/agentrpc"
	"github.com/jelu/lim-plugin-orr/pkg/types"
)

// NodeSource is the subset of *watcher.Watcher a Cluster Manager depends
// on: liveness state and per-node RPC access. Tests substitute a fake so
// reconciliation phases can be exercised without real agents or a real
// ticking probe loop.
type NodeSource interface {
	Add(nodeID uuid.UUID, client agentrpc.RPC)
	Remove(nodeID uuid.UUID)
	SetState(nodeID uuid.UUID, state types.NodeState)
	State(nodeID uuid.UUID) (types.NodeState, bool)
	Snapshot() map[uuid.UUID]types.NodeState
	Client(nodeID uuid.UUID) (agentrpc.RPC, bool)
	Start()
	Stop()
}
