package clustermgr

import (
	"github.com/google/uuid"

	"github.com/jelu/lim-plugin-orr/pkg/agentrpc"
)

// reconcileCache holds one cluster's reconciliation progress across ticks.
// Each idempotent phase checks its own flag before repeating work; AddNode
// and RemoveNode discard the whole cache by setting reset, which forces
// every phase to run again from scratch on the next tick, and a
// STANDBY-node P6 transition replaces the cache directly.
type reconcileCache struct {
	reset bool

	versions        map[uuid.UUID]*agentrpc.VersionsResponse
	versionsChecked bool

	hsmAttempted map[uuid.UUID]bool
	hsmsSetup    bool

	policySetup bool

	running bool

	reload map[uuid.UUID]bool
}

func newReconcileCache() reconcileCache {
	return reconcileCache{
		versions:     make(map[uuid.UUID]*agentrpc.VersionsResponse),
		hsmAttempted: make(map[uuid.UUID]bool),
		reload:       make(map[uuid.UUID]bool),
	}
}
