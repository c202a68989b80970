package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Node represents a remote signing node running the agent plugin.
type Node struct {
	ID        uuid.UUID
	Name      string
	URI       string // base URI of the agent RPC endpoint
	Mode      NodeMode
	State     NodeState
	LastSeen  time.Time
	LastError string
	Versions  map[string]string // component name -> reported version
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NodeMode describes the role a node plays within a cluster.
type NodeMode string

const (
	NodeModePrimary   NodeMode = "primary"
	NodeModeSecondary NodeMode = "secondary"
)

// NodeState is the Node Watcher's view of node liveness.
type NodeState string

const (
	NodeStateUnknown  NodeState = "unknown"
	NodeStateOffline  NodeState = "offline"
	NodeStateOnline   NodeState = "online"
	NodeStateFailure  NodeState = "failure"
	NodeStateStandby  NodeState = "standby"
	NodeStateDisabled NodeState = "disabled"
)

// Zone is a DNS zone kept signed and published across a cluster's nodes.
type Zone struct {
	ID        uuid.UUID
	Name      string
	InputType string          // zoneinput variant, e.g. "lim_plugin_dns"
	InputData json.RawMessage // opaque, validated and consumed by the matching Fetcher
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HSM describes a hardware or software security module configuration
// that a cluster's nodes must provision before signing can start.
type HSM struct {
	ID        uuid.UUID
	Name      string
	Data      json.RawMessage // opaque, passed through to SetupHSM unchanged
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Policy is an OpenDNSSEC signing policy applied to zones on a cluster.
type Policy struct {
	ID        uuid.UUID
	Name      string
	Data      json.RawMessage // opaque, passed through to SetupPolicy unchanged
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cluster groups a set of nodes, zones, HSMs and policies under one
// reconciliation loop and mode of operation.
type Cluster struct {
	ID        uuid.UUID
	Name      string
	Mode      ClusterMode
	State     ClusterState
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClusterMode controls how the Cluster Manager distributes signing
// responsibility across a cluster's nodes.
type ClusterMode string

const (
	ClusterModeBackup   ClusterMode = "backup"
	ClusterModeFailover ClusterMode = "failover"
	ClusterModeBalance  ClusterMode = "balance"
)

// ClusterState is the Cluster Manager's own reconciliation state,
// distinct from any individual node's state.
type ClusterState string

const (
	ClusterStateInitializing  ClusterState = "initializing"
	ClusterStateOperational   ClusterState = "operational"
	ClusterStateDegraded      ClusterState = "degraded"
	ClusterStateDisfunctional ClusterState = "disfunctional"
	ClusterStateFailure       ClusterState = "failure"
	ClusterStateDisabled      ClusterState = "disabled"
)

// ClusterConfig is the fully joined descriptor the Config Store hands to
// a Cluster Manager: a cluster plus the nodes, zones, HSMs and policies
// assigned to it.
type ClusterConfig struct {
	Cluster  Cluster
	Nodes    []Node
	Zones    []Zone
	HSMs     []HSM
	Policies []Policy
}

// ZoneRuntime is the Cluster Manager's per-cluster, per-zone reconciliation
// shadow: whether content has been fetched and pushed to the cluster's
// nodes, and whether the zone is locked against concurrent reconciliation
// or marked for deferred removal.
type ZoneRuntime struct {
	ZoneID        uuid.UUID
	Content       string
	FetchedAt     time.Time
	SetupDone     bool
	Locked        bool
	PendingRemove bool
	LastError     string
}
