package clustermgr

import "fmt"

// ConfigError reports an invalid cluster descriptor at start-up: missing
// policy, malformed zone record. It is fatal to that Cluster Manager alone.
type ConfigError struct {
	ClusterID string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("clustermgr: cluster %s: %s", e.ClusterID, e.Reason)
}

// InvariantError reports an impossible situation that the reconciliation
// logic assumed could never happen, such as an UNKNOWN node inside the
// OPERATIONAL code path. Fatal: the caller should halt the cluster loop.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("clustermgr: invariant violated: %s", e.Reason)
}
