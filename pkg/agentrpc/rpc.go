package agentrpc

import (
	"context"
	"encoding/json"
)

// RPC is the set of agent operations a Cluster Manager fans out across a
// cluster's nodes. *Client satisfies it; tests substitute a fake so
// reconciliation logic can be exercised without a real agent listening.
type RPC interface {
	Ping(ctx context.Context) error
	Versions(ctx context.Context) (*VersionsResponse, error)
	SetupHSM(ctx context.Context, name string, data json.RawMessage) (bool, error)
	SetupPolicy(ctx context.Context, name string, data json.RawMessage) (bool, error)
	StartOpenDNSSEC(ctx context.Context) error
	ReloadOpenDNSSEC(ctx context.Context) error
	ZoneAdd(ctx context.Context, zoneName, policyName, content string) error
	ZoneRemove(ctx context.Context, zoneName string) error
}

var _ RPC = (*Client)(nil)
