package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestInitDefaultsToInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{JSONOutput: true, Output: &buf})

	Logger.Debug().Msg("should be dropped")
	if buf.Len() != 0 {
		t.Errorf("Init() default level let a debug line through: %q", buf.String())
	}

	Logger.Info().Msg("should be kept")
	if buf.Len() == 0 {
		t.Error("Init() default level dropped an info line")
	}
}

func TestInitHonorsDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	Logger.Debug().Msg("debug line")
	if buf.Len() == 0 {
		t.Error("Init(DebugLevel) dropped a debug line")
	}
}

func TestWithComponentSetsField(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{JSONOutput: true, Output: &buf})

	logger := WithComponent("watcher").Logger()
	logger.Info().Msg("probing")

	var fields map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &fields); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if fields["component"] != "watcher" {
		t.Errorf("component = %v, want watcher", fields["component"])
	}
}

func TestScopeComposesClusterNodeAndZone(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{JSONOutput: true, Output: &buf})

	clusterID, nodeID, zoneID := uuid.New(), uuid.New(), uuid.New()
	logger := WithComponent("clustermgr").
		Cluster(clusterID).
		Node(nodeID).
		Zone(zoneID).
		Logger()
	logger.Error().Msg("zone setup failed")

	var fields map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &fields); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if fields["cluster_id"] != clusterID.String() {
		t.Errorf("cluster_id = %v, want %s", fields["cluster_id"], clusterID)
	}
	if fields["node_id"] != nodeID.String() {
		t.Errorf("node_id = %v, want %s", fields["node_id"], nodeID)
	}
	if fields["zone_id"] != zoneID.String() {
		t.Errorf("zone_id = %v, want %s", fields["zone_id"], zoneID)
	}
	if fields["component"] != "clustermgr" {
		t.Errorf("component = %v, want clustermgr", fields["component"])
	}
}

func TestScopeIsImmutablePerBranch(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{JSONOutput: true, Output: &buf})

	base := WithComponent("watcher")
	base.Node(uuid.New())

	buf.Reset()
	logger := base.Logger()
	logger.Info().Msg("no node_id here")

	var fields map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &fields); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if _, ok := fields["node_id"]; ok {
		t.Error("base Scope picked up a field set on a derived branch")
	}
}
