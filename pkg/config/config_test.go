package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "orrd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "storage:\n  dsn: postgres://localhost/orr\n")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.Server.MetricsAddr)
	assert.Equal(t, ":9091", c.Server.HealthAddr)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, 5*time.Second, c.Watcher.Interval)
	assert.Equal(t, 10*time.Second, c.Cluster.MaxInterval)
}

func TestLoadRequiresDSN(t *testing.T) {
	path := writeConfig(t, "server:\n  metrics_addr: \":9999\"\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadHonorsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
storage:
  dsn: postgres://localhost/orr
watcher:
  interval: 2s
cluster:
  max_interval: 20s
`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, c.Watcher.Interval)
	assert.Equal(t, 20*time.Second, c.Cluster.MaxInterval)
}
