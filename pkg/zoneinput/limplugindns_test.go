package zoneinput

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsMissingHost(t *testing.T) {
	_, err := NewLimPluginDNSFetcher("example.com", json.RawMessage(`{"port":53}`))
	assert.Error(t, err)
}

func TestValidateRejectsBadPort(t *testing.T) {
	_, err := NewLimPluginDNSFetcher("example.com", json.RawMessage(`{"host":"127.0.0.1","port":0}`))
	assert.Error(t, err)
}

func TestFetchReturnsZoneContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/DNS.ReadZone", r.URL.Path)

		var req struct {
			File      string `json:"file"`
			Software  string `json:"software"`
			AsContent bool   `json:"as_content"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "example.com", req.File)
		assert.Equal(t, "ods-dns-plugin", req.Software)
		assert.True(t, req.AsContent)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"zone": map[string]string{"content": "example.com. IN SOA ..."},
		})
	}))
	defer srv.Close()

	host, portStr, _ := strings.Cut(strings.TrimPrefix(srv.URL, "http://"), ":")
	port, _ := strconv.Atoi(portStr)

	data, _ := json.Marshal(map[string]interface{}{"host": host, "port": port, "software": "ods-dns-plugin"})
	f, err := NewLimPluginDNSFetcher("example.com", data)
	require.NoError(t, err)

	content, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "example.com. IN SOA ...", content)
}

func TestDefaultRegistryBuildsLimPluginDNS(t *testing.T) {
	data, _ := json.Marshal(map[string]interface{}{"host": "127.0.0.1", "port": 8053})
	f, err := Default().Build(InputTypeLimPluginDNS, "example.com", data)
	require.NoError(t, err)
	assert.NotNil(t, f)
}

func TestDefaultRegistryRejectsUnknownInputType(t *testing.T) {
	_, err := Default().Build("something_else", "example.com", json.RawMessage(`{}`))
	assert.Error(t, err)
}
