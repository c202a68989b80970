package agentrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client talks to one remote signing node's agent over HTTP+JSON RPC. Every
// call is serialized behind a single per-node FIFO queue: the node's agent
// is single-threaded and cannot have two RPCs in flight at once.
type Client struct {
	NodeID uuid.UUID
	URI    string

	httpClient *http.Client
	queue      *queue
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client (primarily for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client bound to one node and starts its FIFO dispatcher.
func New(nodeID uuid.UUID, uri string, opts ...Option) *Client {
	c := &Client{
		NodeID: nodeID,
		URI:    uri,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.queue = newQueue()
	return c
}

// Close stops the client's dispatcher. Queued calls are not drained: once
// the dispatcher has exited, waiting and later calls return
// context.Canceled without being sent.
func (c *Client) Close() {
	c.queue.stop()
}

// call is a single RPC's namespace and method, joined as the teacher's HTTP
// checker joins a URL: "<uri>/<Namespace>.<Method>".
func (c *Client) call(ctx context.Context, namespace, method string, req, resp interface{}) error {
	return c.queue.run(ctx, func(ctx context.Context) error {
		return c.doRequest(ctx, namespace, method, req, resp)
	})
}

func (c *Client) doRequest(ctx context.Context, namespace, method string, req, resp interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("agentrpc: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s.%s", c.URI, namespace, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("agentrpc: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &TransportError{Namespace: namespace, Method: method, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &TransportError{Namespace: namespace, Method: method, Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return &TransportError{
			Namespace: namespace,
			Method:    method,
			Err:       fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, string(respBody)),
		}
	}

	if resp == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, resp); err != nil {
		return fmt.Errorf("agentrpc: decode response from %s.%s: %w", namespace, method, err)
	}
	return nil
}

// Ping checks basic agent reachability by asking for its own version.
func (c *Client) Ping(ctx context.Context) error {
	var resp struct {
		Version string `json:"version"`
	}
	return c.call(ctx, "Agent", "ReadVersion", struct{}{}, &resp)
}

// VersionsResponse is the decoded result of a Versions call: component name
// to reported version string, for both the plugin's own components and the
// OpenDNSSEC/SoftHSM programs it wraps.
type VersionsResponse struct {
	Plugin  map[string]string `json:"plugin"`
	Program map[string]string `json:"program"`
}

type pluginInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Loaded  bool   `json:"loaded"`
}

type programInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Versions composes Agent.ReadPlugins with OpenDNSSEC.ReadVersion and, if the
// SoftHSM plugin is reported loaded, SoftHSM.ReadVersion. Only plugins whose
// loaded flag is true are included in the result.
func (c *Client) Versions(ctx context.Context) (*VersionsResponse, error) {
	var plugins struct {
		Plugin []pluginInfo `json:"plugin"`
	}
	if err := c.call(ctx, "Agent", "ReadPlugins", struct{}{}, &plugins); err != nil {
		return nil, err
	}

	resp := &VersionsResponse{
		Plugin:  make(map[string]string),
		Program: make(map[string]string),
	}

	softHSMLoaded := false
	for _, p := range plugins.Plugin {
		if !p.Loaded {
			continue
		}
		resp.Plugin[p.Name] = p.Version
		if p.Name == "SoftHSM" {
			softHSMLoaded = true
		}
	}

	var odsVersion struct {
		Program []programInfo `json:"program"`
	}
	if err := c.call(ctx, "OpenDNSSEC", "ReadVersion", struct{}{}, &odsVersion); err != nil {
		return nil, err
	}
	for _, p := range odsVersion.Program {
		resp.Program[p.Name] = p.Version
	}

	if softHSMLoaded {
		var hsmVersion struct {
			Program []programInfo `json:"program"`
		}
		if err := c.call(ctx, "SoftHSM", "ReadVersion", struct{}{}, &hsmVersion); err != nil {
			return nil, err
		}
		for _, p := range hsmVersion.Program {
			resp.Program[p.Name] = p.Version
		}
	}

	return resp, nil
}

type repositoryReadResponse struct {
	Exists bool            `json:"exists"`
	Data   json.RawMessage `json:"data"`
}

// SetupHSM idempotently upserts a repository descriptor: reads the existing
// one by name, creates it if absent, updates it if the canonicalized JSON
// differs, and leaves it untouched if it already matches. mutated reports
// whether a create or update was actually issued, so callers can decide
// whether the node needs a signer reload.
func (c *Client) SetupHSM(ctx context.Context, name string, data json.RawMessage) (mutated bool, err error) {
	return c.setupRepository(ctx, "ReadRepository", "CreateRepository", "UpdateRepository", name, data)
}

// SetupPolicy idempotently upserts a signing policy, following the same
// read/create-or-update pattern as SetupHSM.
func (c *Client) SetupPolicy(ctx context.Context, name string, data json.RawMessage) (mutated bool, err error) {
	return c.setupRepository(ctx, "ReadPolicy", "CreatePolicy", "UpdatePolicy", name, data)
}

func (c *Client) setupRepository(ctx context.Context, readMethod, createMethod, updateMethod, name string, data json.RawMessage) (bool, error) {
	readReq := struct {
		Name string `json:"name"`
	}{Name: name}

	var existing repositoryReadResponse
	if err := c.call(ctx, "OpenDNSSEC", readMethod, readReq, &existing); err != nil {
		return false, err
	}

	writeReq := struct {
		Name string          `json:"name"`
		Data json.RawMessage `json:"data"`
	}{Name: name, Data: data}

	if !existing.Exists {
		if err := c.call(ctx, "OpenDNSSEC", createMethod, writeReq, nil); err != nil {
			return false, err
		}
		return true, nil
	}

	same, err := canonicalEqual(existing.Data, data)
	if err != nil {
		return false, fmt.Errorf("agentrpc: compare %s payload: %w", readMethod, err)
	}
	if same {
		return false, nil
	}
	if err := c.call(ctx, "OpenDNSSEC", updateMethod, writeReq, nil); err != nil {
		return false, err
	}
	return true, nil
}

// StartOpenDNSSEC starts the OpenDNSSEC daemon on the node.
func (c *Client) StartOpenDNSSEC(ctx context.Context) error {
	return c.call(ctx, "OpenDNSSEC", "UpdateControlStart", struct{}{}, nil)
}

// ReloadOpenDNSSEC asks the node's OpenDNSSEC enforcer to reload its config.
func (c *Client) ReloadOpenDNSSEC(ctx context.Context) error {
	return c.call(ctx, "OpenDNSSEC", "UpdateEnforcerUpdate", struct{}{}, nil)
}

// ZoneAdd lists the node's unsigned zones, creates or updates the zone's
// content on the DNS plugin, then ensures the zone is known to the enforcer
// under the given policy.
func (c *Client) ZoneAdd(ctx context.Context, zoneName, policyName, content string) error {
	var zones struct {
		Zones []string `json:"zones"`
	}
	if err := c.call(ctx, "DNS", "ReadZones", struct{}{}, &zones); err != nil {
		return err
	}

	dnsReq := struct {
		Zone    string `json:"zone"`
		Content string `json:"content"`
	}{Zone: zoneName, Content: content}

	exists := false
	unsignedPath := "unsigned/" + zoneName
	for _, z := range zones.Zones {
		if z == unsignedPath {
			exists = true
			break
		}
	}
	if exists {
		if err := c.call(ctx, "DNS", "UpdateZone", dnsReq, nil); err != nil {
			return err
		}
	} else {
		if err := c.call(ctx, "DNS", "CreateZone", dnsReq, nil); err != nil {
			return err
		}
	}

	var enforcerZones struct {
		Zones []struct {
			Name   string `json:"name"`
			Policy string `json:"policy"`
		} `json:"zones"`
	}
	if err := c.call(ctx, "OpenDNSSEC", "ReadEnforcerZoneList", struct{}{}, &enforcerZones); err != nil {
		return err
	}
	for _, z := range enforcerZones.Zones {
		if z.Name != zoneName {
			continue
		}
		if z.Policy != policyName {
			return &WrongPolicyError{Zone: zoneName, Want: policyName, Have: z.Policy}
		}
		return nil
	}

	req := struct {
		Zone       string `json:"zone"`
		Policy     string `json:"policy"`
		SignerConf string `json:"signerconf"`
		Input      string `json:"input"`
		Output     string `json:"output"`
	}{
		Zone:       zoneName,
		Policy:     policyName,
		SignerConf: "/var/lib/opendnssec/signconf/" + zoneName + ".xml",
		Input:      "/var/lib/opendnssec/unsigned/" + zoneName,
		Output:     "/var/lib/opendnssec/signed/" + zoneName,
	}
	return c.call(ctx, "OpenDNSSEC", "CreateEnforcerZone", req, nil)
}

// ZoneRemove removes a zone from the node entirely.
func (c *Client) ZoneRemove(ctx context.Context, zoneName string) error {
	req := struct {
		Zone string `json:"zone"`
	}{Zone: zoneName}
	return c.call(ctx, "OpenDNSSEC", "ZoneRemove", req, nil)
}

// WrongPolicyError reports that a zone already exists on a node under a
// different policy than the one the Cluster Manager wants to apply.
type WrongPolicyError struct {
	Zone string
	Want string
	Have string
}

func (e *WrongPolicyError) Error() string {
	return fmt.Sprintf("agentrpc: zone %s is assigned policy %q, want %q", e.Zone, e.Have, e.Want)
}

// TransportError wraps a failure to complete an RPC at the network or HTTP
// level, as distinct from the remote agent rejecting the call's content.
type TransportError struct {
	Namespace string
	Method    string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("agentrpc: %s.%s: %v", e.Namespace, e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
