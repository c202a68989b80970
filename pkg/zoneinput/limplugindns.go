package zoneinput

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// InputTypeLimPluginDNS is the only zone input variant this build of ORR
// ships: a zone whose content is fetched from a DNS plugin endpoint
// reachable at {host, port} via a DNS.ReadZone RPC.
const InputTypeLimPluginDNS = "lim_plugin_dns"

// limPluginDNSConfig is the opaque input_data payload for this variant.
type limPluginDNSConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Software string `json:"software,omitempty"`
}

// LimPluginDNSFetcher retrieves zone content from a lim-plugin-dns
// endpoint over HTTP+JSON, the same transport agentrpc uses for node
// agents.
type LimPluginDNSFetcher struct {
	zoneName string
	cfg      limPluginDNSConfig
	client   *http.Client
}

// NewLimPluginDNSFetcher builds and validates a Fetcher for the
// lim_plugin_dns variant. It satisfies zoneinput.FactoryFunc.
func NewLimPluginDNSFetcher(zoneName string, data json.RawMessage) (Fetcher, error) {
	f := &LimPluginDNSFetcher{
		zoneName: zoneName,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
	if err := f.Validate(data); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks {host, port, software?} per the lim_plugin_dns contract.
func (f *LimPluginDNSFetcher) Validate(data json.RawMessage) error {
	var cfg limPluginDNSConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("zoneinput: lim_plugin_dns: invalid input_data: %w", err)
	}
	if cfg.Host == "" {
		return fmt.Errorf("zoneinput: lim_plugin_dns: host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("zoneinput: lim_plugin_dns: port %d is out of range", cfg.Port)
	}
	f.cfg = cfg
	return nil
}

// Fetch calls DNS.ReadZone on the configured endpoint and returns the zone
// content verbatim.
func (f *LimPluginDNSFetcher) Fetch(ctx context.Context) (string, error) {
	reqBody, err := json.Marshal(struct {
		File      string `json:"file"`
		Software  string `json:"software,omitempty"`
		AsContent bool   `json:"as_content"`
	}{File: f.zoneName, Software: f.cfg.Software, AsContent: true})
	if err != nil {
		return "", fmt.Errorf("zoneinput: marshal DNS.ReadZone request: %w", err)
	}

	url := fmt.Sprintf("http://%s:%d/DNS.ReadZone", f.cfg.Host, f.cfg.Port)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("zoneinput: build DNS.ReadZone request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return "", &FetchError{Zone: f.zoneName, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{Zone: f.zoneName, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &FetchError{Zone: f.zoneName, Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))}
	}

	var decoded struct {
		Zone struct {
			Content string `json:"content"`
		} `json:"zone"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("zoneinput: decode DNS.ReadZone response: %w", err)
	}
	return decoded.Zone.Content, nil
}

// FetchError wraps a failure to retrieve zone content from its input.
type FetchError struct {
	Zone string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("zoneinput: fetch zone %q: %v", e.Zone, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
