// Package icecast reads listener statistics from an Icecast server.
package icecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/latoulicious/Spotifm/pkg/radio"
)

const (
	DefaultBaseURL = "http://icecast2:8000"
	DefaultMount   = "/listen"
	DefaultTimeout = 10 * time.Second
	statusEndpoint = "/status-json.xsl"
)

// Client polls the Icecast status endpoint.
type Client struct {
	baseURL    string
	mount      string
	httpClient *http.Client
}

// NewClient creates a client for the Icecast server at baseURL. mount selects
// which source to report when the server has several.
func NewClient(baseURL, mount string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if mount == "" {
		mount = DefaultMount
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		mount:      mount,
		httpClient: httpClient,
	}
}

// StreamURL is the address of the mount the relay plays.
func (c *Client) StreamURL() string {
	return c.baseURL + c.mount
}

type statusJSON struct {
	Icestats *struct {
		Source json.RawMessage `json:"source"`
	} `json:"icestats"`
}

type sourceJSON struct {
	ListenURL string `json:"listenurl"`
	Listeners *int   `json:"listeners"`
}

// ListenerCount returns the current number of listeners on the mount.
func (c *Client) ListenerCount(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statusEndpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w: %w", statusEndpoint, radio.ErrUnreachableAudioSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("GET %s: status %d: %w", statusEndpoint, resp.StatusCode, radio.ErrMalformedResponse)
	}

	var status statusJSON
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return 0, fmt.Errorf("failed to decode icecast status: %w: %v", radio.ErrMalformedResponse, err)
	}
	if status.Icestats == nil || len(status.Icestats.Source) == 0 {
		return 0, fmt.Errorf("icecast status has no source: %w", radio.ErrMalformedResponse)
	}

	source, err := c.pickSource(status.Icestats.Source)
	if err != nil {
		return 0, err
	}
	if source.Listeners == nil {
		return 0, fmt.Errorf("icecast source has no listener count: %w", radio.ErrMalformedResponse)
	}
	if *source.Listeners < 0 {
		return 0, fmt.Errorf("icecast reported %d listeners: %w", *source.Listeners, radio.ErrMalformedResponse)
	}
	return *source.Listeners, nil
}

// pickSource handles Icecast reporting a single mount as an object and
// several mounts as an array.
func (c *Client) pickSource(raw json.RawMessage) (sourceJSON, error) {
	var single sourceJSON
	if raw[0] != '[' {
		if err := json.Unmarshal(raw, &single); err != nil {
			return sourceJSON{}, fmt.Errorf("failed to decode icecast source: %w: %v", radio.ErrMalformedResponse, err)
		}
		return single, nil
	}

	var sources []sourceJSON
	if err := json.Unmarshal(raw, &sources); err != nil {
		return sourceJSON{}, fmt.Errorf("failed to decode icecast sources: %w: %v", radio.ErrMalformedResponse, err)
	}
	if len(sources) == 0 {
		return sourceJSON{}, fmt.Errorf("icecast has no active sources: %w", radio.ErrMalformedResponse)
	}
	for _, source := range sources {
		if strings.HasSuffix(source.ListenURL, c.mount) {
			return source, nil
		}
	}
	return sources[0], nil
}
