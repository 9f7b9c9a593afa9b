// Package playback is a typed client for the playback backend's HTTP API.
package playback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/latoulicious/Spotifm/pkg/radio"
)

const (
	DefaultBaseURL      = "http://streamer:9090"
	DefaultTrackURLBase = "https://open.spotify.com/track/"
	DefaultTimeout      = 10 * time.Second

	// SearchLimit is how many hits a search command asks for.
	SearchLimit = 5

	maxBodyBytes = 1 << 20
)

// Observer is told about every backend request once it completes.
type Observer func(endpoint string, elapsed time.Duration, err error)

// Client talks to the playback backend. Every call is a one-shot request
// bounded by the HTTP client's timeout and the caller's context.
type Client struct {
	baseURL      string
	trackURLBase string
	httpClient   *http.Client
	observe      Observer
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTrackURLBase sets the prefix NowPlayingURL puts in front of a track ID.
func WithTrackURLBase(base string) Option {
	return func(c *Client) {
		c.trackURLBase = base
	}
}

// WithObserver registers a request observer, e.g. for metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observe = o
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		trackURLBase: DefaultTrackURLBase,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NowPlaying returns the track currently playing.
func (c *Client) NowPlaying(ctx context.Context) (radio.TrackInfo, error) {
	return c.track(ctx, "/np", "/np")
}

// Skip skips the current track and returns the one now playing.
func (c *Client) Skip(ctx context.Context) (radio.TrackInfo, error) {
	return c.track(ctx, "/skip", "/skip")
}

// Previous goes back one track.
func (c *Client) Previous(ctx context.Context) (radio.TrackInfo, error) {
	return c.track(ctx, "/prev", "/prev")
}

// Next advances to the next track.
func (c *Client) Next(ctx context.Context) (radio.TrackInfo, error) {
	return c.track(ctx, "/next", "/next")
}

// Shuffle shuffles the backend's queue. The queue it answers with is not
// used beyond checking that it is valid JSON.
func (c *Client) Shuffle(ctx context.Context) error {
	body, err := c.get(ctx, "/shuffle", "/shuffle", nil)
	if err != nil {
		return err
	}
	if !json.Valid(body) {
		return fmt.Errorf("GET /shuffle: invalid JSON: %w", radio.ErrMalformedResponse)
	}
	return nil
}

// NowPlayingURL returns a link to the track currently playing.
func (c *Client) NowPlayingURL(ctx context.Context) (string, error) {
	track, err := c.NowPlaying(ctx)
	if err != nil {
		return "", err
	}
	if track.ID == "" {
		return "", fmt.Errorf("now playing track has no id: %w", radio.ErrMalformedResponse)
	}
	return c.trackURLBase + track.ID, nil
}

// Search returns up to SearchLimit tracks matching query. No hits is not an
// error.
func (c *Client) Search(ctx context.Context, query string) ([]radio.TrackInfo, error) {
	return c.search(ctx, query, SearchLimit)
}

// Queue appends the best match for query to the backend's queue.
func (c *Client) Queue(ctx context.Context, query string) (radio.TrackInfo, error) {
	return c.action(ctx, "/queue", query)
}

// Play queues the best match for query and skips to it.
func (c *Client) Play(ctx context.Context, query string) (radio.TrackInfo, error) {
	return c.action(ctx, "/play", query)
}

func (c *Client) action(ctx context.Context, endpoint, query string) (radio.TrackInfo, error) {
	hits, err := c.search(ctx, query, 1)
	if err != nil {
		return radio.TrackInfo{}, err
	}
	if len(hits) == 0 {
		return radio.TrackInfo{}, fmt.Errorf("no track matches %q: %w", query, radio.ErrMalformedResponse)
	}

	id := hits[0].ID
	if id == "" {
		return radio.TrackInfo{}, fmt.Errorf("search hit %q has no id: %w", hits[0].Title, radio.ErrMalformedResponse)
	}
	return c.track(ctx, endpoint, endpoint+"/"+url.PathEscape(id))
}

func (c *Client) search(ctx context.Context, query string, limit int) ([]radio.TrackInfo, error) {
	path := "/search/track/" + strconv.Itoa(limit)
	body, err := c.get(ctx, "/search/track", path, url.Values{"q": {query}})
	if err != nil {
		return nil, err
	}
	return decodeTracks(body)
}

func (c *Client) track(ctx context.Context, endpoint, path string) (radio.TrackInfo, error) {
	body, err := c.get(ctx, endpoint, path, nil)
	if err != nil {
		return radio.TrackInfo{}, err
	}

	track, err := decodeTrack(body)
	if err != nil {
		return radio.TrackInfo{}, fmt.Errorf("GET %s: %w", path, err)
	}
	return track, nil
}

// get performs a GET and returns the body of a response that is neither a
// transport failure nor a backend-declared error.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values) ([]byte, error) {
	start := time.Now()
	body, err := c.do(ctx, path, query)
	if c.observe != nil {
		c.observe(endpoint, time.Since(start), err)
	}
	return body, err
}

func (c *Client) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", path, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w: %w", path, radio.ErrUnreachableBackend, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("GET %s: reading body: %w: %w", path, radio.ErrUnreachableBackend, err)
	}

	if backendErr := backendError(body); backendErr != nil {
		return nil, fmt.Errorf("GET %s: %w", path, backendErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d: %w", path, resp.StatusCode, radio.ErrMalformedResponse)
	}
	return body, nil
}
