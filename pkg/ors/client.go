// Package ors provides a client for the OpenRouteService isochrones and
// health endpoints.
package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/catchment-cli/internal/resilience"
)

// Default base URL for a self-hosted ORS instance.
const defaultBaseURL = "http://localhost:8080/ors"

// DefaultProfile is the routing profile used when none is set on a request.
const DefaultProfile = "driving-car"

// Client defines the ORS operations consumed by the analysis pipeline.
type Client interface {
	// Isochrones requests a drive-time polygon for one location at one time
	// range. The backend deployment accepts a single range per request;
	// callers needing N thresholds issue N calls.
	Isochrones(ctx context.Context, req IsochroneRequest) (*FeatureCollection, error)

	// Health reports the readiness of the routing backend.
	Health(ctx context.Context) (*HealthStatus, error)
}

// IsochroneRequest describes one isochrone computation.
type IsochroneRequest struct {
	Lat          float64
	Lon          float64
	Profile      string // defaults to DefaultProfile
	RangeSeconds int
	Attributes   []string
}

// isochroneBody is the JSON body for POST /v2/isochrones/{profile}.
// ORS expects coordinates as [lon, lat].
type isochroneBody struct {
	Locations  [][]float64 `json:"locations"`
	Range      []int       `json:"range"`
	RangeType  string      `json:"range_type"`
	Attributes []string    `json:"attributes,omitempty"`
}

// FeatureCollection is the GeoJSON response from the isochrones endpoint.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one isochrone feature. Geometry is kept raw so callers can
// decode it with their geometry library of choice.
type Feature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// HealthStatus is the response from GET /v2/health.
type HealthStatus struct {
	Status string `json:"status"`
}

// Ready reports whether the backend has finished loading its graph.
func (h *HealthStatus) Ready() bool {
	return h != nil && h.Status == "ready"
}

// APIError is returned when ORS responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ors: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithAPIKey sets the Authorization header. Self-hosted instances usually
// need none.
func WithAPIKey(key string) Option {
	return func(c *httpClient) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second. Zero disables the limiter.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new ORS client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(2, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Isochrones(ctx context.Context, req IsochroneRequest) (*FeatureCollection, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "ors: rate limit")
		}
	}

	profile := req.Profile
	if profile == "" {
		profile = DefaultProfile
	}

	body := isochroneBody{
		Locations:  [][]float64{{req.Lon, req.Lat}},
		Range:      []int{req.RangeSeconds},
		RangeType:  "time",
		Attributes: req.Attributes,
	}

	var fc FeatureCollection
	if err := c.post(ctx, "/v2/isochrones/"+profile, body, &fc); err != nil {
		return nil, eris.Wrapf(err, "ors: isochrones (%.5f, %.5f) range %ds", req.Lat, req.Lon, req.RangeSeconds)
	}
	return &fc, nil
}

func (c *httpClient) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/health", nil)
	if err != nil {
		return nil, eris.Wrap(err, "ors: build health request")
	}

	var hs HealthStatus
	if err := c.do(req, &hs); err != nil {
		return nil, eris.Wrap(err, "ors: health")
	}
	return &hs, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: truncate(string(data), 512)}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return eris.Wrap(err, "decode response")
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
