// Package earthengine provides a client for the raster aggregation service
// that fronts the population dataset: image collection lookups and region
// reductions over GeoJSON geometries.
package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catchment-cli/internal/resilience"
)

// Client defines the raster operations consumed by the population aggregator.
type Client interface {
	// CollectionSize returns the number of images in a dataset dated within
	// [start, end).
	CollectionSize(ctx context.Context, dataset string, start, end time.Time) (int, error)

	// ReduceRegion applies a reducer over a region and returns the scalar
	// value for the requested band, or nil when the backend has no value
	// for it.
	ReduceRegion(ctx context.Context, req ReduceRequest) (*float64, error)

	// Health reports backend reachability.
	Health(ctx context.Context) error
}

// ReduceRequest describes one region reduction.
type ReduceRequest struct {
	Dataset string `json:"dataset"`
	Band    string `json:"band"`
	Reducer string `json:"reducer"` // e.g. "sum"

	// Snapshot selection: either a date window to mosaic, or the most
	// recent image when MostRecent is set.
	Start      string `json:"start,omitempty"` // RFC 3339 date
	End        string `json:"end,omitempty"`
	MostRecent bool   `json:"most_recent,omitempty"`

	Geometry    json.RawMessage `json:"geometry"` // GeoJSON geometry
	ScaleMeters int             `json:"scale_meters"`
	MaxPixels   int64           `json:"max_pixels"`
}

// reduceResponse carries the band value; a JSON null means the reduction
// produced no value for the band.
type reduceResponse struct {
	Value *float64 `json:"value"`
}

type sizeRequest struct {
	Dataset string `json:"dataset"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type sizeResponse struct {
	Size int `json:"size"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("earthengine: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout. Region reductions over large
// polygons can take a while.
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
}

// NewClient creates a new raster client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey: apiKey,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CollectionSize(ctx context.Context, dataset string, start, end time.Time) (int, error) {
	req := sizeRequest{
		Dataset: dataset,
		Start:   start.Format("2006-01-02"),
		End:     end.Format("2006-01-02"),
	}

	var resp sizeResponse
	if err := c.post(ctx, "/v1/collection/size", req, &resp); err != nil {
		return 0, eris.Wrapf(err, "earthengine: collection size %s", dataset)
	}
	return resp.Size, nil
}

func (c *httpClient) ReduceRegion(ctx context.Context, req ReduceRequest) (*float64, error) {
	var resp reduceResponse
	if err := c.post(ctx, "/v1/reduce", req, &resp); err != nil {
		return nil, eris.Wrapf(err, "earthengine: reduce %s over %s", req.Reducer, req.Dataset)
	}
	return resp.Value, nil
}

func (c *httpClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return eris.Wrap(err, "earthengine: build health request")
	}
	return eris.Wrap(c.do(req, nil), "earthengine: health")
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
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
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
