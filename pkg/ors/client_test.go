package ors

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catchment-cli/internal/resilience"
)

const sampleIsochrone = `{
	"type": "FeatureCollection",
	"features": [{
		"type": "Feature",
		"properties": {"value": 900},
		"geometry": {"type": "Polygon", "coordinates": [[[36.8,-1.3],[36.9,-1.3],[36.9,-1.2],[36.8,-1.2],[36.8,-1.3]]]}
	}]
}`

func TestIsochrones_Success(t *testing.T) {
	var gotPath string
	var gotBody isochroneBody

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, sampleIsochrone)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(0))

	fc, err := c.Isochrones(context.Background(), IsochroneRequest{
		Lat:          -1.2921,
		Lon:          36.8219,
		RangeSeconds: 900,
		Attributes:   []string{"total_pop"},
	})
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.NotEmpty(t, fc.Features[0].Geometry)

	assert.Equal(t, "/v2/isochrones/driving-car", gotPath)
	require.Len(t, gotBody.Locations, 1)
	// ORS wants [lon, lat].
	assert.InDelta(t, 36.8219, gotBody.Locations[0][0], 1e-9)
	assert.InDelta(t, -1.2921, gotBody.Locations[0][1], 1e-9)
	assert.Equal(t, []int{900}, gotBody.Range)
	assert.Equal(t, "time", gotBody.RangeType)
}

func TestIsochrones_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "graph not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(0))

	_, err := c.Isochrones(context.Background(), IsochroneRequest{Lat: 1, Lon: 35, RangeSeconds: 900})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err), "503 should be wrapped as transient")
}

func TestIsochrones_BadRequestIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"point not on graph"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(0))

	_, err := c.Isochrones(context.Background(), IsochroneRequest{Lat: 1, Lon: 35, RangeSeconds: 900})
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err), "400 should not be retried")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/health", r.URL.Path)
		_, _ = io.WriteString(w, `{"status":"ready"}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))

	hs, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, hs.Ready())
}

func TestHealth_NotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"loading"}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))

	hs, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.False(t, hs.Ready())
}
