package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catchment-cli/internal/config"
	"github.com/sells-group/catchment-cli/pkg/ors"
)

type fakeRouting struct {
	statuses []string
	errs     []error
	calls    int
}

func (f *fakeRouting) Isochrones(context.Context, ors.IsochroneRequest) (*ors.FeatureCollection, error) {
	return nil, errors.New("not used")
}

func (f *fakeRouting) Health(context.Context) (*ors.HealthStatus, error) {
	i := f.calls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.calls++
	if f.errs != nil && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return &ors.HealthStatus{Status: f.statuses[i]}, nil
}

func withTestConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{ORS: config.ORSConfig{BaseURL: "http://localhost:8080/ors", Profile: "driving-car"}}
	t.Cleanup(func() { cfg = prev })
}

func TestWaitForHealthImmediate(t *testing.T) {
	withTestConfig(t)
	statusWait = false

	hs, err := waitForHealth(context.Background(), &fakeRouting{statuses: []string{"ready"}})
	require.NoError(t, err)
	assert.True(t, hs.Ready())
}

func TestWaitForHealthUnreachable(t *testing.T) {
	withTestConfig(t)
	statusWait = false

	_, err := waitForHealth(context.Background(), &fakeRouting{
		statuses: []string{""},
		errs:     []error{errors.New("connection refused")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestWaitForHealthPollsUntilReady(t *testing.T) {
	withTestConfig(t)
	statusWait = true
	statusTimeout = 5 * time.Second
	statusInterval = time.Millisecond
	t.Cleanup(func() { statusWait = false })

	routing := &fakeRouting{statuses: []string{"not ready", "not ready", "ready"}}
	hs, err := waitForHealth(context.Background(), routing)
	require.NoError(t, err)
	assert.True(t, hs.Ready())
	assert.Equal(t, 3, routing.calls)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"analyze", "isochrone", "status", "runs", "serve"} {
		assert.True(t, names[want], "command %s not registered", want)
	}
}
