package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catchment-cli/internal/config"
	"github.com/sells-group/catchment-cli/internal/store"
)

func TestInitStoreMigratesAndSweepsCache(t *testing.T) {
	prev := cfg
	path := filepath.Join(t.TempDir(), "catchment.db")
	cfg = &config.Config{Store: config.StoreConfig{Path: path, CacheTTLHours: -1}}
	t.Cleanup(func() { cfg = prev })

	ctx := context.Background()

	// Seed an already-expired cache row (negative TTL) through a first open.
	seed, err := store.NewSQLite(path, -time.Hour)
	require.NoError(t, err)
	require.NoError(t, seed.Migrate(ctx))
	geometry := json.RawMessage(`{"type":"Polygon","coordinates":[[[1,1],[2,1],[2,2],[1,1]]]}`)
	require.NoError(t, seed.PutIsochrone(ctx, 1.0, 2.0, 900, "driving-car", geometry))
	require.NoError(t, seed.Close())

	st, err := initStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	// The open-time sweep removed the expired row.
	_, ok, err := st.GetIsochrone(ctx, 1.0, 2.0, 900, "driving-car")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := st.DeleteExpiredIsochrones(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
