package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catchment-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "catchment.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "facilities.xlsx")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	summary := &model.RunSummary{
		Total:        10,
		Succeeded:    8,
		Skipped:      2,
		RangeSeconds: []int{900, 1800, 2700},
		OutputCSV:    "out.csv",
		DurationMs:   4200,
	}
	require.NoError(t, s.CompleteRun(ctx, run.ID, model.RunStatusComplete, summary))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, "facilities.xlsx", got.InputFile)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 8, got.Summary.Succeeded)
	assert.Equal(t, []int{900, 1800, 2700}, got.Summary.RangeSeconds)
}

func TestCompleteRunNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.CompleteRun(context.Background(), "nope", model.RunStatusFailed, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListRunsFilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateRun(ctx, "a.xlsx")
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, "b.xlsx")
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(ctx, first.ID, model.RunStatusInterrupted, nil))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	interrupted, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusInterrupted})
	require.NoError(t, err)
	require.Len(t, interrupted, 1)
	assert.Equal(t, first.ID, interrupted[0].ID)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDeadLetters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "facilities.xlsx")
	require.NoError(t, err)

	letters := []model.DeadLetter{
		{RunID: run.ID, Facility: "Clinic B", Row: 5, Reason: "no isochrones", ErrorType: "permanent"},
		{RunID: run.ID, Facility: "Clinic A", Row: 3, Reason: "coordinate is missing", ErrorType: "permanent"},
	}
	require.NoError(t, s.RecordDeadLetters(ctx, letters))

	got, err := s.ListDeadLetters(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Ordered by input row.
	assert.Equal(t, "Clinic A", got[0].Facility)
	assert.Equal(t, "Clinic B", got[1].Facility)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestRecordDeadLettersEmpty(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.RecordDeadLetters(context.Background(), nil))
}

func TestIsochroneCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	geometry := json.RawMessage(`{"type":"Polygon","coordinates":[[[36,0],[37,0],[37,1],[36,0]]]}`)

	_, ok, err := s.GetIsochrone(ctx, 0.2827, 34.7519, 900, "driving-car")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutIsochrone(ctx, 0.2827, 34.7519, 900, "driving-car", geometry))

	got, ok, err := s.GetIsochrone(ctx, 0.2827, 34.7519, 900, "driving-car")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, string(geometry), string(got))

	// Different range misses.
	_, ok, err = s.GetIsochrone(ctx, 0.2827, 34.7519, 1800, "driving-car")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsochroneCacheUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := json.RawMessage(`{"type":"Polygon","coordinates":[[[1,1],[2,1],[2,2],[1,1]]]}`)
	second := json.RawMessage(`{"type":"Polygon","coordinates":[[[3,3],[4,3],[4,4],[3,3]]]}`)

	require.NoError(t, s.PutIsochrone(ctx, 1.0, 2.0, 900, "driving-car", first))
	require.NoError(t, s.PutIsochrone(ctx, 1.0, 2.0, 900, "driving-car", second))

	got, ok, err := s.GetIsochrone(ctx, 1.0, 2.0, 900, "driving-car")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, string(second), string(got))
}

func TestIsochroneCacheExpiry(t *testing.T) {
	// Negative TTL writes rows that are already expired.
	s, err := NewSQLite(filepath.Join(t.TempDir(), "catchment.db"), -time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))

	geometry := json.RawMessage(`{"type":"Polygon","coordinates":[[[1,1],[2,1],[2,2],[1,1]]]}`)
	require.NoError(t, s.PutIsochrone(ctx, 1.0, 2.0, 900, "driving-car", geometry))

	_, ok, err := s.GetIsochrone(ctx, 1.0, 2.0, 900, "driving-car")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.DeleteExpiredIsochrones(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
