// Package store persists run history, skipped facilities, and cached
// isochrone geometries in a local SQLite database.
package store

import (
	"context"
	"encoding/json"

	"github.com/sells-group/catchment-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the analysis pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, inputFile string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Dead letters
	RecordDeadLetters(ctx context.Context, letters []model.DeadLetter) error
	ListDeadLetters(ctx context.Context, runID string) ([]model.DeadLetter, error)

	// Isochrone cache
	GetIsochrone(ctx context.Context, lat, lon float64, rangeSeconds int, profile string) (json.RawMessage, bool, error)
	PutIsochrone(ctx context.Context, lat, lon float64, rangeSeconds int, profile string, geometry json.RawMessage) error
	DeleteExpiredIsochrones(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
