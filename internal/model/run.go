package model

import "time"

// RunStatus represents the state of an analysis run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
	RunStatusInterrupted RunStatus = "interrupted"
)

// Run records one batch analysis invocation.
type Run struct {
	ID        string      `json:"id"`
	InputFile string      `json:"input_file"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary holds the final batch counts and output locations.
type RunSummary struct {
	Total         int    `json:"total"`
	Succeeded     int    `json:"succeeded"`
	Skipped       int    `json:"skipped"`
	RangeSeconds  []int  `json:"range_seconds"`
	OutputCSV     string `json:"output_csv,omitempty"`
	OutputGeoJSON string `json:"output_geojson,omitempty"`
	OutputMap     string `json:"output_map,omitempty"`
	DurationMs    int64  `json:"duration_ms"`
}

// DeadLetter records a facility the batch skipped, with enough context to
// re-run it after the input or the backends are fixed.
type DeadLetter struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Facility  string    `json:"facility"`
	Row       int       `json:"row"`
	Reason    string    `json:"reason"`
	ErrorType string    `json:"error_type"` // "transient" or "permanent"
	CreatedAt time.Time `json:"created_at"`
}
