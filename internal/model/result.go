package model

import (
	"sort"

	"github.com/twpayne/go-geom"
)

// ThresholdResult is the outcome for one (facility, driving-time threshold)
// pair: the isochrone polygon and the population summed inside it.
type ThresholdResult struct {
	RangeSeconds int
	Polygon      geom.T
	Population   Population
}

// Minutes returns the threshold in whole minutes.
func (t ThresholdResult) Minutes() int {
	return t.RangeSeconds / 60
}

// FacilityResult is the composite per-facility outcome. It exists only when
// at least one threshold produced a usable polygon; thresholds that failed
// are absent from Thresholds entirely. Immutable once assembled.
type FacilityResult struct {
	Facility Facility
	Lat      float64
	Lon      float64
	Swapped  bool // coordinates were transposed by the swap heuristic

	Thresholds map[int]ThresholdResult

	// Combined unions every successful polygon into one MultiPolygon for
	// rendering.
	Combined *geom.MultiPolygon

	// Primary is the population at the largest configured threshold that
	// succeeded, kept for summary reporting.
	Primary Population
}

// RangeSeconds returns the successful thresholds in ascending order.
func (r *FacilityResult) RangeSeconds() []int {
	out := make([]int, 0, len(r.Thresholds))
	for sec := range r.Thresholds {
		out = append(out, sec)
	}
	sort.Ints(out)
	return out
}
