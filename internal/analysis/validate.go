package analysis

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catchment-cli/internal/config"
)

// ErrMissingCoordinate is returned when a latitude or longitude cell is empty.
var ErrMissingCoordinate = eris.New("analysis: coordinate is missing")

// SwapBounds parameterizes the transposed-coordinate heuristic. Facility
// exports for the target region sometimes carry lat/lon in swapped columns;
// a latitude above MaxLat or a longitude below MinLon cannot belong to the
// region and marks the pair as transposed. The bounds are deployment
// configuration, not a universal rule.
type SwapBounds struct {
	MaxLat float64
	MinLon float64
}

// Validator normalizes and range-checks coordinate pairs.
type Validator struct {
	// Swap enables the transposition heuristic when non-nil.
	Swap *SwapBounds
}

// NewValidator builds a Validator from analysis configuration.
func NewValidator(cfg config.AnalysisConfig) Validator {
	if !cfg.SwapEnabled {
		return Validator{}
	}
	return Validator{Swap: &SwapBounds{MaxLat: cfg.SwapMaxLat, MinLon: cfg.SwapMinLon}}
}

// Normalize coerces raw coordinate cells to floats, applies the swap
// heuristic, and range-checks the result. swapped reports whether the pair
// was transposed.
func (v Validator) Normalize(latRaw, lonRaw string) (lat, lon float64, swapped bool, err error) {
	lat, err = parseCoordinate(latRaw)
	if err != nil {
		return 0, 0, false, err
	}
	lon, err = parseCoordinate(lonRaw)
	if err != nil {
		return 0, 0, false, err
	}

	if v.Swap != nil && (lat > v.Swap.MaxLat || lon < v.Swap.MinLon) {
		lat, lon = lon, lat
		swapped = true
	}

	if lat < -90 || lat > 90 {
		return 0, 0, false, eris.Errorf("analysis: latitude out of range: %g (must be -90 to 90)", lat)
	}
	if lon < -180 || lon > 180 {
		return 0, 0, false, eris.Errorf("analysis: longitude out of range: %g (must be -180 to 180)", lon)
	}

	return lat, lon, swapped, nil
}

func parseCoordinate(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrMissingCoordinate
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Errorf("analysis: non-numeric coordinate %q", raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrMissingCoordinate
	}
	return f, nil
}
