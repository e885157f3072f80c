package model

import "fmt"

// Facility is a point-located entity (clinic, hospital) from the input table.
// Coordinates are kept raw until the analysis validator has normalized them.
type Facility struct {
	Name   string            `json:"name"`
	LatRaw string            `json:"lat_raw"`
	LonRaw string            `json:"lon_raw"`
	Level  string            `json:"level,omitempty"`
	Row    int               `json:"row"` // 1-based source row, for diagnostics
	Attrs  map[string]string `json:"attrs,omitempty"`
}

// Label returns the facility name, falling back to the raw coordinates when
// the source table has no name column.
func (f Facility) Label() string {
	if f.Name != "" {
		return f.Name
	}
	return fmt.Sprintf("facility at (%s, %s)", f.LatRaw, f.LonRaw)
}
