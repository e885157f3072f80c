package export

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/catchment-cli/internal/model"
)

type geoFeature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type geoCollection struct {
	Type     string       `json:"type"`
	Features []geoFeature `json:"features"`
}

// WriteGeoJSON writes a FeatureCollection with one feature per successful
// facility range, carrying the facility name, the range in minutes, and the
// summed population as properties.
func WriteGeoJSON(path string, results []*model.FacilityResult) error {
	fc := geoCollection{Type: "FeatureCollection"}

	for _, res := range results {
		for _, r := range res.RangeSeconds() {
			tr := res.Thresholds[r]
			raw, err := geojson.Marshal(tr.Polygon)
			if err != nil {
				return eris.Wrapf(err, "export: encode geometry for %s", res.Facility.Label())
			}
			fc.Features = append(fc.Features, geoFeature{
				Type: "Feature",
				Properties: map[string]any{
					"facility":      res.Facility.Name,
					"minutes":       tr.Minutes(),
					"range_seconds": tr.RangeSeconds,
					"population":    tr.Population.Export(),
					"measured":      tr.Population.Measured,
				},
				Geometry: raw,
			})
		}
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrap(err, "export: encode feature collection")
	}
	return eris.Wrap(os.WriteFile(path, data, 0o644), "export: write GeoJSON file")
}
