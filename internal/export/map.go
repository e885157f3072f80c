package export

import (
	"html/template"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/catchment-cli/internal/config"
	"github.com/sells-group/catchment-cli/internal/model"
)

type mapMarker struct {
	Name       string
	Lat        float64
	Lon        float64
	Population string
}

type mapOverlay struct {
	Facility string
	Minutes  int
	Color    string
	Geometry template.JS
}

type legendEntry struct {
	Minutes int
	Color   string
}

type mapData struct {
	Title     string
	CenterLat float64
	CenterLon float64
	Zoom      int
	Opacity   float64
	Markers   []mapMarker
	Overlays  []mapOverlay
	Legend    []legendEntry
}

// WriteMap renders results as a self-contained Leaflet HTML page: one marker
// per facility and one colored polygon overlay per successful range.
func WriteMap(path string, cfg config.MapConfig, results []*model.FacilityResult) error {
	data := mapData{
		Title:     "Facility Catchment Populations",
		CenterLat: cfg.CenterLat,
		CenterLon: cfg.CenterLon,
		Zoom:      cfg.ZoomStart,
		Opacity:   cfg.Opacity,
	}

	seen := map[int]bool{}
	for _, res := range results {
		data.Markers = append(data.Markers, mapMarker{
			Name:       res.Facility.Name,
			Lat:        res.Lat,
			Lon:        res.Lon,
			Population: res.Primary.String(),
		})
		for _, r := range res.RangeSeconds() {
			tr := res.Thresholds[r]
			raw, err := geojson.Marshal(tr.Polygon)
			if err != nil {
				return eris.Wrapf(err, "export: encode map geometry for %s", res.Facility.Label())
			}
			minutes := tr.Minutes()
			data.Overlays = append(data.Overlays, mapOverlay{
				Facility: res.Facility.Name,
				Minutes:  minutes,
				Color:    cfg.ColorFor(minutes),
				Geometry: template.JS(raw), //nolint:gosec // backend GeoJSON, not user input
			})
			seen[minutes] = true
		}
	}

	minutes := make([]int, 0, len(seen))
	for m := range seen {
		minutes = append(minutes, m)
	}
	sort.Ints(minutes)
	for _, m := range minutes {
		data.Legend = append(data.Legend, legendEntry{Minutes: m, Color: cfg.ColorFor(m)})
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create map file")
	}
	defer f.Close()

	if err := mapTemplate.Execute(f, data); err != nil {
		return eris.Wrap(err, "export: render map template")
	}
	return nil
}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
  html, body, #map { height: 100%; margin: 0; }
  .legend {
    background: white; padding: 8px 12px; border-radius: 4px;
    box-shadow: 0 1px 4px rgba(0,0,0,0.3); line-height: 20px;
  }
  .legend i {
    display: inline-block; width: 14px; height: 14px;
    margin-right: 6px; vertical-align: middle;
  }
</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map('map').setView([{{.CenterLat}}, {{.CenterLon}}], {{.Zoom}});
L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);

{{range .Overlays -}}
L.geoJSON({{.Geometry}}, {
  style: { color: '{{.Color}}', fillColor: '{{.Color}}', fillOpacity: {{$.Opacity}}, weight: 1 }
}).bindPopup('{{.Facility}} &ndash; {{.Minutes}} min').addTo(map);
{{end -}}

{{range .Markers -}}
L.marker([{{.Lat}}, {{.Lon}}])
  .bindPopup('<b>{{.Name}}</b><br>Population: {{.Population}}')
  .addTo(map);
{{end -}}

var legend = L.control({position: 'bottomright'});
legend.onAdd = function() {
  var div = L.DomUtil.create('div', 'legend');
  div.innerHTML = '<b>Drive time</b><br>' +
{{range .Legend}}    '<i style="background:{{.Color}}"></i>{{.Minutes}} min<br>' +
{{end}}    '';
  return div;
};
legend.addTo(map);
</script>
</body>
</html>
`))
