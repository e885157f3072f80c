// Package export writes analysis results as CSV, GeoJSON, and an
// interactive HTML map.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catchment-cli/internal/model"
)

// WriteCSV writes one row per analyzed facility: the source columns as read
// from the input, the normalized coordinates, one population column per
// configured range, and the primary population. Unmeasured populations
// render as the -1 sentinel.
func WriteCSV(path string, sourceHeaders []string, rangeSeconds []int, results []*model.FacilityResult) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create CSV file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := append([]string{}, sourceHeaders...)
	header = append(header, "latitude", "longitude", "coordinates_swapped")
	for _, r := range rangeSeconds {
		header = append(header, populationColumn(r))
	}
	header = append(header, "primary_population")

	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "export: write CSV header")
	}

	for _, res := range results {
		if err := w.Write(buildRow(sourceHeaders, rangeSeconds, res)); err != nil {
			return eris.Wrapf(err, "export: write CSV row for %s", res.Facility.Label())
		}
	}

	w.Flush()
	return eris.Wrap(w.Error(), "export: flush CSV")
}

func buildRow(sourceHeaders []string, rangeSeconds []int, res *model.FacilityResult) []string {
	row := make([]string, 0, len(sourceHeaders)+len(rangeSeconds)+4)
	for _, h := range sourceHeaders {
		row = append(row, res.Facility.Attrs[h])
	}
	row = append(row,
		strconv.FormatFloat(res.Lat, 'f', -1, 64),
		strconv.FormatFloat(res.Lon, 'f', -1, 64),
		strconv.FormatBool(res.Swapped),
	)
	for _, r := range rangeSeconds {
		tr, ok := res.Thresholds[r]
		if !ok {
			// Range failed for this facility; indistinguishable from an
			// unmeasured population on purpose.
			row = append(row, formatPopulation(model.UnmeasuredPopulation()))
			continue
		}
		row = append(row, formatPopulation(tr.Population))
	}
	row = append(row, formatPopulation(res.Primary))
	return row
}

func populationColumn(rangeSeconds int) string {
	return fmt.Sprintf("population_%dmin", rangeSeconds/60)
}

func formatPopulation(p model.Population) string {
	return strconv.FormatFloat(p.Export(), 'f', -1, 64)
}
