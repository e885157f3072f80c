package facility

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/internal/model"
)

// LoadShapefile reads facilities from a point shapefile. Coordinates come
// from the geometry; DBF attributes become the facility attribute map, with
// name and level resolved by the same fuzzy matching as spreadsheet headers.
func LoadShapefile(path string) (*Table, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "facility: open shapefile")
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i] = strings.TrimRight(f.String(), "\x00")
	}

	cols := Columns{
		Lat:   -1, // coordinates come from the geometry
		Lon:   -1,
		Name:  findColumn(headers, namePatterns),
		Level: findColumn(headers, levelPatterns),
	}

	t := &Table{Headers: headers, Columns: cols}
	row := 0
	for reader.Next() {
		row++
		n, shape := reader.Shape()

		point, ok := shape.(*shp.Point)
		if !ok {
			zap.L().Debug("skipping non-point shape", zap.Int("record", n))
			continue
		}

		f := model.Facility{
			Row:    row,
			LatRaw: strconv.FormatFloat(point.Y, 'f', -1, 64),
			LonRaw: strconv.FormatFloat(point.X, 'f', -1, 64),
			Attrs:  make(map[string]string, len(headers)),
		}
		for i, h := range headers {
			if h == "" {
				continue
			}
			f.Attrs[h] = strings.TrimSpace(reader.Attribute(i))
		}
		if cols.Name >= 0 {
			f.Name = strings.TrimSpace(reader.Attribute(cols.Name))
		}
		if cols.Level >= 0 {
			f.Level = strings.TrimSpace(reader.Attribute(cols.Level))
		}

		t.Facilities = append(t.Facilities, f)
	}

	if err := reader.Err(); err != nil {
		return nil, eris.Wrap(err, "facility: read shapefile")
	}

	return t, nil
}
