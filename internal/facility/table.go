package facility

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/internal/model"
)

// Table is a loaded facility set with its source headers preserved for
// export column ordering.
type Table struct {
	Headers    []string
	Columns    Columns
	Facilities []model.Facility
}

// Load reads facilities from path, dispatching on extension: .xlsx
// spreadsheets and .shp point shapefiles are supported.
func Load(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		headers, rows, err := ReadXLSX(path, XLSXOptions{})
		if err != nil {
			return nil, err
		}
		return buildTable(headers, rows)
	case ".shp":
		return LoadShapefile(path)
	default:
		return nil, eris.Errorf("facility: unsupported input format %q (want .xlsx or .shp)", filepath.Ext(path))
	}
}

// buildTable assembles facilities from a header row and data rows.
func buildTable(headers []string, rows [][]string) (*Table, error) {
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	cols, err := DetectColumns(headers)
	if err != nil {
		return nil, err
	}

	t := &Table{Headers: headers, Columns: cols}
	for i, row := range rows {
		f := model.Facility{
			Row:    i + 2, // 1-based, after the header row
			LatRaw: cell(row, cols.Lat),
			LonRaw: cell(row, cols.Lon),
			Attrs:  make(map[string]string, len(headers)),
		}
		if cols.Name >= 0 {
			f.Name = strings.TrimSpace(cell(row, cols.Name))
		}
		if cols.Level >= 0 {
			f.Level = strings.TrimSpace(cell(row, cols.Level))
		}
		for j, h := range headers {
			if h == "" {
				continue
			}
			f.Attrs[h] = cell(row, j)
		}
		t.Facilities = append(t.Facilities, f)
	}

	return t, nil
}

// FilterByLevel keeps facilities whose level value contains any of the target
// level strings. KMHFR-style exports write levels as "Level 4" or "4", so
// substring matching covers both.
func (t *Table) FilterByLevel(targetLevels []string) *Table {
	if t.Columns.Level < 0 || len(targetLevels) == 0 {
		return t
	}

	kept := make([]model.Facility, 0, len(t.Facilities))
	for _, f := range t.Facilities {
		for _, lvl := range targetLevels {
			if strings.Contains(f.Level, lvl) {
				kept = append(kept, f)
				break
			}
		}
	}

	zap.L().Info("filtered facilities by level",
		zap.Strings("target_levels", targetLevels),
		zap.Int("kept", len(kept)),
		zap.Int("total", len(t.Facilities)),
	)

	return &Table{Headers: t.Headers, Columns: t.Columns, Facilities: kept}
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
