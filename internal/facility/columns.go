// Package facility loads facility tables from XLSX spreadsheets or point
// shapefiles, resolving columns by fuzzy name matching and filtering rows by
// administrative level.
package facility

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Columns holds the resolved indices of the fields the analysis needs.
// Name and Level are -1 when the table has no such column.
type Columns struct {
	Lat   int
	Lon   int
	Name  int
	Level int
}

// Column name patterns, matched as substrings against normalized headers.
// Export spreadsheets name these inconsistently ("Latitude", "lat ", "LAT",
// "Facility Name", "Keph level").
var (
	latPatterns   = []string{"lat"}
	lonPatterns   = []string{"lon", "lng"}
	namePatterns  = []string{"name"}
	levelPatterns = []string{"level"}
)

// DetectColumns resolves the coordinate, name and level columns from a header
// row. Latitude and longitude are required.
func DetectColumns(headers []string) (Columns, error) {
	cols := Columns{
		Lat:   findColumn(headers, latPatterns),
		Lon:   findColumn(headers, lonPatterns),
		Name:  findColumn(headers, namePatterns),
		Level: findColumn(headers, levelPatterns),
	}

	if cols.Lat < 0 {
		return cols, eris.Errorf("facility: no latitude column among %v", headers)
	}
	if cols.Lon < 0 {
		return cols, eris.Errorf("facility: no longitude column among %v", headers)
	}

	// A combined header like "lat/lon" matches both patterns; refuse it
	// rather than reading the same cell twice.
	if cols.Lat == cols.Lon {
		return cols, eris.Errorf("facility: latitude and longitude patterns both match column %q", headers[cols.Lat])
	}

	return cols, nil
}

// findColumn returns the index of the first header matching any pattern, in
// pattern priority order, or -1.
func findColumn(headers []string, patterns []string) int {
	for _, p := range patterns {
		for i, h := range headers {
			if strings.Contains(normalizeHeader(h), p) {
				return i
			}
		}
	}
	return -1
}

// normalizeHeader lowercases a header and strips diacritics and surrounding
// whitespace, so "Latitúde " matches "lat".
func normalizeHeader(h string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	cleaned, _, err := transform.String(t, h)
	if err != nil {
		cleaned = h
	}
	return strings.ToLower(strings.TrimSpace(cleaned))
}
