package facility

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTestXLSX(t *testing.T, headers []string, rows [][]string) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Facilities")
	require.NoError(t, err)

	hr := sheet.AddRow()
	for _, h := range headers {
		hr.AddCell().Value = h
	}
	for _, row := range rows {
		r := sheet.AddRow()
		for _, v := range row {
			r.AddCell().Value = v
		}
	}

	path := filepath.Join(t.TempDir(), "facilities.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestLoad_XLSX(t *testing.T) {
	path := writeTestXLSX(t,
		[]string{"Facility Name", "Keph level", "Latitude", "Longitude"},
		[][]string{
			{"Meru Teaching and Referral", "Level 6", "0.050608", "37.6508131"},
			{"Kakamega County Referral", "Level 5", "0.2745556", "34.7582332"},
			{"Village Dispensary", "Level 2", "-1.1", "36.9"},
		},
	)

	table, err := Load(path)
	require.NoError(t, err)
	require.Len(t, table.Facilities, 3)

	f := table.Facilities[0]
	assert.Equal(t, "Meru Teaching and Referral", f.Name)
	assert.Equal(t, "Level 6", f.Level)
	assert.Equal(t, "0.050608", f.LatRaw)
	assert.Equal(t, "37.6508131", f.LonRaw)
	assert.Equal(t, 2, f.Row)
	assert.Equal(t, "Level 6", f.Attrs["Keph level"])
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load("facilities.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported input format")
}

func TestFilterByLevel(t *testing.T) {
	path := writeTestXLSX(t,
		[]string{"Name", "Level", "Lat", "Lon"},
		[][]string{
			{"A", "Level 4", "1", "35"},
			{"B", "Level 2", "1", "35"},
			{"C", "5", "1", "35"},
			{"D", "Level 6 Hospital", "1", "35"},
		},
	)

	table, err := Load(path)
	require.NoError(t, err)

	filtered := table.FilterByLevel([]string{"4", "5", "6"})
	require.Len(t, filtered.Facilities, 3)
	assert.Equal(t, "A", filtered.Facilities[0].Name)
	assert.Equal(t, "C", filtered.Facilities[1].Name)
	assert.Equal(t, "D", filtered.Facilities[2].Name)
}

func TestFilterByLevel_NoLevelColumnKeepsAll(t *testing.T) {
	path := writeTestXLSX(t,
		[]string{"Name", "Lat", "Lon"},
		[][]string{{"A", "1", "35"}, {"B", "1", "35"}},
	)

	table, err := Load(path)
	require.NoError(t, err)

	filtered := table.FilterByLevel([]string{"4"})
	assert.Len(t, filtered.Facilities, 2)
}

func TestBuildTable_ShortRows(t *testing.T) {
	path := writeTestXLSX(t,
		[]string{"Name", "Level", "Lat", "Lon"},
		[][]string{{"Short"}}, // row with fewer cells than headers
	)

	table, err := Load(path)
	require.NoError(t, err)
	require.Len(t, table.Facilities, 1)
	assert.Equal(t, "", table.Facilities[0].LatRaw)
	assert.Equal(t, "", table.Facilities[0].LonRaw)
}
