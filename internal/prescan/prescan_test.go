package prescan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanFindsHeaderAndSums(t *testing.T) {
	grid := [][]string{
		{"Avfallsrapport 2024"},
		{"Kund: Bygg AB"},
		{"Datum", "Material", "Vikt (kg)", "Kostnad (kr)", "Adress", "Mottagare", "CO2 besparing"},
		{"2024-01-02", "Trä", "1 234,5", "220,00", "Storgatan 1", "Ragn-Sells", "10,5"},
		{"", "", "", "", "", "", ""},
		{"2024-01-03", "Spillolja", "100", "1.500,50", "Storgatan 1", "Ragn-Sells", "0"},
		{"Totalt", "", "1334,5", "1720,5", "", "", ""},
	}

	res := Scan(grid)
	assert.Equal(t, 2, res.HeaderIndex)
	assert.Equal(t, 2, res.Columns[CategoryWeight])
	assert.Equal(t, 3, res.Columns[CategoryCost])
	assert.Equal(t, 6, res.Columns[CategoryCO2])
	assert.InDelta(t, 1334.5, res.WeightTotal, 1e-9)
	assert.InDelta(t, 1720.5, res.CostTotal, 1e-9)
	assert.InDelta(t, 10.5, res.CO2Total, 1e-9)
	assert.Equal(t, 1, res.HazardousCount)
}

func TestScanTieGoesToFirstRow(t *testing.T) {
	grid := [][]string{
		{"Datum", "Vikt"},
		{"Date", "Weight"},
		{"2024-01-02", "5"},
	}
	res := Scan(grid)
	assert.Equal(t, 0, res.HeaderIndex)
	assert.InDelta(t, 5, res.WeightTotal, 1e-9, "the second header-like row sums as data and parses to 0")
}

func TestScanShortGrid(t *testing.T) {
	for _, g := range [][][]string{nil, {{"Datum", "Vikt"}}} {
		res := Scan(g)
		assert.Zero(t, res.HeaderIndex)
		assert.Zero(t, res.WeightTotal)
		assert.Zero(t, res.CostTotal)
		assert.Zero(t, res.HazardousCount)
	}
}

func TestScanOnlyLooksAtFirstRowsForHeader(t *testing.T) {
	grid := make([][]string, 0, HeaderScanRows+2)
	for i := 0; i < HeaderScanRows; i++ {
		grid = append(grid, []string{"note"})
	}
	grid = append(grid, []string{"Datum", "Material", "Vikt"}, []string{"2024-01-01", "Trä", "7"})

	res := Scan(grid)
	assert.Equal(t, 0, res.HeaderIndex)
	require.NotContains(t, res.Columns, CategoryWeight)
	assert.Zero(t, res.WeightTotal)
}

func TestScanRoundsToTwoDecimals(t *testing.T) {
	grid := [][]string{
		{"Material", "Vikt"},
		{"Trä", "0,105"},
		{"Trä", "0,001"},
	}
	assert.InDelta(t, 0.11, Scan(grid).WeightTotal, 1e-9)
}

func TestScanSummaryRows(t *testing.T) {
	header := []string{"Datum", "Material", "Vikt (kg)"}
	tests := []struct {
		name string
		rows [][]string
		want float64
	}{
		{
			name: "material names containing sum are data",
			rows: [][]string{
				{"2024-01-02", "Konsumentförpackningar", "100"},
				{"2024-01-03", "Trä", "50"},
			},
			want: 150,
		},
		{
			name: "labelled summary rows are skipped",
			rows: [][]string{
				{"2024-01-02", "Konsumentförpackningar", "100"},
				{"", "Summa:", "100"},
				{"Totalt", "", "100"},
				{"", "Total vikt", "100"},
			},
			want: 100,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Scan(append([][]string{header}, tt.rows...))
			assert.InDelta(t, tt.want, res.WeightTotal, 1e-9)
		})
	}
}

func TestScanWeekdaysDoNotMakeAHeader(t *testing.T) {
	grid := [][]string{
		{"Hämtning fredag", "Vikt"},
		{"Dag", "Vikt"},
		{"måndag", "12"},
	}
	res := Scan(grid)
	assert.Equal(t, 1, res.HeaderIndex)
	assert.InDelta(t, 12, res.WeightTotal, 1e-9)
}
