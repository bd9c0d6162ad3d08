package tabular

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
)

func buildWorkbook(t *testing.T, sheets map[string][][]any, order []string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestDecodeXLSXConcatenatesSheets(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Jan": {{"Datum", "Material", "Vikt"}, {"2024-01-02", "Trä", 120}},
		"Feb": {{"Datum", "Material", "Vikt"}, {"2024-02-03", "Metall", 80}},
	}, []string{"Jan", "Feb"})

	g, err := Decode(data, constants.KindXLSX)
	require.NoError(t, err)
	require.Len(t, g, 3, "repeated header on the second sheet is dropped")
	assert.Equal(t, []string{"Datum", "Material", "Vikt"}, g[0])
	assert.Equal(t, "Metall", g[2][1])
}

func TestDecodeCSVSniffsDelimiter(t *testing.T) {
	data := []byte("\xef\xbb\xbfDatum;Material;Vikt (kg)\n2024-01-02;Trä;\"1 234,5\"\n\n")
	g, err := Decode(data, constants.KindCSV)
	require.NoError(t, err)
	require.Len(t, g, 2)
	assert.Equal(t, "Datum", g[0][0])
	assert.Equal(t, "1 234,5", g[1][2])
}

func TestDecodeRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		kind constants.FileKind
	}{
		{"empty", nil, constants.KindCSV},
		{"not a zip", []byte("definitely not a workbook"), constants.KindXLSX},
		{"not ole2", []byte("definitely not a workbook"), constants.KindXLS},
		{"invalid utf8", []byte{0xff, 0xfe, 0x00, 0x41}, constants.KindCSV},
		{"wrong kind", []byte("a,b"), constants.KindPDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, tt.kind)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrIrrecoverableInput)
		})
	}
}

func TestRender(t *testing.T) {
	header := []string{"Datum", "Material"}
	rows := [][]string{{"2024-01-02", "Trä|Spån"}, {"2024-01-03"}}

	md := Markdown(header, rows)
	assert.Contains(t, md, "| Datum | Material |")
	assert.Contains(t, md, "| --- | --- |")
	assert.Contains(t, md, "Trä/Spån")
	assert.Contains(t, md, "| 2024-01-03 |  |")

	assert.Equal(t, "a\tb c\nd", TSV([][]string{{"a", "b\tc"}, {"d"}}))
}

func TestGridHelpers(t *testing.T) {
	g := Grid{{"a", "b", "c"}, {" ", ""}, {"d"}}
	assert.Equal(t, 3, g.Width())
	assert.Len(t, g.NonEmpty(), 2)
}
