// Package tabular decodes spreadsheet bytes into a rectangular grid of strings.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shakinm/xlsReader/xls"
	"github.com/shakinm/xlsReader/xls/structure"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
)

// Grid is a list of rows; rows may have different lengths.
type Grid [][]string

// Decode reads a spreadsheet of the given kind. Every sheet of a workbook is concatenated
// in order; a later sheet's leading row is dropped when it repeats the first sheet's header.
func Decode(data []byte, kind constants.FileKind) (Grid, error) {
	if len(data) == 0 {
		return nil, common.Errorf("DECODE_ERROR", common.ErrIrrecoverableInput, "empty %s input", kind)
	}
	var (
		sheets []Grid
		err    error
	)
	switch kind {
	case constants.KindXLSX:
		sheets, err = decodeXLSX(data)
	case constants.KindXLS:
		sheets, err = decodeXLS(data)
	case constants.KindCSV:
		var g Grid
		g, err = decodeCSV(data)
		sheets = []Grid{g}
	default:
		return nil, common.Errorf("DECODE_ERROR", common.ErrIrrecoverableInput, "%s is not a tabular kind", kind)
	}
	if err != nil {
		return nil, common.Errorf("DECODE_ERROR", errors.Join(common.ErrIrrecoverableInput, err), "decode %s", kind)
	}
	return mergeSheets(sheets), nil
}

func decodeXLSX(data []byte) ([]Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var out []Grid
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheet, err)
		}
		out = append(out, Grid(rows))
	}
	return out, nil
}

func decodeXLS(data []byte) ([]Grid, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var out []Grid
	for i := 0; i < wb.GetNumberSheets(); i++ {
		sheet, err := wb.GetSheet(i)
		if err != nil || sheet == nil {
			continue
		}
		var g Grid
		for _, row := range sheet.GetRows() {
			g = append(g, xlsRowValues(row.GetCols()))
		}
		out = append(out, g)
	}
	return out, nil
}

func xlsRowValues(cols []structure.CellData) []string {
	out := make([]string, 0, len(cols))
	for _, col := range cols {
		val := col.GetString()
		if val == "" {
			if num := col.GetFloat64(); num != 0 {
				val = strconv.FormatFloat(num, 'f', -1, 64)
			} else if in := col.GetInt64(); in != 0 {
				val = strconv.FormatInt(in, 10)
			}
		}
		out = append(out, val)
	}
	return out
}

func decodeCSV(data []byte) (Grid, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return nil, errors.New("csv is not valid UTF-8")
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var g Grid
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		g = append(g, rec)
	}
	return g, nil
}

// sniffDelimiter picks the most frequent of ; , and tab on the first line.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{';', ',', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func mergeSheets(sheets []Grid) Grid {
	var out Grid
	var header string
	for i, s := range sheets {
		s = trimTrailingEmpty(s)
		if len(s) == 0 {
			continue
		}
		if i == 0 || header == "" {
			header = rowKey(s[0])
			out = append(out, s...)
			continue
		}
		if rowKey(s[0]) == header {
			s = s[1:]
		}
		out = append(out, s...)
	}
	return out
}

func trimTrailingEmpty(g Grid) Grid {
	for len(g) > 0 && IsEmptyRow(g[len(g)-1]) {
		g = g[:len(g)-1]
	}
	return g
}

func rowKey(row []string) string {
	return strings.ToLower(strings.Join(row, "\x1f"))
}

// IsEmptyRow reports whether every cell is blank.
func IsEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
