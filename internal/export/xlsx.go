// Package export writes processed documents as XLSX in the Swedish reporting layout.
package export

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
)

const (
	SummarySheet = "Summary"
	DataSheet    = "Data"
)

// Headers are the data sheet columns in order.
var Headers = []string{
	"Datum",
	"Filnamn",
	"Leverantör",
	"Material",
	"Vikt (kg)",
	"Enhet",
	"Kostnad (kr)",
	"Adress",
	"Mottagare",
	"Hantering",
	"Farligt Avfall",
	"CO2 Besparing",
	"Status",
}

var colWidths = []float64{12, 25, 20, 25, 12, 8, 12, 35, 30, 20, 15, 12, 15}

// Row is one material line of the data sheet, already formatted.
type Row struct {
	Date      string
	Filename  string
	Supplier  string
	Material  string
	WeightKg  string
	Unit      string
	CostKr    string
	Address   string
	Receiver  string
	Handling  string
	Hazardous string
	CO2Saved  string
	Status    string
}

func (r Row) cells() []string {
	return []string{r.Date, r.Filename, r.Supplier, r.Material, r.WeightKg, r.Unit, r.CostKr,
		r.Address, r.Receiver, r.Handling, r.Hazardous, r.CO2Saved, r.Status}
}

// Summary heads the workbook.
type Summary struct {
	Source    string
	Documents int
	TotalRows int
	ValidRows int
	Changes   []string
	Issues    []string
}

// FormatDecimal renders v with two decimals and a decimal comma, without thousands separators.
func FormatDecimal(v float64) string {
	return strings.Replace(decimal.NewFromFloat(v).StringFixed(2), ".", ",", 1)
}

// RowsFromDocument emits one row per line item, or a single row from the document-level
// fields when the record has no items.
func RowsFromDocument(doc *entity.Document) []Row {
	if doc == nil || doc.Record == nil {
		return nil
	}
	rec := doc.Record
	base := Row{
		Date:     rec.Date.Value,
		Filename: doc.Filename,
		Supplier: rec.Supplier.Value,
		Unit:     "kg",
		CostKr:   FormatDecimal(rec.Cost.Value),
		Address:  rec.Address.Value,
		Receiver: rec.Receiver.Value,
		Status:   string(doc.Status),
	}
	if len(rec.LineItems) == 0 {
		r := base
		r.Material = rec.Material.Value
		r.WeightKg = FormatDecimal(rec.WeightKg.Value)
		r.Hazardous = "Nej"
		if rec.TotalCO2Saved.Value != 0 {
			r.CO2Saved = FormatDecimal(rec.TotalCO2Saved.Value)
		}
		return []Row{r}
	}

	rows := make([]Row, 0, len(rec.LineItems))
	for _, it := range rec.LineItems {
		r := base
		if it.Date.Value != "" {
			r.Date = it.Date.Value
		}
		r.Material = it.Material.Value
		r.WeightKg = FormatDecimal(it.WeightKg.Value)
		if it.Address.Value != "" {
			r.Address = it.Address.Value
		}
		if it.Receiver.Value != "" {
			r.Receiver = it.Receiver.Value
		}
		r.Handling = it.Handling.Value
		r.Hazardous = "Nej"
		if it.IsHazardous.Value {
			r.Hazardous = "Ja"
		}
		if it.CO2Saved.Value != 0 {
			r.CO2Saved = FormatDecimal(it.CO2Saved.Value)
		}
		rows = append(rows, r)
	}
	return rows
}

// Valid reports whether the row carries the fields a report needs.
func (r Row) Valid() bool {
	return r.WeightKg != "" && r.Address != "" && r.Date != "" && r.Material != ""
}

// WriteXLSX builds a workbook with a summary sheet followed by the data sheet.
func WriteXLSX(rows []Row, summary Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeSummary(f, summary); err != nil {
		return nil, err
	}

	idx, err := f.NewSheet(DataSheet)
	if err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}
	if err := writeRow(f, DataSheet, 1, Headers); err != nil {
		return nil, err
	}
	for i, r := range rows {
		if err := writeRow(f, DataSheet, i+2, r.cells()); err != nil {
			return nil, err
		}
	}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(DataSheet, col, col, w)
	}
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, s Summary) error {
	lines := [][]any{
		{"PROCESSING SUMMARY"},
		{},
		{"Source:", s.Source},
		{"Documents:", s.Documents},
		{"Total Rows:", s.TotalRows},
		{"Valid Rows:", s.ValidRows},
		{"Issues:", len(s.Issues)},
	}
	if len(s.Changes) > 0 {
		lines = append(lines, []any{}, []any{"CHANGES MADE:"})
		for _, c := range s.Changes {
			lines = append(lines, []any{" • " + c})
		}
	}
	if len(s.Issues) > 0 {
		lines = append(lines, []any{}, []any{"ISSUES FOUND:"})
		for _, is := range s.Issues {
			lines = append(lines, []any{" ⚠ " + is})
		}
	}
	for i, line := range lines {
		if len(line) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &line); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 20)
	_ = f.SetColWidth(SummarySheet, "B", "B", 50)
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}
