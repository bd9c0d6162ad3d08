// Package prescan computes coarse spreadsheet totals before any capability call.
// The totals are a sanity baseline for the extracted rows and never feed the output.
package prescan

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
)

// HeaderScanRows bounds how far down the sheet a header is searched for.
const HeaderScanRows = 30

// Category is a labelled column family recognised in header rows.
type Category string

const (
	CategoryWeight   Category = "weight"
	CategoryCost     Category = "cost"
	CategoryMaterial Category = "material"
	CategoryAddress  Category = "address"
	CategoryReceiver Category = "receiver"
	CategoryDate     Category = "date"
	CategoryCO2      Category = "co2"
)

type alias struct {
	category Category
	pattern  *regexp.Regexp
}

// aliases are checked in order; a cell binds to the first category it matches.
var aliases = []alias{
	{CategoryCO2, regexp.MustCompile(`co2|koldioxid|utsläpp|emission|besparing`)},
	{CategoryWeight, regexp.MustCompile(`vikt|weight|kvantitet|mängd|\bkg\b|\bton\b|tonnage|quantity|netto`)},
	{CategoryCost, regexp.MustCompile(`kostnad|belopp|pris|summa kr|\bkr\b|\bsek\b|cost|amount|price`)},
	{CategoryMaterial, regexp.MustCompile(`material|avfallsslag|avfallstyp|fraktion|artikel|benämning|waste type|fraction`)},
	{CategoryAddress, regexp.MustCompile(`adress|address|hämtställe|hämtadress|plats|location|site|anläggning`)},
	{CategoryReceiver, regexp.MustCompile(`mottagare|receiver|behandlare|recipient|transportör`)},
	{CategoryDate, regexp.MustCompile(`datum|date|period|månad|hämtdatum|\bdag\b`)},
}

// totalMarker matches a cell that opens a summary row, e.g. "Totalt" or "Summa:".
var totalMarker = regexp.MustCompile(`^(total|totalt|summa|sum|totalsumma|delsumma)\b`)

// Result is the baseline computed from a grid.
type Result struct {
	entity.Baseline
	Columns map[Category]int
}

// Scan finds the header row, resolves category columns and sums the data rows beneath it.
// Grids with fewer than two rows yield zero totals.
func Scan(grid [][]string) Result {
	res := Result{Columns: map[Category]int{}}
	if len(grid) < 2 {
		return res
	}

	res.HeaderIndex = findHeader(grid)
	res.Columns = resolveColumns(grid[res.HeaderIndex])

	weight, cost, co2 := decimal.Zero, decimal.Zero, decimal.Zero
	for _, row := range grid[res.HeaderIndex+1:] {
		if isBlank(row) || isTotalRow(row) {
			continue
		}
		if col, ok := res.Columns[CategoryWeight]; ok {
			weight = weight.Add(cellDecimal(row, col))
		}
		if col, ok := res.Columns[CategoryCost]; ok {
			cost = cost.Add(cellDecimal(row, col))
		}
		if col, ok := res.Columns[CategoryCO2]; ok {
			co2 = co2.Add(cellDecimal(row, col))
		}
		if col, ok := res.Columns[CategoryMaterial]; ok && col < len(row) && constants.IsHazardousMaterial(row[col]) {
			res.HazardousCount++
		}
	}

	res.WeightTotal = weight.Round(2).InexactFloat64()
	res.CostTotal = cost.Round(2).InexactFloat64()
	res.CO2Total = co2.Round(2).InexactFloat64()
	return res
}

// findHeader returns the first row with the strictly highest number of matched categories.
func findHeader(grid [][]string) int {
	limit := min(len(grid), HeaderScanRows)
	best, bestCount := 0, 0
	for i := 0; i < limit; i++ {
		line := joinLower(grid[i])
		count := 0
		for _, a := range aliases {
			if a.pattern.MatchString(line) {
				count++
			}
		}
		if count > bestCount {
			best, bestCount = i, count
		}
	}
	return best
}

func resolveColumns(header []string) map[Category]int {
	cols := map[Category]int{}
	for i, cell := range header {
		c := strings.ToLower(strings.TrimSpace(cell))
		if c == "" {
			continue
		}
		for _, a := range aliases {
			if _, taken := cols[a.category]; taken {
				continue
			}
			if a.pattern.MatchString(c) {
				cols[a.category] = i
				break
			}
		}
	}
	return cols
}

func cellDecimal(row []string, col int) decimal.Decimal {
	if col >= len(row) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(entity.ParseLocaleNumber(row[col]))
}

func joinLower(row []string) string {
	return strings.ToLower(strings.Join(row, " "))
}

func isTotalRow(row []string) bool {
	for _, c := range row {
		if totalMarker.MatchString(strings.ToLower(strings.TrimSpace(c))) {
			return true
		}
	}
	return false
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
