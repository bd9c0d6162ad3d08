package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/waste-pipeline/constants"
)

// FallbackConfidence is assigned to values filled from defaults rather than read from the source.
const FallbackConfidence = 0.5

// DefaultFieldConfidence is used for bare values the producer did not score.
var DefaultFieldConfidence = map[string]float64{
	"date":        0.9,
	"material":    0.9,
	"handling":    0.8,
	"weightKg":    0.95,
	"percentage":  0.8,
	"co2Saved":    0.8,
	"isHazardous": 0.9,
	"address":     0.85,
	"receiver":    0.9,
}

var (
	spaceSeparators = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "\t", "", "'", "")
	numericPrefix   = regexp.MustCompile(`^[-+]?[\d.,]+`)
	thousandsDot    = regexp.MustCompile(`^[-+]?[1-9]\d{0,2}\.\d{3}$`)
	weightToken     = regexp.MustCompile(`(?i)^\s*([-+]?[\d\s.,\x{00a0}\x{202f}]+)\s*(kilogram|kilo|kg|tonnes|tonne|ton|t|gram|g)?\.?\s*$`)
)

// ParseLocaleNumber parses numbers written with comma decimals and space thousands
// ("1 234,56" -> 1234.56). Unparsable input yields 0.
func ParseLocaleNumber(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return finite(f)
	case string:
		return parseLocaleString(n)
	default:
		return 0
	}
}

func parseLocaleString(s string) float64 {
	s = spaceSeparators.Replace(strings.TrimSpace(s))
	tok := numericPrefix.FindString(s)
	if tok == "" {
		return 0
	}
	tok = strings.TrimRight(tok, ".,")

	dots := strings.Count(tok, ".")
	commas := strings.Count(tok, ",")
	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(tok, ",") > strings.LastIndex(tok, ".") {
			tok = strings.ReplaceAll(tok, ".", "")
			tok = strings.Replace(tok, ",", ".", 1)
		} else {
			tok = strings.ReplaceAll(tok, ",", "")
		}
	case commas == 1:
		tok = strings.Replace(tok, ",", ".", 1)
	case commas > 1:
		tok = strings.ReplaceAll(tok, ",", "")
	case dots > 1:
		tok = strings.ReplaceAll(tok, ".", "")
	case dots == 1 && thousandsDot.MatchString(tok):
		tok = strings.Replace(tok, ".", "", 1)
	}

	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ParseWeightKg converts a weight token to kilograms. A unit suffix inside the token
// ("1,5 ton") wins over the separate unit argument.
func ParseWeightKg(v any, unit string) float64 {
	if s, ok := v.(string); ok {
		if m := weightToken.FindStringSubmatch(s); m != nil {
			if m[2] != "" {
				unit = m[2]
			}
			return ParseLocaleNumber(m[1]) * unitFactor(unit)
		}
		return ParseLocaleNumber(s) * unitFactor(unit)
	}
	return ParseLocaleNumber(v) * unitFactor(unit)
}

func unitFactor(unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(strings.TrimSuffix(unit, "."))) {
	case "t", "ton", "tonne", "tonnes", "ton(s)":
		return 1000
	case "g", "gram":
		return 0.001
	default:
		return 1
	}
}

var (
	compactPeriod = regexp.MustCompile(`(\d{8})\s*[-–]\s*(\d{8})`)
	isoPeriod     = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\s*[-–]\s*(\d{4}-\d{2}-\d{2})`)
	euPeriod      = regexp.MustCompile(`(\d{2})[/.\-](\d{2})[/.\-](\d{4})\s*[-–]\s*(\d{2})[/.\-](\d{2})[/.\-](\d{4})`)
	isoDate       = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[ T].*)?$`)
	slashISO      = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})(?:\s.*)?$`)
	dmyDate       = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4})(?:\s.*)?$`)
	compactDate   = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
	serialDate    = regexp.MustCompile(`^\d{1,5}(?:[.,]\d+)?$`)

	filenameISO     = regexp.MustCompile(`(?:^|[^0-9])(20[0-9]{2})[-_.](0[1-9]|1[0-2])[-_.](0[1-9]|[12][0-9]|3[01])(?:[^0-9]|$)`)
	filenameCompact = regexp.MustCompile(`(?:^|[^0-9])(20[0-9]{2})(0[1-9]|1[0-2])(0[1-9]|[12][0-9]|3[01])(?:[^0-9]|$)`)
	filenameEuro    = regexp.MustCompile(`(?:^|[^0-9])(0[1-9]|[12][0-9]|3[01])[-_.](0[1-9]|1[0-2])[-_.](20[0-9]{2})(?:[^0-9]|$)`)
)

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDateISO normalises a date-ish value to YYYY-MM-DD. Period ranges yield the end date;
// plain numbers are read as YYYYMMDD or as Excel serial days.
func ParseDateISO(v any) (string, bool) {
	switch d := v.(type) {
	case nil:
		return "", false
	case time.Time:
		if d.IsZero() {
			return "", false
		}
		return d.Format(time.DateOnly), true
	case string:
		return parseDateString(d)
	default:
		f := ParseLocaleNumber(v)
		if f <= 0 {
			return "", false
		}
		if f >= 19000101 && f <= 21001231 && f == math.Trunc(f) {
			return parseDateString(strconv.FormatInt(int64(f), 10))
		}
		return fromExcelSerial(f)
	}
}

func parseDateString(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if m := compactPeriod.FindStringSubmatch(s); m != nil {
		if out, ok := compactDateISO(m[2]); ok {
			return out, true
		}
	}
	if m := isoPeriod.FindStringSubmatch(s); m != nil {
		if out, ok := validDate(m[2]); ok {
			return out, true
		}
	}
	if m := euPeriod.FindStringSubmatch(s); m != nil {
		if out, ok := ymd(m[6], m[5], m[4]); ok {
			return out, true
		}
	}
	if m := isoDate.FindStringSubmatch(s); m != nil {
		return ymd(m[1], m[2], m[3])
	}
	if m := slashISO.FindStringSubmatch(s); m != nil {
		return ymd(m[1], m[2], m[3])
	}
	if m := dmyDate.FindStringSubmatch(s); m != nil {
		return ymd(m[3], m[2], m[1])
	}
	if compactDate.MatchString(s) {
		return compactDateISO(s)
	}
	if serialDate.MatchString(s) {
		return fromExcelSerial(ParseLocaleNumber(s))
	}
	return "", false
}

func compactDateISO(s string) (string, bool) {
	m := compactDate.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return ymd(m[1], m[2], m[3])
}

func ymd(y, m, d string) (string, bool) {
	yi, err1 := strconv.Atoi(y)
	mi, err2 := strconv.Atoi(m)
	di, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}
	return validDate(fmt.Sprintf("%04d-%02d-%02d", yi, mi, di))
}

func validDate(s string) (string, bool) {
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return "", false
	}
	return s, true
}

func fromExcelSerial(f float64) (string, bool) {
	// 1 = 1899-12-31, 2958465 = 9999-12-31
	if f < 1 || f > 2958465 {
		return "", false
	}
	return excelEpoch.AddDate(0, 0, int(f)).Format(time.DateOnly), true
}

// DateFromFilename finds a YYYY-MM-DD, YYYYMMDD or DD-MM-YYYY date embedded in a filename.
func DateFromFilename(filename string) string {
	if m := filenameISO.FindStringSubmatch(filename); m != nil {
		if out, ok := ymd(m[1], m[2], m[3]); ok {
			return out
		}
	}
	if m := filenameCompact.FindStringSubmatch(filename); m != nil {
		if out, ok := ymd(m[1], m[2], m[3]); ok {
			return out
		}
	}
	if m := filenameEuro.FindStringSubmatch(filename); m != nil {
		if out, ok := ymd(m[3], m[2], m[1]); ok {
			return out
		}
	}
	return ""
}

// ParseBool reads yes/no style markers used in waste reports ("Ja", "x", "true", 1).
func ParseBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "ja", "j", "yes", "y", "true", "x", "1", "fa", "farligt avfall":
			return true
		}
		return false
	case nil:
		return false
	default:
		return ParseLocaleNumber(v) != 0
	}
}

// ItemDefaults carries the document-level fallbacks applied while coercing raw items.
type ItemDefaults struct {
	Date     string // YYYY-MM-DD; empty means today
	Address  string
	Receiver string
	Synonyms map[string][]string // nil uses the built-in glossary
	Now      func() time.Time
}

func (d ItemDefaults) fallbackDate() string {
	if d.Date != "" {
		return d.Date
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	return now().Format(time.DateOnly)
}

// rawField is one field of a raw capability item, wrapped or bare.
type rawField struct {
	value      any
	confidence float64
	scored     bool
	present    bool
}

func pick(raw map[string]any, keys ...string) rawField {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		if w, ok := v.(map[string]any); ok {
			if inner, ok := w["value"]; ok {
				f := rawField{value: inner, present: inner != nil}
				if c, ok := w["confidence"]; ok {
					f.confidence = ClampConfidence(ParseLocaleNumber(c))
					f.scored = true
				}
				if !f.present {
					continue
				}
				return f
			}
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return rawField{value: v, present: true}
	}
	return rawField{}
}

func (f rawField) conf(field string) float64 {
	if f.scored {
		return f.confidence
	}
	return DefaultFieldConfidence[field]
}

func (f rawField) str() string {
	switch v := f.value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// CoerceLineItem converts one raw capability item into a LineItem. This is the single place where
// bare values become ConfidenceFields.
func CoerceLineItem(raw map[string]any, d ItemDefaults) LineItem {
	var li LineItem

	date := pick(raw, "date", "datum")
	if iso, ok := ParseDateISO(date.value); date.present && ok {
		li.Date = Field(iso, date.conf("date"))
	} else {
		li.Date = Field(d.fallbackDate(), FallbackConfidence)
	}

	material := pick(raw, "material", "materialName")
	rawMaterial := material.str()
	if rawMaterial != "" {
		synonyms := d.Synonyms
		if synonyms == nil {
			synonyms = constants.DefaultMaterialSynonyms
		}
		canonical, _ := constants.CanonicalizeMaterial(rawMaterial, synonyms)
		li.Material = Field(canonical, material.conf("material"))
	} else {
		li.Material = Field(constants.UnknownMaterial, 0)
	}

	handling := pick(raw, "handling", "hantering")
	li.Handling = Field(handling.str(), scoredOrZero(handling, "handling"))

	unit := pick(raw, "unit", "enhet").str()
	weight := pick(raw, "weightKg", "weight", "vikt", "quantity", "kvantitet")
	li.WeightKg = Field(ParseWeightKg(weight.value, unit), scoredOrZero(weight, "weightKg"))

	pct := pick(raw, "percentage", "andel")
	li.Percentage = Field(pct.str(), scoredOrZero(pct, "percentage"))

	co2 := pick(raw, "co2Saved", "co2")
	li.CO2Saved = Field(ParseLocaleNumber(co2.value), scoredOrZero(co2, "co2Saved"))

	hazardous := pick(raw, "isHazardous", "hazardous", "farligtAvfall")
	isHaz := ParseBool(hazardous.value) || constants.IsHazardousMaterial(rawMaterial) || constants.IsHazardousMaterial(li.Material.Value)
	hazConf := hazardous.conf("isHazardous")
	if !hazardous.present {
		hazConf = DefaultFieldConfidence["isHazardous"]
	}
	li.IsHazardous = Field(isHaz, hazConf)

	address := pick(raw, "address", "location", "adress", "plats")
	if s := address.str(); s != "" {
		li.Address = Field(s, address.conf("address"))
	} else if d.Address != "" {
		li.Address = Field(d.Address, FallbackConfidence)
	} else {
		li.Address = Field("", 0)
	}

	receiver := pick(raw, "receiver", "mottagare")
	if s := receiver.str(); s != "" {
		li.Receiver = Field(s, receiver.conf("receiver"))
	} else if d.Receiver != "" {
		li.Receiver = Field(d.Receiver, FallbackConfidence)
	} else {
		li.Receiver = Field(constants.UnknownReceiver, 0)
	}

	if issues, ok := raw["_verificationIssues"].([]any); ok {
		li.VerificationIssues = coerceIssues(issues)
	}
	return li
}

func scoredOrZero(f rawField, field string) float64 {
	if !f.present {
		return 0
	}
	return f.conf(field)
}

// CoerceLineItems applies CoerceLineItem to every raw item in order.
func CoerceLineItems(raws []map[string]any, d ItemDefaults) []LineItem {
	out := make([]LineItem, 0, len(raws))
	for _, r := range raws {
		out = append(out, CoerceLineItem(r, d))
	}
	return out
}

func coerceIssues(raws []any) []VerificationIssue {
	var out []VerificationIssue
	for _, r := range raws {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, VerificationIssue{
			RowIndex:   int(ParseLocaleNumber(m["rowIndex"])),
			Field:      fmt.Sprint(m["field"]),
			Issue:      fmt.Sprint(m["issue"]),
			Severity:   Severity(fmt.Sprint(m["severity"])),
			Suggestion: stringOr(m["suggestion"]),
		})
	}
	return out
}

func stringOr(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
