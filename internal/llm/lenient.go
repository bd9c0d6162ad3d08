package llm

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Assessment defaults used when a reply omits a field.
const (
	DefaultQualityScore = 0.7
	DefaultComplexity   = "MEDIUM"
	DefaultTableCount   = 1
	DefaultLanguage     = "Swedish"
)

// ParseAssessmentLenient reads whatever assessment fields are present in raw and
// fills the rest with defaults. It never fails.
func ParseAssessmentLenient(raw []byte) Assessment {
	doc := gjson.ParseBytes(CleanJSON(raw))
	out := Assessment{
		QualityScore:     DefaultQualityScore,
		Complexity:       DefaultComplexity,
		TableCount:       DefaultTableCount,
		DetectedLanguage: DefaultLanguage,
	}
	if v := doc.Get("qualityScore"); v.Exists() {
		if f := v.Float(); f > 0 && f <= 1 {
			out.QualityScore = f
		}
	}
	if v := doc.Get("complexity"); v.Exists() {
		switch c := strings.ToUpper(strings.TrimSpace(v.String())); c {
		case "LOW", "MEDIUM", "HIGH":
			out.Complexity = c
		}
	}
	if v := doc.Get("tableCount"); v.Exists() && v.Int() > 0 {
		out.TableCount = int(v.Int())
	}
	out.HasHandwriting = doc.Get("hasHandwriting").Bool()
	out.HasMergedCells = doc.Get("hasMergedCells").Bool()
	if v := strings.TrimSpace(doc.Get("detectedLanguage").String()); v != "" {
		out.DetectedLanguage = v
	}
	out.Reasoning = doc.Get("reasoning").String()
	return out
}
