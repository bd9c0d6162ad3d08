package entity

import "github.com/joseph-ayodele/waste-pipeline/constants"

// Complexity is the coarse table complexity reported by the assessor.
type Complexity string

const (
	ComplexityLow    Complexity = "LOW"
	ComplexityMedium Complexity = "MEDIUM"
	ComplexityHigh   Complexity = "HIGH"
)

// ParseComplexity maps free text onto a Complexity, defaulting to MEDIUM.
func ParseComplexity(s string) Complexity {
	switch Complexity(s) {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return Complexity(s)
	default:
		return ComplexityMedium
	}
}

// QualityAssessment is produced once per document and not persisted beyond the run.
type QualityAssessment struct {
	FileType         constants.FileKind   `json:"fileType"`
	QualityScore     float64              `json:"qualityScore"`
	Complexity       Complexity           `json:"complexity"`
	TableCount       int                  `json:"tableCount"`
	HasHandwriting   bool                 `json:"hasHandwriting"`
	HasMergedCells   bool                 `json:"hasMergedCells"`
	DetectedLanguage string               `json:"detectedLanguage"`
	Capability       constants.Capability `json:"capability"`
	Reasoning        string               `json:"reasoning"`
}
