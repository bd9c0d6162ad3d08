package entity

// Baseline holds the coarse spreadsheet totals computed before extraction.
type Baseline struct {
	HeaderIndex    int     `json:"headerIndex"`
	WeightTotal    float64 `json:"weightTotal"`
	CostTotal      float64 `json:"costTotal"`
	CO2Total       float64 `json:"co2Total"`
	HazardousCount int     `json:"hazardousCount"`
}

// Language records detected language and any translated labels.
type Language struct {
	Detected     string   `json:"detected"`
	Translations []string `json:"translations"`
}

// Metadata describes how a record was produced.
type Metadata struct {
	TotalRows      int       `json:"totalRows"`
	ExtractedRows  int       `json:"extractedRows"`
	ProcessedRows  int       `json:"processedRows"`
	AggregatedRows int       `json:"aggregatedRows,omitempty"`
	Confidence     float64   `json:"confidence"`
	ExtractionRate float64   `json:"extractionRate"`
	Chunked        bool      `json:"chunked"`
	Chunks         int       `json:"chunks"`
	Model          string    `json:"model"`
	Language       Language  `json:"language"`
	Baseline       *Baseline `json:"baseline,omitempty"`
}

// Validation summarises completeness and open issues in percent terms.
type Validation struct {
	Completeness float64  `json:"completeness"`
	Confidence   float64  `json:"confidence"`
	Issues       []string `json:"issues"`
}

// ExtractedRecord is the document-level result of one pipeline run.
type ExtractedRecord struct {
	Date          ConfidenceField[string]  `json:"date"`
	Supplier      ConfidenceField[string]  `json:"supplier"`
	Address       ConfidenceField[string]  `json:"address"`
	Receiver      ConfidenceField[string]  `json:"receiver"`
	Material      ConfidenceField[string]  `json:"material"`
	WeightKg      ConfidenceField[float64] `json:"weightKg"`
	Cost          ConfidenceField[float64] `json:"cost"`
	TotalCO2Saved ConfidenceField[float64] `json:"totalCo2Saved"`
	LineItems     []LineItem               `json:"lineItems"`
	Metadata      Metadata                 `json:"metadata"`
	Validation    Validation               `json:"_validation"`
	ProcessingLog []string                 `json:"_processingLog"`
}

// SetConfidence keeps metadata.confidence and _validation.confidence in sync.
func (r *ExtractedRecord) SetConfidence(c float64) {
	c = ClampConfidence(c)
	r.Metadata.Confidence = c
	r.Validation.Confidence = c * 100
}

// AddIssue appends a validation issue line.
func (r *ExtractedRecord) AddIssue(issue string) {
	r.Validation.Issues = append(r.Validation.Issues, issue)
}
