package entity

// Severity grades a verification finding.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// VerificationIssue is a field the verifier could not trace back to the source.
type VerificationIssue struct {
	RowIndex   int      `json:"rowIndex"`
	Field      string   `json:"field"`
	Issue      string   `json:"issue"`
	Severity   Severity `json:"severity"`
	Suggestion string   `json:"suggestion,omitempty"`
}
