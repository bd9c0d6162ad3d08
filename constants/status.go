package constants

// Disposition is the terminal outcome of one pipeline run.
type Disposition string

const (
	DispositionApproved    Disposition = "approved"
	DispositionNeedsReview Disposition = "needs_review"
	DispositionError       Disposition = "error"
)

// DocumentStatus is the lifecycle state stored on a document row.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	DocumentUploaded    DocumentStatus = "uploaded"
	DocumentQueued      DocumentStatus = "queued"
	DocumentProcessing  DocumentStatus = "processing"
	DocumentApproved    DocumentStatus = DocumentStatus(DispositionApproved)
	DocumentNeedsReview DocumentStatus = DocumentStatus(DispositionNeedsReview)
	DocumentError       DocumentStatus = DocumentStatus(DispositionError)
)

// IsTerminal reports whether no further processing is pending.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentApproved || s == DocumentNeedsReview || s == DocumentError
}

// JobStatus is the canonical status for rows in extract_job.
type JobStatus string

const (
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusOK      JobStatus = "OK"
	JobStatusFailed  JobStatus = "FAILED"
)

// Capability identifies the extraction route chosen for a document.
type Capability string

const (
	CapabilityStructured Capability = "structured"
	CapabilityOCR        Capability = "ocr"
)
