package llm

import (
	"context"

	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
)

// Assessment is the raw quality verdict of the assessor before it becomes an entity.QualityAssessment.
type Assessment struct {
	QualityScore     float64 `json:"qualityScore"`
	Complexity       string  `json:"complexity"`
	TableCount       int     `json:"tableCount"`
	HasHandwriting   bool    `json:"hasHandwriting"`
	HasMergedCells   bool    `json:"hasMergedCells"`
	DetectedLanguage string  `json:"detectedLanguage"`
	Reasoning        string  `json:"reasoning"`
}

// Image is a photo or rendered page attached to a capability call.
type Image struct {
	Data []byte
	MIME string
}

type AssessRequest struct {
	Filename string
	MIMEType string
	Images   []Image // the photo itself, or the first rendered page of a PDF
	Preview  string  // start of the PDF text layer when one exists
}

// ColumnMapping is the advisory header interpretation of a spreadsheet.
type ColumnMapping struct {
	Columns    map[string]string `json:"columns"` // header label -> line item field
	Language   string            `json:"language"`
	Confidence float64           `json:"confidence"`
	Notes      string            `json:"notes,omitempty"`
}

type MapColumnsRequest struct {
	Filename string
	Header   []string
	Sample   [][]string
}

// ChunkRequest carries one slice of data rows. Rows never include the header.
type ChunkRequest struct {
	Filename           string
	Header             []string
	Rows               [][]string
	FirstRow           int // zero-based index of Rows[0] among all data rows
	Mapping            *ColumnMapping
	Synonyms           map[string][]string
	DefaultReceiver    string
	FilenameDate       string
	CustomInstructions string
	ExpectedCount      int
	Defaults           entity.ItemDefaults
}

type ChunkResult struct {
	Items []entity.LineItem
}

type DocumentRequest struct {
	Filename           string
	Text               string
	Images             []Image
	Synonyms           map[string][]string
	DefaultReceiver    string
	FilenameDate       string
	CustomInstructions string
	Defaults           entity.ItemDefaults
}

// DocumentInfo is the header block of a scanned document.
type DocumentInfo struct {
	Date     string `json:"date"`
	Supplier string `json:"supplier"`
	Address  string `json:"address"`
	Receiver string `json:"receiver"`
}

type DocumentResult struct {
	Items    []entity.LineItem
	Document DocumentInfo
	Language string
}

type ReconcileRequest struct {
	Filename   string
	Items      []entity.LineItem
	SourceText string
	Images     []Image // the source photo or rendered PDF pages
	TraceTail  []string
	Confidence float64
	Defaults   entity.ItemDefaults
}

// Change is one correction reported by the reconciler.
type Change struct {
	RowIndex int    `json:"rowIndex"`
	Field    string `json:"field"`
	Before   string `json:"before,omitempty"`
	After    string `json:"after,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type ReconcileResult struct {
	Items         []entity.LineItem
	Changes       []Change
	NewConfidence *float64
}

type VerifyRequest struct {
	Filename      string
	Items         []entity.LineItem
	SourceExcerpt string
	Batch         int // 1-based
	Batches       int
	FirstRow      int
}

type VerifyResult struct {
	Issues     []entity.VerificationIssue // RowIndex is relative to the batch
	Confidence *float64
}

// Assessor grades a scanned document.
type Assessor interface {
	Assess(ctx context.Context, req AssessRequest) (Assessment, error)
}

// Extractor turns source content into line items.
type Extractor interface {
	MapColumns(ctx context.Context, req MapColumnsRequest) (ColumnMapping, error)
	ExtractChunk(ctx context.Context, req ChunkRequest) (ChunkResult, error)
	ExtractDocument(ctx context.Context, req DocumentRequest) (DocumentResult, error)
}

// Reconciler repairs a low-confidence extraction with a stronger model.
type Reconciler interface {
	Reconcile(ctx context.Context, req ReconcileRequest) (ReconcileResult, error)
}

// Verifier checks a batch of items against the source.
type Verifier interface {
	VerifyBatch(ctx context.Context, req VerifyRequest) (VerifyResult, error)
}
