package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/waste-pipeline/constants"
)

// Document is an ingested source file and its latest processing outcome.
type Document struct {
	ID          uuid.UUID                `json:"id"`
	Filename    string                   `json:"filename"`
	MIMEType    string                   `json:"mime_type"`
	FileKind    constants.FileKind       `json:"file_kind"`
	BlobPath    string                   `json:"blob_path"`
	ContentHash string                   `json:"content_hash"`
	FileSize    int64                    `json:"file_size"`
	Status      constants.DocumentStatus `json:"status"`
	Confidence  *float64                 `json:"confidence,omitempty"`
	ModelPath   string                   `json:"model_path,omitempty"`
	Error       string                   `json:"error,omitempty"`
	Record      *ExtractedRecord         `json:"record,omitempty"`
	UploadedAt  time.Time                `json:"uploaded_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}
