package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/waste-pipeline/constants"
)

// ExtractJob is one attempt at running the pipeline over a document.
type ExtractJob struct {
	ID           uuid.UUID              `json:"id"`
	DocumentID   uuid.UUID              `json:"document_id"`
	StartedAt    time.Time              `json:"started_at"`
	FinishedAt   *time.Time             `json:"finished_at,omitempty"`
	Status       constants.JobStatus    `json:"status"`
	Disposition  *constants.Disposition `json:"disposition,omitempty"`
	Confidence   *float64               `json:"confidence,omitempty"`
	ModelPath    string                 `json:"model_path,omitempty"`
	ErrorMessage *string                `json:"error_message,omitempty"`
}
