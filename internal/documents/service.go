// Package documents runs stored documents through the extraction pipeline and
// records the outcome on the document and its extract job.
package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/blob"
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/waste-pipeline/internal/repository"
)

// Pipeline is the single-document extraction run.
type Pipeline interface {
	Process(ctx context.Context, in pipeline.Input, settings entity.Settings) pipeline.Result
}

// Service loads a document, runs the pipeline and persists the record.
type Service struct {
	docs     repository.DocumentRepository
	jobs     repository.ExtractJobRepository
	settings repository.SettingsRepository
	blobs    blob.Store
	pipe     Pipeline
	logger   *slog.Logger
}

func NewService(
	docs repository.DocumentRepository,
	jobs repository.ExtractJobRepository,
	settings repository.SettingsRepository,
	blobs blob.Store,
	pipe Pipeline,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, jobs: jobs, settings: settings, blobs: blobs, pipe: pipe, logger: logger}
}

// LoadDocument returns the stored bytes of a document with its filename and MIME type.
func (s *Service) LoadDocument(ctx context.Context, id uuid.UUID) ([]byte, string, string, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, "", "", err
	}
	data, err := s.blobs.Download(ctx, doc.BlobPath)
	if err != nil {
		return nil, doc.Filename, doc.MIMEType, err
	}
	return data, doc.Filename, doc.MIMEType, nil
}

// Get returns a document with its latest record.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	return s.docs.GetByID(ctx, id)
}

// List returns documents in the given statuses, or all documents when none are given.
func (s *Service) List(ctx context.Context, statuses ...constants.DocumentStatus) ([]*entity.Document, error) {
	return s.docs.ListByStatus(ctx, statuses...)
}

// MarkQueued flags a document as waiting for a worker.
func (s *Service) MarkQueued(ctx context.Context, id uuid.UUID) error {
	return s.docs.UpdateStatus(ctx, id, constants.DocumentQueued, "")
}

// RestoreStatus puts back a status a document held before a failed hand-off.
func (s *Service) RestoreStatus(ctx context.Context, id uuid.UUID, status constants.DocumentStatus, errMsg string) error {
	return s.docs.UpdateStatus(ctx, id, status, errMsg)
}

// Process runs the pipeline over a stored document. A document whose bytes cannot be
// loaded is saved with status error. The returned document reflects the stored state.
func (s *Service) Process(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	start := time.Now()
	ctx = common.WithDocumentID(ctx, id.String())
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status == constants.DocumentProcessing {
		return doc, common.Errorf("DOCUMENT_BUSY", common.ErrInvalidInput, "document %s is already processing", id)
	}
	if err := s.docs.UpdateStatus(ctx, id, constants.DocumentProcessing, ""); err != nil {
		return nil, err
	}
	job, err := s.jobs.Start(ctx, id)
	if err != nil {
		s.logger.Error("documents.job.start_failed", "doc_id", id, "error", err)
		s.markError(ctx, id, err)
		return nil, err
	}
	s.logger.Info("documents.process.start", "doc_id", id, "job_id", job.ID, "filename", doc.Filename)

	data, err := s.blobs.Download(ctx, doc.BlobPath)
	if err != nil {
		s.logger.Error("documents.load.failed", "doc_id", id, "error", err)
		return s.saveFailure(ctx, id, job.ID, doc.Filename, err)
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Warn("documents.settings.unavailable", "doc_id", id, "error", err)
		settings = entity.DefaultSettings()
	}

	res := s.pipe.Process(ctx, pipeline.Input{Bytes: data, Filename: doc.Filename, MIME: doc.MIMEType}, settings)
	status := constants.DocumentStatus(res.Status)
	if res.Record == nil {
		return s.saveFailure(ctx, id, job.ID, doc.Filename, res.Err)
	}
	if err := s.docs.SaveExtractedRecord(ctx, id, res.Record, status); err != nil {
		s.logger.Error("documents.save.failed", "doc_id", id, "error", err)
		s.markError(ctx, id, err)
		s.finishJob(ctx, job.ID, repository.JobOutcome{Disposition: constants.DispositionError, ErrorMessage: err.Error()})
		return nil, err
	}

	out := repository.JobOutcome{Disposition: res.Status, Confidence: res.Confidence, ModelPath: res.ModelPath}
	if res.Err != nil {
		out.ErrorMessage = res.Err.Error()
	}
	s.finishJob(ctx, job.ID, out)

	s.logger.Info("documents.process.done", "doc_id", id, "job_id", job.ID, "status", status,
		"confidence", res.Confidence, "elapsed_ms", time.Since(start).Milliseconds())
	return s.docs.GetByID(ctx, id)
}

// Retry re-runs a document that ended in error or needs review.
func (s *Service) Retry(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.Status.IsTerminal() {
		return doc, common.Errorf("DOCUMENT_NOT_RETRYABLE", common.ErrInvalidInput, "document %s is %s", id, doc.Status)
	}
	s.logger.Info("documents.retry", "doc_id", id, "previous_status", doc.Status)
	return s.Process(ctx, id)
}

func (s *Service) saveFailure(ctx context.Context, id, jobID uuid.UUID, filename string, cause error) (*entity.Document, error) {
	if cause == nil {
		cause = errors.New("pipeline returned no record")
	}
	rec := &entity.ExtractedRecord{
		Metadata:      entity.Metadata{Language: entity.Language{Detected: constants.DefaultLanguage, Translations: []string{}}},
		Validation:    entity.Validation{Issues: []string{cause.Error()}},
		LineItems:     []entity.LineItem{},
		ProcessingLog: []string{fmt.Sprintf("[%s] Processing failed for %s: %v", time.Now().Format("15:04:05"), filename, cause)},
	}
	if err := s.docs.SaveExtractedRecord(ctx, id, rec, constants.DocumentError); err != nil {
		s.logger.Error("documents.save_error.failed", "doc_id", id, "error", err)
		s.markError(ctx, id, cause)
	}
	s.finishJob(ctx, jobID, repository.JobOutcome{Disposition: constants.DispositionError, ErrorMessage: cause.Error()})
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, cause
	}
	return doc, cause
}

// markError moves a document out of processing so it can be retried.
func (s *Service) markError(ctx context.Context, id uuid.UUID, cause error) {
	if err := s.docs.UpdateStatus(ctx, id, constants.DocumentError, cause.Error()); err != nil {
		s.logger.Error("documents.status.failed", "doc_id", id, "error", err)
	}
}

func (s *Service) finishJob(ctx context.Context, jobID uuid.UUID, out repository.JobOutcome) {
	if err := s.jobs.Finish(ctx, jobID, out); err != nil {
		s.logger.Error("documents.job.finish_failed", "job_id", jobID, "error", err)
	}
}
