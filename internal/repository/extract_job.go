package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
)

// JobOutcome is what a finished run writes back onto its extract_jobs row.
type JobOutcome struct {
	Disposition  constants.Disposition
	Confidence   float64
	ModelPath    string
	ErrorMessage string
}

type ExtractJobRepository interface {
	Start(ctx context.Context, documentID uuid.UUID) (*entity.ExtractJob, error)
	Finish(ctx context.Context, jobID uuid.UUID, out JobOutcome) error
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*entity.ExtractJob, error)
}

const extractJobsTable = "extract_jobs"

var extractJobColumns = []string{
	"id", "document_id", "started_at", "finished_at", "status", "disposition", "confidence", "model_path", "error_message",
}

type extractJobRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewExtractJobRepository(db *DB, logger *slog.Logger) ExtractJobRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &extractJobRepo{db: db, logger: logger}
}

func (r *extractJobRepo) Start(ctx context.Context, documentID uuid.UUID) (*entity.ExtractJob, error) {
	job := &entity.ExtractJob{
		ID:         uuid.New(),
		DocumentID: documentID,
		StartedAt:  time.Now().UTC(),
		Status:     constants.JobStatusRunning,
	}
	query, args := r.db.builder().Insert(extractJobsTable).
		Columns("id", "document_id", "started_at", "status").
		Values(job.ID.String(), documentID.String(), job.StartedAt, string(job.Status)).
		Query()
	if _, err := r.db.exec(ctx, query, args); err != nil {
		r.logger.Error("extract_job start failed", "doc_id", documentID, "error", err)
		return nil, dbError("JOB_START", err, "start extract job for %s", documentID)
	}
	r.logger.Info("extract_job started", "job_id", job.ID, "doc_id", documentID)
	return job, nil
}

// Finish marks the job FAILED when the outcome carries an error message or an error disposition.
func (r *extractJobRepo) Finish(ctx context.Context, jobID uuid.UUID, out JobOutcome) error {
	status := constants.JobStatusOK
	if out.ErrorMessage != "" || out.Disposition == constants.DispositionError {
		status = constants.JobStatusFailed
	}
	var errMsg *string
	if out.ErrorMessage != "" {
		errMsg = &out.ErrorMessage
	}
	var disp *string
	if out.Disposition != "" {
		d := string(out.Disposition)
		disp = &d
	}

	query, args := r.db.builder().Update(extractJobsTable).
		Set("finished_at", time.Now().UTC()).
		Set("status", string(status)).
		Set("disposition", nullable(disp)).
		Set("confidence", out.Confidence).
		Set("model_path", out.ModelPath).
		Set("error_message", nullable(errMsg)).
		Where(entsql.EQ("id", jobID.String())).
		Query()
	n, err := r.db.exec(ctx, query, args)
	if err != nil {
		r.logger.Error("extract_job finish failed", "job_id", jobID, "error", err)
		return dbError("JOB_FINISH", err, "finish extract job %s", jobID)
	}
	if n == 0 {
		return common.Errorf("JOB_NOT_FOUND", common.ErrNotFound, "extract job %s", jobID)
	}
	if status == constants.JobStatusFailed {
		r.logger.Warn("extract_job finished", "job_id", jobID, "status", status, "error", out.ErrorMessage)
	} else {
		r.logger.Info("extract_job finished", "job_id", jobID, "status", status, "disposition", out.Disposition)
	}
	return nil
}

func (r *extractJobRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*entity.ExtractJob, error) {
	b := r.db.builder()
	query, args := b.Select(extractJobColumns...).
		From(b.Table(extractJobsTable)).
		Where(entsql.EQ("document_id", documentID.String())).
		OrderBy("started_at").
		Query()

	var out []*entity.ExtractJob
	err := r.db.query(ctx, query, args, func(rows *entsql.Rows) error {
		var (
			j           entity.ExtractJob
			status      string
			disposition sql.NullString
			confidence  sql.NullFloat64
			errMsg      sql.NullString
			started     nullTime
			finished    nullTime
		)
		if err := rows.Scan(&j.ID, &j.DocumentID, &started, &finished, &status, &disposition, &confidence, &j.ModelPath, &errMsg); err != nil {
			return err
		}
		j.Status = constants.JobStatus(status)
		j.StartedAt = started.Time
		j.FinishedAt = finished.ptr()
		if disposition.Valid {
			d := constants.Disposition(disposition.String)
			j.Disposition = &d
		}
		j.Confidence = nullFloat(confidence)
		j.ErrorMessage = nullString(errMsg)
		out = append(out, &j)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list extract jobs", "doc_id", documentID, "error", err)
		return nil, dbError("JOB_LIST", err, "list extract jobs for %s", documentID)
	}
	return out, nil
}
