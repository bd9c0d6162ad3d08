package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	GetByHash(ctx context.Context, hash string) (*entity.Document, error)
	ListByStatus(ctx context.Context, statuses ...constants.DocumentStatus) ([]*entity.Document, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status constants.DocumentStatus, errMsg string) error
	SaveExtractedRecord(ctx context.Context, id uuid.UUID, record *entity.ExtractedRecord, status constants.DocumentStatus) error
}

const documentsTable = "documents"

var documentColumns = []string{
	"id", "filename", "mime_type", "file_kind", "blob_path", "content_hash", "file_size",
	"status", "confidence", "model_path", "error", "record", "uploaded_at", "updated_at",
}

type documentRepo struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewDocumentRepository(db *DB, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepo{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (r *documentRepo) Create(ctx context.Context, doc *entity.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	now := r.now()
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = now
	}
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = constants.DocumentUploaded
	}
	record, err := marshalRecord(doc.Record)
	if err != nil {
		return err
	}

	query, args := r.db.builder().Insert(documentsTable).
		Columns(documentColumns...).
		Values(doc.ID.String(), doc.Filename, doc.MIMEType, string(doc.FileKind), doc.BlobPath, doc.ContentHash, doc.FileSize,
			string(doc.Status), nullable(doc.Confidence), doc.ModelPath, doc.Error, record, doc.UploadedAt, doc.UpdatedAt).
		Query()
	if _, err := r.db.exec(ctx, query, args); err != nil {
		r.logger.Error("failed to create document", "filename", doc.Filename, "error", err)
		return dbError("DOCUMENT_CREATE", err, "create document %s", doc.Filename)
	}
	r.logger.Info("document created", "doc_id", doc.ID, "filename", doc.Filename, "kind", doc.FileKind)
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	return r.getOne(ctx, entsql.EQ("id", id.String()), "id", id.String())
}

func (r *documentRepo) GetByHash(ctx context.Context, hash string) (*entity.Document, error) {
	return r.getOne(ctx, entsql.EQ("content_hash", hash), "content_hash", hash)
}

func (r *documentRepo) getOne(ctx context.Context, where *entsql.Predicate, key, value string) (*entity.Document, error) {
	b := r.db.builder()
	query, args := b.Select(documentColumns...).From(b.Table(documentsTable)).Where(where).Limit(1).Query()

	var doc *entity.Document
	err := r.db.query(ctx, query, args, func(rows *entsql.Rows) error {
		d, err := scanDocument(rows)
		doc = d
		return err
	})
	if err != nil {
		r.logger.Error("failed to get document", key, value, "error", err)
		return nil, dbError("DOCUMENT_GET", err, "get document by %s", key)
	}
	if doc == nil {
		return nil, common.Errorf("DOCUMENT_NOT_FOUND", common.ErrNotFound, "document %s=%s", key, value)
	}
	return doc, nil
}

// ListByStatus returns documents newest first; no statuses lists everything.
func (r *documentRepo) ListByStatus(ctx context.Context, statuses ...constants.DocumentStatus) ([]*entity.Document, error) {
	b := r.db.builder()
	sel := b.Select(documentColumns...).From(b.Table(documentsTable)).OrderBy(entsql.Desc("uploaded_at"))
	if len(statuses) > 0 {
		vals := make([]any, len(statuses))
		for i, s := range statuses {
			vals[i] = string(s)
		}
		sel = sel.Where(entsql.In("status", vals...))
	}
	query, args := sel.Query()

	var out []*entity.Document
	err := r.db.query(ctx, query, args, func(rows *entsql.Rows) error {
		d, err := scanDocument(rows)
		if err == nil {
			out = append(out, d)
		}
		return err
	})
	if err != nil {
		r.logger.Error("failed to list documents", "statuses", statuses, "error", err)
		return nil, dbError("DOCUMENT_LIST", err, "list documents")
	}
	return out, nil
}

func (r *documentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.DocumentStatus, errMsg string) error {
	query, args := r.db.builder().Update(documentsTable).
		Set("status", string(status)).
		Set("error", errMsg).
		Set("updated_at", r.now()).
		Where(entsql.EQ("id", id.String())).
		Query()
	return r.update(ctx, id, query, args, "DOCUMENT_UPDATE_STATUS")
}

// SaveExtractedRecord stores the record with its confidence and model path and moves the
// document to status.
func (r *documentRepo) SaveExtractedRecord(ctx context.Context, id uuid.UUID, record *entity.ExtractedRecord, status constants.DocumentStatus) error {
	raw, err := marshalRecord(record)
	if err != nil {
		return err
	}
	upd := r.db.builder().Update(documentsTable).
		Set("status", string(status)).
		Set("record", raw).
		Set("updated_at", r.now())
	if record != nil {
		upd = upd.Set("confidence", record.Metadata.Confidence).Set("model_path", record.Metadata.Model)
		if status == constants.DocumentError && len(record.Validation.Issues) > 0 {
			upd = upd.Set("error", record.Validation.Issues[0])
		} else {
			upd = upd.Set("error", "")
		}
	}
	query, args := upd.Where(entsql.EQ("id", id.String())).Query()
	if err := r.update(ctx, id, query, args, "DOCUMENT_SAVE_RECORD"); err != nil {
		return err
	}
	r.logger.Info("document record saved", "doc_id", id, "status", status)
	return nil
}

func (r *documentRepo) update(ctx context.Context, id uuid.UUID, query string, args []any, code string) error {
	n, err := r.db.exec(ctx, query, args)
	if err != nil {
		r.logger.Error("failed to update document", "doc_id", id, "error", err)
		return dbError(code, err, "update document %s", id)
	}
	if n == 0 {
		return common.Errorf("DOCUMENT_NOT_FOUND", common.ErrNotFound, "document %s", id)
	}
	return nil
}

func scanDocument(rows *entsql.Rows) (*entity.Document, error) {
	var (
		d          entity.Document
		kind       string
		status     string
		confidence sql.NullFloat64
		record     sql.NullString
		uploaded   nullTime
		updated    nullTime
	)
	if err := rows.Scan(&d.ID, &d.Filename, &d.MIMEType, &kind, &d.BlobPath, &d.ContentHash, &d.FileSize,
		&status, &confidence, &d.ModelPath, &d.Error, &record, &uploaded, &updated); err != nil {
		return nil, err
	}
	d.FileKind = constants.FileKind(kind)
	d.Status = constants.DocumentStatus(status)
	d.Confidence = nullFloat(confidence)
	d.UploadedAt, d.UpdatedAt = uploaded.Time, updated.Time
	if record.Valid && record.String != "" {
		var rec entity.ExtractedRecord
		if err := json.Unmarshal([]byte(record.String), &rec); err != nil {
			return nil, errors.Join(common.ErrDatabase, err)
		}
		d.Record = &rec
	}
	return &d, nil
}

func marshalRecord(rec *entity.ExtractedRecord) (any, error) {
	if rec == nil {
		return nil, nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, common.Errorf("RECORD_ENCODE", common.ErrInternal, "encode record: %v", err)
	}
	return string(b), nil
}
