package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/blob"
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/repository"
)

// MaxFileSize bounds a single upload.
const MaxFileSize = 50 << 20

// Service hashes, uploads and registers documents. Identical content is stored once.
type Service struct {
	docs   repository.DocumentRepository
	blobs  blob.Store
	logger *slog.Logger
	now    func() time.Time
}

var _ Ingestor = (*Service)(nil)

func NewService(docs repository.DocumentRepository, blobs blob.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, blobs: blobs, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) IngestBytes(ctx context.Context, filename, mime string, data []byte) (IngestionResult, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	ext := constants.NormalizeExt(filepath.Ext(filename))
	out := IngestionResult{SourcePath: filename, FileExt: ext}

	if filename == "" || filename == "." {
		return out, common.Errorf("INGEST_ERROR", common.ErrInvalidInput, "filename is required")
	}
	if len(data) == 0 {
		return out, common.Errorf("INGEST_ERROR", common.ErrInvalidInput, "%s is empty", filename)
	}
	if len(data) > MaxFileSize {
		return out, common.Errorf("INGEST_ERROR", common.ErrInvalidInput, "%s exceeds %d bytes", filename, MaxFileSize)
	}
	kind := constants.KindFromFilename(filename, mime)
	if kind == constants.KindOther {
		return out, common.Errorf("INGEST_ERROR", common.ErrInvalidInput, "unsupported file type %q", filename)
	}
	if strings.TrimSpace(mime) == "" {
		mime = constants.MIMEForExt(ext)
	}

	sum := sha256.Sum256(data)
	out.HashHex = hex.EncodeToString(sum[:])

	existing, err := s.docs.GetByHash(ctx, out.HashHex)
	switch {
	case err == nil:
		out.DocumentID = existing.ID
		out.Deduplicated = true
		out.BlobURL = existing.BlobPath
		out.UploadedAt = existing.UploadedAt
		s.logger.Info("ingest.dedup", "doc_id", existing.ID, "filename", filename, "hash", out.HashHex)
		return out, nil
	case !errors.Is(err, common.ErrNotFound):
		return out, err
	}

	id := uuid.New()
	now := s.now()
	key := fmt.Sprintf("%s/%s%s", now.Format("2006/01"), id, filepath.Ext(filename))
	url, err := s.blobs.Upload(ctx, key, data)
	if err != nil {
		return out, err
	}

	doc := &entity.Document{
		ID:          id,
		Filename:    filename,
		MIMEType:    mime,
		FileKind:    kind,
		BlobPath:    url,
		ContentHash: out.HashHex,
		FileSize:    int64(len(data)),
		Status:      constants.DocumentUploaded,
		UploadedAt:  now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return out, err
	}
	out.DocumentID = id
	out.BlobURL = url
	out.UploadedAt = now
	s.logger.Info("ingest.ok", "doc_id", id, "filename", filename, "kind", kind, "bytes", len(data))
	return out, nil
}

func (s *Service) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return IngestionResult{SourcePath: path}, common.Errorf("INGEST_ERROR", common.ErrInvalidInput, "abs path %s: %v", path, err)
	}
	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		return IngestionResult{SourcePath: abs}, common.Errorf("INGEST_ERROR", common.ErrInvalidInput, "unsupported or missing extension %q", ext)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		s.logger.Error("ingest.read.failed", "path", abs, "error", err)
		return IngestionResult{SourcePath: abs}, common.Errorf("INGEST_ERROR", common.ErrInvalidInput, "read %s: %v", abs, err)
	}
	res, err := s.IngestBytes(ctx, filepath.Base(abs), constants.MIMEForExt(ext), data)
	res.SourcePath = abs
	return res, err
}
