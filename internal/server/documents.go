package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/async"
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
)

// UploadResponse answers POST /api/documents.
type UploadResponse struct {
	Document     *entity.Document `json:"document"`
	Deduplicated bool             `json:"deduplicated"`
	Queued       bool             `json:"queued"`
}

// uploadDocument accepts a multipart "file". With ?process=true the document is queued.
func (s *Server) uploadDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		s.fail(c, common.Errorf("UPLOAD_ERROR", common.ErrInvalidInput, "file missing: %v", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.fail(c, common.Errorf("UPLOAD_ERROR", common.ErrInvalidInput, "read upload: %v", err))
		return
	}

	ctx := c.Request.Context()
	res, err := s.deps.Ingestor.IngestBytes(ctx, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		s.fail(c, err)
		return
	}

	queued := false
	if c.Query("process") == "true" && !res.Deduplicated {
		if err := s.enqueue(c, res.DocumentID, false); err != nil {
			s.fail(c, err)
			return
		}
		queued = true
	}

	doc, err := s.deps.Documents.Get(ctx, res.DocumentID)
	if err != nil {
		s.fail(c, err)
		return
	}
	status := http.StatusCreated
	if res.Deduplicated {
		status = http.StatusOK
	}
	c.JSON(status, UploadResponse{Document: doc, Deduplicated: res.Deduplicated, Queued: queued})
}

func (s *Server) listDocuments(c *gin.Context) {
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		s.fail(c, err)
		return
	}
	docs, err := s.deps.Documents.List(c.Request.Context(), statuses...)
	if err != nil {
		s.fail(c, err)
		return
	}
	if docs == nil {
		docs = []*entity.Document{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

func (s *Server) getDocument(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	doc, err := s.deps.Documents.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// processDocument queues a run when a queue is configured and ?sync=true is absent;
// otherwise it runs inline and returns the stored document. ?retry=true re-runs a
// finished document.
func (s *Server) processDocument(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	retry := c.Query("retry") == "true"

	if s.deps.Queue != nil && c.Query("sync") != "true" {
		if _, err := s.deps.Documents.Get(ctx, id); err != nil {
			s.fail(c, err)
			return
		}
		if err := s.enqueue(c, id, retry); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"id": id, "status": constants.DocumentQueued})
		return
	}

	var doc *entity.Document
	if retry {
		doc, err = s.deps.Documents.Retry(ctx, id)
	} else {
		doc, err = s.deps.Documents.Process(ctx, id)
	}
	if err != nil && doc == nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) enqueue(c *gin.Context, id uuid.UUID, retry bool) error {
	ctx := c.Request.Context()
	if s.deps.Queue == nil {
		return common.Errorf("QUEUE_DISABLED", common.ErrInvalidInput, "background processing is not enabled")
	}
	var prev *entity.Document
	if !retry {
		doc, err := s.deps.Documents.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.deps.Documents.MarkQueued(ctx, id); err != nil {
			return err
		}
		prev = doc
	}
	err := s.deps.Queue.Enqueue(ctx, async.Job{
		DocumentID:  id,
		Retry:       retry,
		SubmittedAt: time.Now(),
		TraceID:     common.RequestIDFromContext(ctx),
	})
	if err != nil && prev != nil {
		if rerr := s.deps.Documents.RestoreStatus(ctx, id, prev.Status, prev.Error); rerr != nil {
			s.logger.Error("documents.enqueue.restore_failed", "doc_id", id, "error", rerr)
		}
	}
	return err
}

func parseID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		return uuid.Nil, common.Errorf("INVALID_ID", common.ErrInvalidInput, "id must be a UUID")
	}
	return id, nil
}

var knownStatuses = map[constants.DocumentStatus]struct{}{
	constants.DocumentUploaded:    {},
	constants.DocumentQueued:      {},
	constants.DocumentProcessing:  {},
	constants.DocumentApproved:    {},
	constants.DocumentNeedsReview: {},
	constants.DocumentError:       {},
}

// parseStatuses splits a comma separated status filter.
func parseStatuses(raw string) ([]constants.DocumentStatus, error) {
	var out []constants.DocumentStatus
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		st := constants.DocumentStatus(part)
		if _, ok := knownStatuses[st]; !ok {
			return nil, common.Errorf("INVALID_STATUS", common.ErrInvalidInput, "unknown status %q", part)
		}
		out = append(out, st)
	}
	return out, nil
}
