package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/async"
	"github.com/joseph-ayodele/waste-pipeline/internal/blob"
	"github.com/joseph-ayodele/waste-pipeline/internal/documents"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/export"
	"github.com/joseph-ayodele/waste-pipeline/internal/ingest"
	"github.com/joseph-ayodele/waste-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/waste-pipeline/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPipeline struct{}

func (stubPipeline) Process(_ context.Context, in pipeline.Input, _ entity.Settings) pipeline.Result {
	rec := &entity.ExtractedRecord{
		Date:     entity.Field("2024-01-31", 0.9),
		Supplier: entity.Field("Renova", 0.8),
		LineItems: []entity.LineItem{{
			Date:     entity.Field("2024-01-02", 0.9),
			Material: entity.Field("Trä", 0.9),
			WeightKg: entity.Field(10.5, 0.9),
			Address:  entity.Field("Storgatan 1", 0.9),
		}},
	}
	rec.SetConfidence(0.9)
	return pipeline.Result{Record: rec, Status: constants.DispositionApproved, Confidence: 0.9}
}

type captureQueue struct {
	jobs []async.Job
	err  error
}

func (q *captureQueue) Enqueue(_ context.Context, job async.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *captureQueue) Shutdown(context.Context) {}

type fixture struct {
	router http.Handler
	queue  *captureQueue
}

func newFixture(t *testing.T, withQueue bool) *fixture {
	t.Helper()
	db, err := repository.Open(context.Background(), repository.Config{DSN: filepath.Join(t.TempDir(), "waste.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	docs := repository.NewDocumentRepository(db, nil)
	settings := repository.NewSettingsRepository(db, nil)
	store := blob.NewAFSStore("file://"+t.TempDir(), nil)
	deps := Deps{
		Documents: documents.NewService(docs, repository.NewExtractJobRepository(db, nil), settings, store, stubPipeline{}, nil),
		Ingestor:  ingest.NewService(docs, store, nil),
		Exporter:  export.NewService(docs, nil),
		Settings:  settings,
		Health:    db,
	}
	f := &fixture{}
	if withQueue {
		f.queue = &captureQueue{}
		deps.Queue = f.queue
	}
	f.router = New(deps, nil).Router()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) upload(t *testing.T, path, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return f.do(t, http.MethodPost, path, buf.Bytes(), mw.FormDataContentType())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = f.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "waste_system_goroutines")
}

func TestUploadProcessAndExport(t *testing.T) {
	f := newFixture(t, false)

	w := f.upload(t, "/api/documents", "Renova_2024-01.csv", "Datum;Vikt\n2024-01-02;10,5\n")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	up := decode[UploadResponse](t, w)
	require.NotNil(t, up.Document)
	assert.Equal(t, constants.DocumentUploaded, up.Document.Status)

	w = f.upload(t, "/api/documents", "again.csv", "Datum;Vikt\n2024-01-02;10,5\n")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[UploadResponse](t, w).Deduplicated)

	w = f.do(t, http.MethodPost, "/api/documents/"+up.Document.ID.String()+"/process", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	doc := decode[entity.Document](t, w)
	assert.Equal(t, constants.DocumentApproved, doc.Status)
	require.NotNil(t, doc.Record)
	assert.Len(t, doc.Record.LineItems, 1)

	w = f.do(t, http.MethodGet, "/api/documents?status=approved", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])

	w = f.do(t, http.MethodGet, "/api/export.xlsx", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "PK"))
}

func TestProcessQueued(t *testing.T) {
	f := newFixture(t, true)

	w := f.upload(t, "/api/documents?process=true", "scan.pdf", "%PDF-1.4")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	up := decode[UploadResponse](t, w)
	assert.True(t, up.Queued)
	assert.Equal(t, constants.DocumentQueued, up.Document.Status)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, up.Document.ID, f.queue.jobs[0].DocumentID)
	assert.NotEmpty(t, f.queue.jobs[0].TraceID)

	w = f.do(t, http.MethodPost, "/api/documents/"+up.Document.ID.String()+"/process?retry=true", nil, "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, f.queue.jobs, 2)
	assert.True(t, f.queue.jobs[1].Retry)
}

func TestEnqueueFailureKeepsDocumentUploaded(t *testing.T) {
	f := newFixture(t, true)
	w := f.upload(t, "/api/documents", "scan.pdf", "%PDF-1.4")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[UploadResponse](t, w).Document.ID.String()

	f.queue.err = errors.New("queue is full")
	tests := []struct {
		name string
		do   func() *httptest.ResponseRecorder
	}{
		{"upload and process", func() *httptest.ResponseRecorder {
			return f.upload(t, "/api/documents?process=true", "other.pdf", "%PDF-1.5")
		}},
		{"process", func() *httptest.ResponseRecorder {
			return f.do(t, http.MethodPost, "/api/documents/"+id+"/process", nil, "")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.do()
			assert.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())
		})
	}

	w = f.do(t, http.MethodGet, "/api/documents?status=queued", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[struct {
		Count int `json:"count"`
	}](t, w).Count)

	w = f.do(t, http.MethodGet, "/api/documents/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, constants.DocumentUploaded, decode[entity.Document](t, w).Status)
	assert.Empty(t, f.queue.jobs)
}

func TestDocumentErrors(t *testing.T) {
	f := newFixture(t, false)
	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"bad id", http.MethodGet, "/api/documents/not-a-uuid", http.StatusBadRequest},
		{"missing", http.MethodGet, "/api/documents/" + uuid.NewString(), http.StatusNotFound},
		{"process missing", http.MethodPost, "/api/documents/" + uuid.NewString() + "/process", http.StatusNotFound},
		{"bad status", http.MethodGet, "/api/documents?status=done", http.StatusBadRequest},
		{"no file", http.MethodPost, "/api/documents", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, nil, "")
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.want, decode[ErrorResponse](t, w).Code)
		})
	}

	w := f.upload(t, "/api/documents", "notes.docx", "x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettingsRoutes(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodGet, "/api/settings", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 80.0, decode[entity.Settings](t, w).AutoApproveThreshold)

	w = f.do(t, http.MethodPost, "/api/settings/threshold", []byte(`{"threshold":90}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 90.0, decode[entity.Settings](t, w).AutoApproveThreshold)

	w = f.do(t, http.MethodPost, "/api/settings/threshold", []byte(`{"threshold":40}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/settings/synonyms", []byte(`{"action":"add","category":"Trä","synonym":"spont"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decode[entity.Settings](t, w).MaterialSynonyms["Trä"], "spont")

	w = f.do(t, http.MethodPost, "/api/settings/synonyms", []byte(`{"action":"rename","category":"Trä"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
