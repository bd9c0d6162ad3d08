// Package server exposes documents, exports and settings over a gin HTTP API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/async"
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/ingest"
	"github.com/joseph-ayodele/waste-pipeline/internal/metrics"
	"github.com/joseph-ayodele/waste-pipeline/internal/repository"
)

// MaxUploadBytes bounds multipart request bodies.
const MaxUploadBytes = 64 << 20

// DocumentService is the document side of the API.
type DocumentService interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	List(ctx context.Context, statuses ...constants.DocumentStatus) ([]*entity.Document, error)
	Process(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	Retry(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	MarkQueued(ctx context.Context, id uuid.UUID) error
	RestoreStatus(ctx context.Context, id uuid.UUID, status constants.DocumentStatus, errMsg string) error
}

// Exporter renders stored documents as XLSX.
type Exporter interface {
	ExportXLSX(ctx context.Context, statuses ...constants.DocumentStatus) ([]byte, error)
}

// HealthChecker reports store reachability.
type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Deps are the collaborators behind the routes. Queue may be nil, in which case
// processing runs inline.
type Deps struct {
	Documents DocumentService
	Ingestor  ingest.Ingestor
	Queue     async.Queue
	Exporter  Exporter
	Settings  repository.SettingsRepository
	Health    HealthChecker
}

type Server struct {
	deps   Deps
	logger *slog.Logger
}

func New(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{deps: deps, logger: logger}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.MaxMultipartMemory = 32 << 20

	r.GET("/health", s.health)
	r.GET("/metrics", func(c *gin.Context) {
		metrics.UpdateSystemMetrics()
		promhttp.Handler().ServeHTTP(c.Writer, c.Request)
	})

	api := r.Group("/api")
	{
		docs := api.Group("/documents")
		{
			docs.POST("", s.uploadDocument)
			docs.GET("", s.listDocuments)
			docs.GET("/:id", s.getDocument)
			docs.POST("/:id/process", s.processDocument)
		}
		api.GET("/export.xlsx", s.exportXLSX)

		settings := api.Group("/settings")
		{
			settings.GET("", s.getSettings)
			settings.POST("/threshold", s.setThreshold)
			settings.POST("/synonyms", s.editSynonyms)
		}
	}
	return r
}

// requestLogger tags each request with a request id and logs its outcome.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), rid))
		c.Header("X-Request-ID", rid)

		c.Next()

		s.logger.Info("http.request", "req_id", rid, "method", c.Request.Method, "path", c.FullPath(),
			"status", c.Writer.Status(), "elapsed_ms", time.Since(start).Milliseconds())
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (s *Server) fail(c *gin.Context, err error) {
	code := common.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("http.request.failed", "req_id", common.RequestIDFromContext(c.Request.Context()),
			"path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(code, ErrorResponse{Error: http.StatusText(code), Message: err.Error(), Code: code})
}

func (s *Server) health(c *gin.Context) {
	if s.deps.Health != nil {
		if err := s.deps.Health.HealthCheck(c.Request.Context(), 2*time.Second); err != nil {
			s.logger.Warn("health.database.failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "waste-pipeline"})
}
