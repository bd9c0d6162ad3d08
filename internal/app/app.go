// Package app wires configuration, storage, capabilities and services for the binaries.
package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/waste-pipeline/internal/blob"
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/documents"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/export"
	"github.com/joseph-ayodele/waste-pipeline/internal/ingest"
	"github.com/joseph-ayodele/waste-pipeline/internal/llm/openai"
	"github.com/joseph-ayodele/waste-pipeline/internal/ocr"
	"github.com/joseph-ayodele/waste-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/waste-pipeline/internal/repository"
)

// NewLogger builds the process logger from LOG_FORMAT and LOG_LEVEL.
func NewLogger(c common.LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// NewProcessor builds the pipeline over the configured OCR tools and, when an API key is
// present, the OpenAI-compatible capabilities.
func NewProcessor(cfg *common.Config, pcfg pipeline.Config, logger *slog.Logger) *pipeline.Processor {
	extractor := ocr.NewExtractor(ocr.ConfigFrom(cfg.OCR), logger)
	caps := pipeline.Capabilities{OCR: extractor, Preview: extractor}
	if cfg.LLM.APIKey != "" {
		client := openai.NewClient(openai.ConfigFrom(cfg.LLM), logger)
		caps.Assessor = client
		caps.Extractor = client
		caps.Reconciler = client
		caps.Verifier = client
	} else {
		logger.Warn("app.llm.disabled", "reason", "OPENAI_API_KEY not set")
	}
	return pipeline.NewProcessor(pcfg, caps, logger)
}

// App holds the long-lived collaborators shared by the binaries.
type App struct {
	Config    *common.Config
	DB        *repository.DB
	Docs      repository.DocumentRepository
	Jobs      repository.ExtractJobRepository
	Settings  repository.SettingsRepository
	Blobs     blob.Store
	Processor *pipeline.Processor
	Documents *documents.Service
	Ingest    *ingest.Service
	Export    *export.Service
	Logger    *slog.Logger
}

// Open validates cfg, connects the store, seeds settings from SETTINGS_FILE and builds
// the services.
func Open(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pcfg := pipeline.LoadConfigFromEnv()
	if err := pcfg.Validate(); err != nil {
		return nil, err
	}

	db, err := repository.Open(ctx, repository.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config:   cfg,
		DB:       db,
		Docs:     repository.NewDocumentRepository(db, logger),
		Jobs:     repository.NewExtractJobRepository(db, logger),
		Settings: repository.NewSettingsRepository(db, logger),
		Blobs:    blob.NewAFSStore(cfg.Blob.BaseURL, logger),
		Logger:   logger,
	}
	if err := a.seedSettings(ctx, cfg.SettingsFile); err != nil {
		db.Close()
		return nil, err
	}

	a.Processor = NewProcessor(cfg, pcfg, logger)
	a.Documents = documents.NewService(a.Docs, a.Jobs, a.Settings, a.Blobs, a.Processor, logger)
	a.Ingest = ingest.NewService(a.Docs, a.Blobs, logger)
	a.Export = export.NewService(a.Docs, logger)
	return a, nil
}

// LoadSettingsFile parses a YAML settings file.
func LoadSettingsFile(path string) (entity.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.Settings{}, common.Errorf("CONFIG_ERROR", common.ErrInvalidInput, "read settings file %s: %v", path, err)
	}
	s, err := entity.ParseSettingsYAML(data)
	if err != nil {
		return entity.Settings{}, common.Errorf("CONFIG_ERROR", common.ErrInvalidInput, "parse settings file %s: %v", path, err)
	}
	if !entity.ValidThreshold(s.AutoApproveThreshold) {
		return entity.Settings{}, common.Errorf("CONFIG_ERROR", common.ErrValidation,
			"settings file %s: auto_approve_threshold %.0f outside %d..%d", path, s.AutoApproveThreshold,
			entity.MinAutoApproveThreshold, entity.MaxAutoApproveThreshold)
	}
	return s, nil
}

func (a *App) seedSettings(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	s, err := LoadSettingsFile(path)
	if err != nil {
		return err
	}
	if err := a.Settings.Save(ctx, s); err != nil {
		return err
	}
	a.Logger.Info("app.settings.seeded", "file", path, "threshold", s.AutoApproveThreshold, "categories", len(s.MaterialSynonyms))
	return nil
}

func (a *App) Close() {
	a.DB.Close()
}
