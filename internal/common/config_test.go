package common

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("QUEUE_WORKERS", "")

	cfg := LoadConfig()
	assert.Equal(t, "./data/waste.db", cfg.Database.DSN)
	assert.Equal(t, 2, cfg.Queue.Workers)
	assert.Equal(t, "swe+eng", cfg.OCR.Language)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_URL", "postgres://u:p@localhost:5432/waste")
	t.Setenv("QUEUE_WORKERS", "8")
	t.Setenv("OPENAI_TIMEOUT", "5s")
	t.Setenv("OCR_DPI", "not-a-number")

	cfg := LoadConfig()
	assert.True(t, cfg.Database.IsPostgresDSN())
	assert.Equal(t, 8, cfg.Queue.Workers)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 300, cfg.OCR.DPI, "unparsable values fall back to the default")
}

func TestConfigValidate(t *testing.T) {
	cfg := LoadConfig()
	cfg.Queue.Workers = 0
	cfg.LLM.Temperature = 3

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
	assert.Contains(t, appErr.Message, "QUEUE_WORKERS")
	assert.Contains(t, appErr.Message, "OPENAI_TEMPERATURE")
}

func TestRequireLLM(t *testing.T) {
	cfg := LoadConfig()
	cfg.LLM.APIKey = ""
	assert.Error(t, cfg.RequireLLM())

	cfg.LLM.APIKey = "sk-test"
	assert.NoError(t, cfg.RequireLLM())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", Errorf("DOCUMENT_NOT_FOUND", ErrNotFound, "document %s", "d1"), http.StatusNotFound},
		{"invalid", Errorf("INGEST_ERROR", ErrInvalidInput, "empty"), http.StatusBadRequest},
		{"validation", NewAppError("CONFIG_ERROR", "threshold", ErrValidation), http.StatusBadRequest},
		{"undecodable", NewAppError("DECODE", "xlsx", ErrIrrecoverableInput), http.StatusUnprocessableEntity},
		{"capability", fmt.Errorf("ocr: %w", ErrCapabilityUnavailable), http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("WASTE_DOTENV_NEW=from-file\nWASTE_DOTENV_SET=from-file\n"), 0o600))
	t.Setenv("WASTE_DOTENV_SET", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("WASTE_DOTENV_NEW") })

	LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env"))
	assert.Equal(t, "from-file", os.Getenv("WASTE_DOTENV_NEW"))
	assert.Equal(t, "from-env", os.Getenv("WASTE_DOTENV_SET"))
}
