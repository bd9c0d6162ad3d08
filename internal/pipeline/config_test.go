package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/waste-pipeline/internal/common"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.80, cfg.ReconciliationThreshold)
	assert.Equal(t, 25, cfg.ChunkSize)
	assert.Equal(t, 25, cfg.VerifyBatchSize)
	assert.Equal(t, 0.70, cfg.ReconcileFallbackConfidence)
	assert.Equal(t, 0.80, cfg.VerifyFallbackConfidence)
	assert.Equal(t, 80.0, cfg.DefaultAutoApproveThreshold)
	assert.Equal(t, 3, cfg.PreviewPages)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PIPELINE_CHUNK_SIZE", "40")
	t.Setenv("PIPELINE_RECONCILIATION_THRESHOLD", "0.75")
	t.Setenv("PIPELINE_AGGREGATE_ROWS", "true")
	t.Setenv("PIPELINE_VERIFY_BATCH_SIZE", "nope")
	t.Setenv("PIPELINE_PREVIEW_PAGES", "5")

	cfg := LoadConfigFromEnv()
	assert.Equal(t, 40, cfg.ChunkSize)
	assert.Equal(t, 0.75, cfg.ReconciliationThreshold)
	assert.True(t, cfg.AggregateRows)
	assert.Equal(t, 25, cfg.VerifyBatchSize)
	assert.Equal(t, 5, cfg.PreviewPages)
}

func TestConfigValidateRejectsOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReconciliationThreshold = 1.5
	cfg.ChunkSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Contains(t, err.Error(), "PIPELINE_RECONCILIATION_THRESHOLD")
	assert.Contains(t, err.Error(), "PIPELINE_CHUNK_SIZE")
}
