package pipeline

import (
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/pipeline/chunked"
	"github.com/joseph-ayodele/waste-pipeline/internal/pipeline/disposition"
	"github.com/joseph-ayodele/waste-pipeline/internal/pipeline/reconcile"
	"github.com/joseph-ayodele/waste-pipeline/internal/pipeline/verify"
)

// ReconciliationThreshold is the confidence below which an extraction is escalated.
const ReconciliationThreshold = 0.80

const (
	DefaultBaselineTolerance = 0.10
	DefaultMinExtractionRate = 0.90
	DefaultPreviewPages      = 3
)

// Config holds every threshold and constant consulted during a run.
type Config struct {
	// Extraction
	ChunkSize                 int
	SampleRows                int
	OCRTextLimit              int
	ChunkConcurrency          int
	MappingFallbackConfidence float64
	MaxConfidence             float64

	// PreviewPages is how many leading PDF pages are rendered for the assessor and
	// the reconciler.
	PreviewPages int

	// Bulk mode: merge rows describing the same event before reconciliation.
	AggregateRows bool

	// Reconciliation
	ReconciliationThreshold     float64
	ReconcileSampleLimit        int
	ReconcileFallbackConfidence float64
	ReconcileDefaultConfidence  float64
	ReconcileTraceTail          int

	// Verification
	VerifyBatchSize          int
	VerifyExcerptChars       int
	VerifyFallbackConfidence float64
	VerifyMissingConfidence  float64
	VerifyPassConfidence     float64
	VerifyConcurrency        int
	ErrorPenalty             float64
	ConfidenceFloor          float64

	// Record checks
	BaselineTolerance float64
	MinExtractionRate float64

	// DefaultAutoApproveThreshold applies when settings carry no threshold.
	DefaultAutoApproveThreshold float64
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:                 chunked.DefaultChunkSize,
		SampleRows:                chunked.DefaultSampleRows,
		OCRTextLimit:              chunked.DefaultOCRTextLimit,
		ChunkConcurrency:          1,
		MappingFallbackConfidence: chunked.DefaultMappingFallbackConfidence,
		MaxConfidence:             chunked.DefaultMaxConfidence,
		PreviewPages:              DefaultPreviewPages,

		ReconciliationThreshold:     ReconciliationThreshold,
		ReconcileSampleLimit:        reconcile.DefaultSampleLimit,
		ReconcileFallbackConfidence: reconcile.DefaultFallbackConfidence,
		ReconcileDefaultConfidence:  reconcile.DefaultNewConfidence,
		ReconcileTraceTail:          reconcile.DefaultTraceTail,

		VerifyBatchSize:          verify.DefaultBatchSize,
		VerifyExcerptChars:       verify.DefaultExcerptChars,
		VerifyFallbackConfidence: verify.DefaultFallbackConfidence,
		VerifyMissingConfidence:  verify.DefaultMissingConfidence,
		VerifyPassConfidence:     verify.DefaultPassConfidence,
		VerifyConcurrency:        1,
		ErrorPenalty:             verify.DefaultErrorPenalty,
		ConfidenceFloor:          verify.DefaultConfidenceFloor,

		BaselineTolerance: DefaultBaselineTolerance,
		MinExtractionRate: DefaultMinExtractionRate,

		DefaultAutoApproveThreshold: disposition.DefaultThreshold,
	}
}

// LoadConfigFromEnv overlays PIPELINE_* variables on DefaultConfig.
func LoadConfigFromEnv() Config {
	d := DefaultConfig()
	return Config{
		ChunkSize:                 common.GetEnvAsInt("PIPELINE_CHUNK_SIZE", d.ChunkSize),
		SampleRows:                common.GetEnvAsInt("PIPELINE_SAMPLE_ROWS", d.SampleRows),
		OCRTextLimit:              common.GetEnvAsInt("PIPELINE_OCR_TEXT_LIMIT", d.OCRTextLimit),
		ChunkConcurrency:          common.GetEnvAsInt("PIPELINE_CHUNK_CONCURRENCY", d.ChunkConcurrency),
		MappingFallbackConfidence: common.GetEnvAsFloat("PIPELINE_MAPPING_FALLBACK_CONFIDENCE", d.MappingFallbackConfidence),
		MaxConfidence:             common.GetEnvAsFloat("PIPELINE_MAX_CONFIDENCE", d.MaxConfidence),
		PreviewPages:              common.GetEnvAsInt("PIPELINE_PREVIEW_PAGES", d.PreviewPages),

		AggregateRows: common.GetEnvAsBool("PIPELINE_AGGREGATE_ROWS", d.AggregateRows),

		ReconciliationThreshold:     common.GetEnvAsFloat("PIPELINE_RECONCILIATION_THRESHOLD", d.ReconciliationThreshold),
		ReconcileSampleLimit:        common.GetEnvAsInt("PIPELINE_RECONCILE_SAMPLE_LIMIT", d.ReconcileSampleLimit),
		ReconcileFallbackConfidence: common.GetEnvAsFloat("PIPELINE_RECONCILE_FALLBACK_CONFIDENCE", d.ReconcileFallbackConfidence),
		ReconcileDefaultConfidence:  common.GetEnvAsFloat("PIPELINE_RECONCILE_DEFAULT_CONFIDENCE", d.ReconcileDefaultConfidence),
		ReconcileTraceTail:          common.GetEnvAsInt("PIPELINE_RECONCILE_TRACE_TAIL", d.ReconcileTraceTail),

		VerifyBatchSize:          common.GetEnvAsInt("PIPELINE_VERIFY_BATCH_SIZE", d.VerifyBatchSize),
		VerifyExcerptChars:       common.GetEnvAsInt("PIPELINE_VERIFY_EXCERPT_CHARS", d.VerifyExcerptChars),
		VerifyFallbackConfidence: common.GetEnvAsFloat("PIPELINE_VERIFY_FALLBACK_CONFIDENCE", d.VerifyFallbackConfidence),
		VerifyMissingConfidence:  common.GetEnvAsFloat("PIPELINE_VERIFY_MISSING_CONFIDENCE", d.VerifyMissingConfidence),
		VerifyPassConfidence:     common.GetEnvAsFloat("PIPELINE_VERIFY_PASS_CONFIDENCE", d.VerifyPassConfidence),
		VerifyConcurrency:        common.GetEnvAsInt("PIPELINE_VERIFY_CONCURRENCY", d.VerifyConcurrency),
		ErrorPenalty:             common.GetEnvAsFloat("PIPELINE_ERROR_PENALTY", d.ErrorPenalty),
		ConfidenceFloor:          common.GetEnvAsFloat("PIPELINE_CONFIDENCE_FLOOR", d.ConfidenceFloor),

		BaselineTolerance: common.GetEnvAsFloat("PIPELINE_BASELINE_TOLERANCE", d.BaselineTolerance),
		MinExtractionRate: common.GetEnvAsFloat("PIPELINE_MIN_EXTRACTION_RATE", d.MinExtractionRate),

		DefaultAutoApproveThreshold: common.GetEnvAsFloat("PIPELINE_AUTO_APPROVE_THRESHOLD", d.DefaultAutoApproveThreshold),
	}
}

// Validate checks ranges; it returns an AppError with code CONFIG_ERROR.
func (c Config) Validate() error {
	unit := common.Between(0, 1)
	return common.NewValidator().
		Field("PIPELINE_CHUNK_SIZE", c.ChunkSize, common.Positive).
		Field("PIPELINE_SAMPLE_ROWS", c.SampleRows, common.Between(2, 10000)).
		Field("PIPELINE_OCR_TEXT_LIMIT", c.OCRTextLimit, common.Positive).
		Field("PIPELINE_CHUNK_CONCURRENCY", c.ChunkConcurrency, common.Positive).
		Field("PIPELINE_MAPPING_FALLBACK_CONFIDENCE", c.MappingFallbackConfidence, unit).
		Field("PIPELINE_MAX_CONFIDENCE", c.MaxConfidence, unit).
		Field("PIPELINE_PREVIEW_PAGES", c.PreviewPages, common.Between(1, 20)).
		Field("PIPELINE_RECONCILIATION_THRESHOLD", c.ReconciliationThreshold, unit).
		Field("PIPELINE_RECONCILE_SAMPLE_LIMIT", c.ReconcileSampleLimit, common.Positive).
		Field("PIPELINE_RECONCILE_FALLBACK_CONFIDENCE", c.ReconcileFallbackConfidence, unit).
		Field("PIPELINE_RECONCILE_DEFAULT_CONFIDENCE", c.ReconcileDefaultConfidence, unit).
		Field("PIPELINE_RECONCILE_TRACE_TAIL", c.ReconcileTraceTail, common.Positive).
		Field("PIPELINE_VERIFY_BATCH_SIZE", c.VerifyBatchSize, common.Positive).
		Field("PIPELINE_VERIFY_EXCERPT_CHARS", c.VerifyExcerptChars, common.Positive).
		Field("PIPELINE_VERIFY_FALLBACK_CONFIDENCE", c.VerifyFallbackConfidence, unit).
		Field("PIPELINE_VERIFY_MISSING_CONFIDENCE", c.VerifyMissingConfidence, unit).
		Field("PIPELINE_VERIFY_PASS_CONFIDENCE", c.VerifyPassConfidence, unit).
		Field("PIPELINE_VERIFY_CONCURRENCY", c.VerifyConcurrency, common.Positive).
		Field("PIPELINE_ERROR_PENALTY", c.ErrorPenalty, unit).
		Field("PIPELINE_CONFIDENCE_FLOOR", c.ConfidenceFloor, unit).
		Field("PIPELINE_BASELINE_TOLERANCE", c.BaselineTolerance, unit).
		Field("PIPELINE_MIN_EXTRACTION_RATE", c.MinExtractionRate, unit).
		Field("PIPELINE_AUTO_APPROVE_THRESHOLD", c.DefaultAutoApproveThreshold, common.Between(1, 100)).
		Err("CONFIG_ERROR")
}

func (c Config) chunkedConfig() chunked.Config {
	return chunked.Config{
		ChunkSize:                 c.ChunkSize,
		SampleRows:                c.SampleRows,
		OCRTextLimit:              c.OCRTextLimit,
		Concurrency:               c.ChunkConcurrency,
		MappingFallbackConfidence: c.MappingFallbackConfidence,
		MaxConfidence:             c.MaxConfidence,
	}
}

func (c Config) reconcileConfig() reconcile.Config {
	return reconcile.Config{
		SampleLimit:        c.ReconcileSampleLimit,
		FallbackConfidence: c.ReconcileFallbackConfidence,
		DefaultConfidence:  c.ReconcileDefaultConfidence,
		TraceTail:          c.ReconcileTraceTail,
	}
}

func (c Config) verifyConfig() verify.Config {
	return verify.Config{
		BatchSize:          c.VerifyBatchSize,
		ExcerptChars:       c.VerifyExcerptChars,
		FallbackConfidence: c.VerifyFallbackConfidence,
		MissingConfidence:  c.VerifyMissingConfidence,
		PassConfidence:     c.VerifyPassConfidence,
		Concurrency:        c.VerifyConcurrency,
		ErrorPenalty:       c.ErrorPenalty,
		ConfidenceFloor:    c.ConfidenceFloor,
	}
}
