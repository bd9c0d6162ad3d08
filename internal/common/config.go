package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Blob     BlobConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Queue    QueueConfig
	Log      LogConfig

	// SettingsFile optionally points at a YAML file with synonyms and thresholds.
	SettingsFile string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string // sqlite file path or postgres:// URL
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
	GRPCAddr string
}

// BlobConfig holds the storage location for original documents.
type BlobConfig struct {
	BaseURL string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract        string
	Pdftoppm         string
	HeicConverter    string
	Language         string
	DPI              int
	PreviewDPI       int
	MaxPages         int
	TessdataDir      string
	ArtifactCacheDir string
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	APIKey           string
	BaseURL          string
	AssessModel      string
	ExtractModel     string
	ReconcileModel   string
	VerifyModel      string
	Temperature      float32
	Timeout          time.Duration
	PromptTokenLimit int
}

// QueueConfig tunes the background worker pool.
type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

// LogConfig selects handler and level for slog.
type LogConfig struct {
	Format string // "json" | "text"
	Level  string // "debug" | "info" | "warn" | "error"
}

// LoadDotEnv reads KEY=VALUE pairs from the given files (default .env) into the
// environment without overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              GetEnv("DB_URL", "./data/waste.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  GetEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  GetEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      GetEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: GetEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr: GetEnv("HTTP_ADDR", ":8080"),
			GRPCAddr: GetEnv("GRPC_ADDR", ":9090"),
		},
		Blob: BlobConfig{
			BaseURL: GetEnv("BLOB_BASE_URL", "file://./data/blobs"),
		},
		OCR: OCRConfig{
			Tesseract:        GetEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:         GetEnv("PDFTOPPM_BIN", "pdftoppm"),
			HeicConverter:    GetEnv("HEIC_CONVERTER", "magick"),
			Language:         GetEnv("OCR_LANG", "swe+eng"),
			DPI:              GetEnvAsInt("OCR_DPI", 300),
			PreviewDPI:       GetEnvAsInt("OCR_PREVIEW_DPI", 150),
			MaxPages:         GetEnvAsInt("OCR_MAX_PAGES", 0),
			TessdataDir:      GetEnv("TESSDATA_PREFIX", ""),
			ArtifactCacheDir: GetEnv("ARTIFACT_CACHE_DIR", "./tmp"),
		},
		LLM: LLMConfig{
			APIKey:           GetEnv("OPENAI_API_KEY", ""),
			BaseURL:          GetEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			AssessModel:      GetEnv("LLM_ASSESS_MODEL", "gpt-4o-mini"),
			ExtractModel:     GetEnv("LLM_EXTRACT_MODEL", "gpt-4o-mini"),
			ReconcileModel:   GetEnv("LLM_RECONCILE_MODEL", "gpt-4o"),
			VerifyModel:      GetEnv("LLM_VERIFY_MODEL", "gpt-4o-mini"),
			Temperature:      getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:          GetEnvAsDuration("OPENAI_TIMEOUT", 90*time.Second),
			PromptTokenLimit: GetEnvAsInt("LLM_PROMPT_TOKEN_LIMIT", 0),
		},
		Queue: QueueConfig{
			Workers:        GetEnvAsInt("QUEUE_WORKERS", 2),
			Size:           GetEnvAsInt("QUEUE_SIZE", 128),
			ProcessTimeout: GetEnvAsDuration("QUEUE_PROCESS_TIMEOUT", 10*time.Minute),
		},
		Log: LogConfig{
			Format: GetEnv("LOG_FORMAT", "json"),
			Level:  GetEnv("LOG_LEVEL", "info"),
		},
		SettingsFile: GetEnv("SETTINGS_FILE", ""),
	}
}

// GetEnv returns the variable's value or defaultValue when unset or empty.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// IsPostgresDSN reports whether the DSN targets Postgres rather than a sqlite file.
func (d DatabaseConfig) IsPostgresDSN() bool {
	dsn := strings.ToLower(d.DSN)
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("DB_URL", c.Database.DSN, Required).
		Field("BLOB_BASE_URL", c.Blob.BaseURL, Required).
		Field("HTTP_ADDR", c.Server.HTTPAddr, Required).
		Field("QUEUE_WORKERS", c.Queue.Workers, Positive).
		Field("QUEUE_SIZE", c.Queue.Size, Positive).
		Field("OPENAI_TEMPERATURE", float64(c.LLM.Temperature), Between(0, 2))
	return v.Err("CONFIG_ERROR")
}

// RequireLLM validates the settings needed to call the capability provider.
func (c *Config) RequireLLM() error {
	return NewValidator().
		Field("OPENAI_API_KEY", c.LLM.APIKey, Required).
		Field("OPENAI_BASE_URL", c.LLM.BaseURL, Required).
		Err("CONFIG_ERROR")
}
