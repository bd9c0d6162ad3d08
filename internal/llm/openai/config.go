package openai

import (
	"log/slog"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/llm"
)

// Config for the OpenAI-compatible capability client.
type Config struct {
	APIKey         string
	BaseURL        string // default https://api.openai.com/v1
	AssessModel    string
	ExtractModel   string
	ReconcileModel string // the stronger model used for escalation
	VerifyModel    string
	Temperature    float32
	Timeout        time.Duration
	TokenLimit     int // 0 disables prompt trimming
}

// ConfigFrom maps the application LLM settings onto a client Config.
func ConfigFrom(c common.LLMConfig) Config {
	return Config{
		APIKey:         c.APIKey,
		BaseURL:        c.BaseURL,
		AssessModel:    c.AssessModel,
		ExtractModel:   c.ExtractModel,
		ReconcileModel: c.ReconcileModel,
		VerifyModel:    c.VerifyModel,
		Temperature:    c.Temperature,
		Timeout:        c.Timeout,
		TokenLimit:     c.PromptTokenLimit,
	}
}

// Client implements every capability interface of package llm over chat completions.
type Client struct {
	cfg    Config
	api    *goopenai.Client
	budget *llm.Budget
	logger *slog.Logger
}

var (
	_ llm.Assessor   = (*Client)(nil)
	_ llm.Extractor  = (*Client)(nil)
	_ llm.Reconciler = (*Client)(nil)
	_ llm.Verifier   = (*Client)(nil)
)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.ExtractModel == "" {
		cfg.ExtractModel = "gpt-4o-mini"
	}
	if cfg.AssessModel == "" {
		cfg.AssessModel = cfg.ExtractModel
	}
	if cfg.VerifyModel == "" {
		cfg.VerifyModel = cfg.ExtractModel
	}
	if cfg.ReconcileModel == "" {
		cfg.ReconcileModel = "gpt-4o"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}

	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		cfg:    cfg,
		api:    goopenai.NewClientWithConfig(apiCfg),
		budget: llm.NewBudget(cfg.TokenLimit, logger),
		logger: logger,
	}
}

// ModelFor returns the model serving a capability.
func (c *Client) ModelFor(capability string) string {
	switch capability {
	case capAssess:
		return c.cfg.AssessModel
	case capReconcile:
		return c.cfg.ReconcileModel
	case capVerify:
		return c.cfg.VerifyModel
	default:
		return c.cfg.ExtractModel
	}
}
