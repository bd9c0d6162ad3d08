package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/llm"
	"github.com/joseph-ayodele/waste-pipeline/internal/metrics"
)

const (
	capAssess     = "assess"
	capMapColumns = "map_columns"
	capChunk      = "extract_chunk"
	capDocument   = "extract_document"
	capReconcile  = "reconcile"
	capVerify     = "verify"
)

// complete sends one JSON-mode chat completion and returns the message content.
// Transport failures wrap common.ErrCapabilityUnavailable.
func (c *Client) complete(ctx context.Context, capability string, p llm.Prompt, images []llm.Image) ([]byte, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.NewString()
	}
	model := c.ModelFor(capability)
	start := time.Now()

	user, trimmed := c.budget.Fit(p.User, c.budget.Count(p.System))
	if trimmed {
		c.logger.Warn("llm.prompt.trimmed", "req_id", rid, "capability", capability, "limit", c.budget.Limit)
	}
	promptTokens := c.budget.Count(p.System) + c.budget.Count(user)
	metrics.PromptTokens.WithLabelValues(capability).Add(float64(promptTokens))

	userMsg := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: user}
	attached := 0
	if parts := imageParts(images); len(parts) > 0 {
		attached = len(parts)
		userMsg = goopenai.ChatCompletionMessage{
			Role:         goopenai.ChatMessageRoleUser,
			MultiContent: append([]goopenai.ChatMessagePart{{Type: goopenai.ChatMessagePartTypeText, Text: user}}, parts...),
		}
	}

	c.logger.Info("llm.call.start",
		"req_id", rid,
		"capability", capability,
		"model", model,
		"prompt_tokens", promptTokens,
		"images", attached,
	)

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       model,
		Temperature: c.cfg.Temperature,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: p.System},
			userMsg,
		},
	})
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveCapability(capability, model, "error", elapsed)
		c.logger.Error("llm.call.http_error",
			"req_id", rid, "capability", capability, "error", err,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		code := "CAPABILITY_ERROR"
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			code = "CAPABILITY_RATE_LIMITED"
		}
		return nil, common.Errorf(code, errors.Join(common.ErrCapabilityUnavailable, err), "%s call failed", capability)
	}
	if len(resp.Choices) == 0 {
		metrics.ObserveCapability(capability, model, "empty", elapsed)
		c.logger.Error("llm.call.no_choices", "req_id", rid, "capability", capability,
			"elapsed_ms", elapsed.Milliseconds())
		return nil, &llm.ParseError{Capability: capability, Reason: "no choices in response"}
	}

	metrics.ObserveCapability(capability, model, "ok", elapsed)
	c.logger.Info("llm.call.ok",
		"req_id", rid,
		"capability", capability,
		"model", model,
		"usage_prompt_tokens", resp.Usage.PromptTokens,
		"usage_completion_tokens", resp.Usage.CompletionTokens,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return []byte(strings.TrimSpace(resp.Choices[0].Message.Content)), nil
}

// imageParts turns non-empty images into data URL parts.
func imageParts(images []llm.Image) []goopenai.ChatMessagePart {
	var parts []goopenai.ChatMessagePart
	for _, img := range images {
		if len(img.Data) == 0 {
			continue
		}
		parts = append(parts, goopenai.ChatMessagePart{
			Type: goopenai.ChatMessagePartTypeImageURL,
			ImageURL: &goopenai.ChatMessageImageURL{
				URL:    dataURL(img.Data, img.MIME),
				Detail: goopenai.ImageURLDetailHigh,
			},
		})
	}
	return parts
}

func dataURL(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func (c *Client) logParseFailure(ctx context.Context, err error) {
	var pe *llm.ParseError
	if errors.As(err, &pe) {
		c.logger.Warn(fmt.Sprintf("llm.%s.parse_error", pe.Capability),
			"req_id", common.RequestIDFromContext(ctx), "reason", pe.Reason, "raw_bytes", len(pe.Raw))
	}
}
