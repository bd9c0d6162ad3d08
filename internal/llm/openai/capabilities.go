package openai

import (
	"context"

	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/llm"
)

// Assess grades a scanned document. A reply failing the schema is returned as *llm.ParseError
// so the router can fall back to a lenient read of the same payload.
func (c *Client) Assess(ctx context.Context, req llm.AssessRequest) (llm.Assessment, error) {
	raw, err := c.complete(ctx, capAssess, llm.BuildAssessPrompt(req), req.Images)
	if err != nil {
		return llm.Assessment{}, err
	}
	var out llm.Assessment
	if err := llm.DecodeStrict(capAssess, llm.AssessmentSchema(), raw, &out); err != nil {
		c.logParseFailure(ctx, err)
		return llm.Assessment{}, err
	}
	return out, nil
}

func (c *Client) MapColumns(ctx context.Context, req llm.MapColumnsRequest) (llm.ColumnMapping, error) {
	raw, err := c.complete(ctx, capMapColumns, llm.BuildMapColumnsPrompt(req), nil)
	if err != nil {
		return llm.ColumnMapping{}, err
	}
	var out llm.ColumnMapping
	if err := llm.DecodeStrict(capMapColumns, llm.ColumnMappingSchema(), raw, &out); err != nil {
		c.logParseFailure(ctx, err)
		return llm.ColumnMapping{}, err
	}
	out.Confidence = entity.ClampConfidence(out.Confidence)
	return out, nil
}

func (c *Client) ExtractChunk(ctx context.Context, req llm.ChunkRequest) (llm.ChunkResult, error) {
	raw, err := c.complete(ctx, capChunk, llm.BuildChunkPrompt(req), nil)
	if err != nil {
		return llm.ChunkResult{}, err
	}
	var out struct {
		Items []map[string]any `json:"items"`
	}
	if err := llm.DecodeStrict(capChunk, llm.ChunkSchema(), raw, &out); err != nil {
		c.logParseFailure(ctx, err)
		return llm.ChunkResult{}, err
	}
	return llm.ChunkResult{Items: entity.CoerceLineItems(out.Items, req.Defaults)}, nil
}

func (c *Client) ExtractDocument(ctx context.Context, req llm.DocumentRequest) (llm.DocumentResult, error) {
	raw, err := c.complete(ctx, capDocument, llm.BuildDocumentPrompt(req), req.Images)
	if err != nil {
		return llm.DocumentResult{}, err
	}
	var out struct {
		Items    []map[string]any `json:"items"`
		Document llm.DocumentInfo `json:"document"`
		Language string           `json:"language"`
	}
	if err := llm.DecodeStrict(capDocument, llm.DocumentSchema(), raw, &out); err != nil {
		c.logParseFailure(ctx, err)
		return llm.DocumentResult{}, err
	}
	defaults := req.Defaults
	if defaults.Address == "" {
		defaults.Address = out.Document.Address
	}
	if iso, ok := entity.ParseDateISO(out.Document.Date); ok && defaults.Date == "" {
		defaults.Date = iso
	}
	return llm.DocumentResult{
		Items:    entity.CoerceLineItems(out.Items, defaults),
		Document: out.Document,
		Language: out.Language,
	}, nil
}

func (c *Client) Reconcile(ctx context.Context, req llm.ReconcileRequest) (llm.ReconcileResult, error) {
	raw, err := c.complete(ctx, capReconcile, llm.BuildReconcilePrompt(req), req.Images)
	if err != nil {
		return llm.ReconcileResult{}, err
	}
	var out struct {
		Items         []map[string]any `json:"items"`
		Changes       []llm.Change     `json:"changes"`
		NewConfidence *float64         `json:"newConfidence"`
	}
	if err := llm.DecodeStrict(capReconcile, llm.ReconcileSchema(), raw, &out); err != nil {
		c.logParseFailure(ctx, err)
		return llm.ReconcileResult{}, err
	}
	return llm.ReconcileResult{
		Items:         entity.CoerceLineItems(out.Items, req.Defaults),
		Changes:       out.Changes,
		NewConfidence: out.NewConfidence,
	}, nil
}

func (c *Client) VerifyBatch(ctx context.Context, req llm.VerifyRequest) (llm.VerifyResult, error) {
	raw, err := c.complete(ctx, capVerify, llm.BuildVerifyPrompt(req), nil)
	if err != nil {
		return llm.VerifyResult{}, err
	}
	var out struct {
		Issues     []entity.VerificationIssue `json:"issues"`
		Confidence *float64                   `json:"confidence"`
	}
	if err := llm.DecodeStrict(capVerify, llm.VerifySchema(), raw, &out); err != nil {
		c.logParseFailure(ctx, err)
		return llm.VerifyResult{}, err
	}
	return llm.VerifyResult{Issues: out.Issues, Confidence: out.Confidence}, nil
}
