package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/llm"
)

type capturedRequest struct {
	Model          string `json:"model"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []json.RawMessage `json:"messages"`
}

// newTestClient serves content as the assistant message of every completion.
func newTestClient(t *testing.T, status int, content string) (*Client, *[]capturedRequest) {
	t.Helper()
	var seen []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req capturedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen = append(seen, req)

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error": {"message": "upstream down", "type": "server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
			"usage":   map[string]any{"prompt_tokens": 100, "completion_tokens": 20, "total_tokens": 120},
		})
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL, ExtractModel: "small", ReconcileModel: "large"}, nil)
	return c, &seen
}

func TestExtractChunkCoercesItems(t *testing.T) {
	c, seen := newTestClient(t, http.StatusOK, `{"items": [
		{"date": {"value": "2024-01-02", "confidence": 0.95}, "material": {"value": "trä", "confidence": 0.9}, "weightKg": {"value": "1 200", "confidence": 0.9}},
		{"date": "2024-01-03", "material": "Metall", "weight": 80, "location": "Storgatan 1"}
	]}`)

	res, err := c.ExtractChunk(context.Background(), llm.ChunkRequest{
		Filename: "a.xlsx",
		Header:   []string{"Datum", "Material", "Vikt"},
		Rows:     [][]string{{"2024-01-02", "trä", "1 200"}, {"2024-01-03", "Metall", "80"}},
		Defaults: entity.ItemDefaults{Receiver: "Ragn-Sells"},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Trä", res.Items[0].Material.Value)
	assert.InDelta(t, 1200, res.Items[0].WeightKg.Value, 1e-9)
	assert.Equal(t, "Storgatan 1", res.Items[1].Address.Value)
	assert.Equal(t, "Ragn-Sells", res.Items[1].Receiver.Value)

	require.Len(t, *seen, 1)
	assert.Equal(t, "small", (*seen)[0].Model)
	assert.Equal(t, "json_object", (*seen)[0].ResponseFormat.Type)
}

func TestReconcileUsesStrongModel(t *testing.T) {
	c, seen := newTestClient(t, http.StatusOK, `{"items": [{"material": "Trä"}], "changes": [{"rowIndex": 0, "field": "material", "before": "Tra", "after": "Trä"}], "newConfidence": 0.88}`)

	res, err := c.Reconcile(context.Background(), llm.ReconcileRequest{Items: []entity.LineItem{{}}})
	require.NoError(t, err)
	require.NotNil(t, res.NewConfidence)
	assert.Equal(t, 0.88, *res.NewConfidence)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, "large", (*seen)[0].Model)
}

func TestVerifyBatchMissingConfidence(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, `{"issues": [{"rowIndex": 1, "field": "weightKg", "issue": "not in source", "severity": "error"}]}`)

	res, err := c.VerifyBatch(context.Background(), llm.VerifyRequest{Items: make([]entity.LineItem, 2)})
	require.NoError(t, err)
	assert.Nil(t, res.Confidence)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, entity.SeverityError, res.Issues[0].Severity)
}

func TestAssessSchemaFailureIsParseError(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, `{"qualityScore": 0.4, "complexity": "weird"}`)

	_, err := c.Assess(context.Background(), llm.AssessRequest{Filename: "scan.jpg", MIMEType: "image/jpeg", Images: []llm.Image{{Data: []byte{0xff, 0xd8}, MIME: "image/jpeg"}}})
	require.Error(t, err)
	var pe *llm.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, string(pe.Raw), "qualityScore")
}

func TestTransportFailureIsCapabilityUnavailable(t *testing.T) {
	c, _ := newTestClient(t, http.StatusInternalServerError, "")

	_, err := c.MapColumns(context.Background(), llm.MapColumnsRequest{Header: []string{"Datum"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrCapabilityUnavailable)
	assert.False(t, llm.IsParseError(err))
}

func TestExtractDocumentUsesHeaderDefaults(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, `{"items": [{"material": "Gips", "weightKg": 300}], "document": {"date": "2024-03-31", "supplier": "Bygg AB", "address": "Hamnvägen 2"}, "language": "Swedish"}`)

	res, err := c.ExtractDocument(context.Background(), llm.DocumentRequest{Filename: "scan.pdf", Text: "Gips 300 kg"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "2024-03-31", res.Items[0].Date.Value)
	assert.Equal(t, entity.FallbackConfidence, res.Items[0].Date.Confidence)
	assert.Equal(t, "Hamnvägen 2", res.Items[0].Address.Value)
	assert.Equal(t, "Bygg AB", res.Document.Supplier)
	assert.Equal(t, "Swedish", res.Language)
}

func TestReconcileAttachesEveryPage(t *testing.T) {
	c, seen := newTestClient(t, http.StatusOK, `{"items": [{"material": "Trä", "weightKg": 10}], "changes": [], "newConfidence": 0.9}`)

	_, err := c.Reconcile(context.Background(), llm.ReconcileRequest{
		Filename: "report.pdf",
		Items:    []entity.LineItem{{Material: entity.Field("Trä", 0.5)}},
		Images: []llm.Image{
			{Data: []byte("page-1"), MIME: "image/png"},
			{Data: nil, MIME: "image/png"},
			{Data: []byte("page-2"), MIME: "image/png"},
		},
	})
	require.NoError(t, err)
	require.Len(t, *seen, 1)

	var user struct {
		Content []struct {
			Type     string `json:"type"`
			ImageURL struct {
				URL string `json:"url"`
			} `json:"image_url"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal((*seen)[0].Messages[1], &user))
	require.Len(t, user.Content, 3, "prompt text plus two non-empty pages")
	assert.Equal(t, "text", user.Content[0].Type)
	assert.Equal(t, "image_url", user.Content[1].Type)
	assert.Contains(t, user.Content[1].ImageURL.URL, "data:image/png;base64,")
}
