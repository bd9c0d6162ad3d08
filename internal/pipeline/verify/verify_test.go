package verify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/llm"
	"github.com/joseph-ayodele/waste-pipeline/internal/trace"
)

type fakeVerifier struct {
	mu   sync.Mutex
	fn   func(req llm.VerifyRequest) (llm.VerifyResult, error)
	reqs []llm.VerifyRequest
}

func (f *fakeVerifier) VerifyBatch(_ context.Context, req llm.VerifyRequest) (llm.VerifyResult, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.fn(req)
}

func ptr(f float64) *float64 { return &f }

func items(n int) []entity.LineItem {
	out := make([]entity.LineItem, n)
	for i := range out {
		out[i].WeightKg = entity.Field(float64(i+1), 0.95)
	}
	return out
}

func TestRunCleanPass(t *testing.T) {
	fv := &fakeVerifier{fn: func(llm.VerifyRequest) (llm.VerifyResult, error) {
		return llm.VerifyResult{Confidence: ptr(0.95)}, nil
	}}
	res := New(Config{}, fv, nil).Run(context.Background(), Input{Items: items(60), SourceText: "src", Confidence: 0.9}, trace.New(nil))

	assert.True(t, res.Passed)
	assert.Equal(t, 3, res.Batches)
	assert.InDelta(t, 0.95, res.AvgConfidence, 1e-9)
	assert.Equal(t, 0.9, res.Confidence)
	assert.Len(t, res.Items, 60)
	require.Len(t, fv.reqs, 3)
	assert.Equal(t, 50, fv.reqs[2].FirstRow)
	assert.Len(t, fv.reqs[2].Items, 10)
	assert.Equal(t, 3, fv.reqs[2].Batch)
}

func TestRunReindexesAndPenalizesDistinctErrors(t *testing.T) {
	fv := &fakeVerifier{fn: func(req llm.VerifyRequest) (llm.VerifyResult, error) {
		if req.Batch != 2 {
			return llm.VerifyResult{}, nil
		}
		return llm.VerifyResult{Issues: []entity.VerificationIssue{
			{RowIndex: 3, Field: "weightKg", Issue: "not in source", Severity: entity.SeverityError},
			{RowIndex: 3, Field: "weightKg", Issue: "not in source", Severity: entity.SeverityError},
			{RowIndex: 4, Field: "date", Issue: "format", Severity: entity.SeverityError},
			{RowIndex: 5, Field: "address", Issue: "abbreviated", Severity: "minor"},
		}, Confidence: ptr(0.6)}, nil
	}}
	in := items(30)
	res := New(Config{}, fv, nil).Run(context.Background(), Input{Items: in, Confidence: 0.88}, trace.New(nil))

	assert.False(t, res.Passed)
	assert.Equal(t, 2, res.ErrorCount)
	require.Len(t, res.Issues, 3)
	assert.Equal(t, 28, res.Issues[0].RowIndex)
	assert.Equal(t, entity.SeverityWarning, res.Issues[2].Severity)
	assert.Len(t, res.Items[28].VerificationIssues, 1)
	assert.Len(t, res.Items[29].VerificationIssues, 1)
	assert.Empty(t, in[28].VerificationIssues, "input is not annotated")
	assert.InDelta(t, 0.78, res.Confidence, 1e-9)
	assert.InDelta(t, (0.9+0.6)/2, res.AvgConfidence, 1e-9)
}

func TestRunFailedBatchUsesFallback(t *testing.T) {
	fv := &fakeVerifier{fn: func(req llm.VerifyRequest) (llm.VerifyResult, error) {
		if req.Batch == 1 {
			return llm.VerifyResult{}, &llm.ParseError{Capability: "verify", Reason: "truncated"}
		}
		return llm.VerifyResult{Confidence: ptr(0.6)}, nil
	}}
	tl := trace.New(nil)
	res := New(Config{}, fv, nil).Run(context.Background(), Input{Items: items(26), Confidence: 0.9}, tl)

	assert.Equal(t, 1, res.BatchesFailed)
	assert.InDelta(t, 0.7, res.AvgConfidence, 1e-9)
	assert.True(t, res.Passed, "0.70 average passes")
	assert.Contains(t, strings.Join(tl.Lines(), "\n"), "batch 1/2 (rows 1-25) failed")
}

func TestRunLowAverageFails(t *testing.T) {
	fv := &fakeVerifier{fn: func(llm.VerifyRequest) (llm.VerifyResult, error) {
		return llm.VerifyResult{Confidence: ptr(0.5)}, nil
	}}
	res := New(Config{}, fv, nil).Run(context.Background(), Input{Items: items(2), Confidence: 0.9}, trace.New(nil))
	assert.False(t, res.Passed)
	assert.Zero(t, res.ErrorCount)
}

func TestRunTruncatesExcerpt(t *testing.T) {
	fv := &fakeVerifier{fn: func(llm.VerifyRequest) (llm.VerifyResult, error) { return llm.VerifyResult{}, nil }}
	res := New(Config{ExcerptChars: 5}, fv, nil).Run(context.Background(),
		Input{Items: items(1), SourceText: "åäöåäöåäö"}, trace.New(nil))
	assert.True(t, res.ExcerptTrimmed)
	assert.Equal(t, "åäöåä", fv.reqs[0].SourceExcerpt)
}

func TestRunConcurrentBatches(t *testing.T) {
	fv := &fakeVerifier{fn: func(req llm.VerifyRequest) (llm.VerifyResult, error) {
		return llm.VerifyResult{Issues: []entity.VerificationIssue{
			{RowIndex: 0, Field: "material", Issue: "unknown", Severity: entity.SeverityWarning},
		}}, nil
	}}
	res := New(Config{BatchSize: 2, Concurrency: 3}, fv, nil).Run(context.Background(), Input{Items: items(9), Confidence: 0.9}, trace.New(nil))
	require.Len(t, res.Issues, 5)
	for i, is := range res.Issues {
		assert.Equal(t, i*2, is.RowIndex)
	}
	assert.True(t, res.Passed)
}

func TestRunWithoutVerifier(t *testing.T) {
	res := New(Config{}, nil, nil).Run(context.Background(), Input{Items: items(3), Confidence: 0.9}, trace.New(nil))
	assert.Equal(t, 1, res.BatchesFailed)
	assert.InDelta(t, DefaultFallbackConfidence, res.AvgConfidence, 1e-9)
}

func TestPenalize(t *testing.T) {
	assert.InDelta(t, 0.85, Penalize(0.9, 1, 0.05, 0.5), 1e-9)
	assert.Equal(t, 0.5, Penalize(0.6, 10, 0.05, 0.5))
	assert.Equal(t, 0.9, Penalize(0.9, 0, 0.05, 0.5))
}

func TestRunEmpty(t *testing.T) {
	fv := &fakeVerifier{fn: func(llm.VerifyRequest) (llm.VerifyResult, error) {
		return llm.VerifyResult{}, errors.New("unreachable")
	}}
	res := New(Config{}, fv, nil).Run(context.Background(), Input{Confidence: 0.9}, trace.New(nil))
	assert.Empty(t, fv.reqs)
	assert.Zero(t, res.Batches)
}
