package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/llm"
	"github.com/joseph-ayodele/waste-pipeline/internal/trace"
)

type fakeReconciler struct {
	fn  func(req llm.ReconcileRequest) (llm.ReconcileResult, error)
	req llm.ReconcileRequest
}

func (f *fakeReconciler) Reconcile(_ context.Context, req llm.ReconcileRequest) (llm.ReconcileResult, error) {
	f.req = req
	return f.fn(req)
}

func items(n int) []entity.LineItem {
	out := make([]entity.LineItem, n)
	for i := range out {
		out[i].WeightKg = entity.Field(float64(i), 0.5)
	}
	return out
}

func ptr(f float64) *float64 { return &f }

func TestRunAppliesRepairs(t *testing.T) {
	fr := &fakeReconciler{fn: func(req llm.ReconcileRequest) (llm.ReconcileResult, error) {
		fixed := entity.CloneItems(req.Items)
		fixed[0].WeightKg = entity.Field(1000.0, 0.9)
		return llm.ReconcileResult{
			Items:         fixed,
			Changes:       []llm.Change{{RowIndex: 0, Field: "weightKg", Before: "0", After: "1000", Reason: "ton to kg"}},
			NewConfidence: ptr(0.91),
		}, nil
	}}
	tl := trace.New(nil)
	tl.Info(context.Background(), "x", "earlier line")

	res := New(Config{}, fr, nil).Run(context.Background(), Input{Items: items(3), Confidence: 0.6, SourceText: "src", Kind: constants.KindXLSX}, tl)

	assert.True(t, res.Applied)
	assert.Equal(t, 0.91, res.Confidence)
	require.Len(t, res.Items, 3)
	assert.Equal(t, 1000.0, res.Items[0].WeightKg.Value)
	assert.Len(t, res.Changes, 1)
	assert.Equal(t, "src", fr.req.SourceText)
	assert.Empty(t, fr.req.Images, "spreadsheets are reconciled against text")
	assert.Contains(t, fr.req.TraceTail[0], "earlier line")
	assert.Contains(t, strings.Join(tl.Lines(), "\n"), `Row 1 weightKg: "0" -> "1000" (ton to kg)`)
}

func TestRunCapsSampleAndKeepsRemainder(t *testing.T) {
	fr := &fakeReconciler{fn: func(req llm.ReconcileRequest) (llm.ReconcileResult, error) {
		return llm.ReconcileResult{Items: req.Items}, nil
	}}
	in := items(60)
	res := New(Config{}, fr, nil).Run(context.Background(), Input{Items: in, Confidence: 0.5}, trace.New(nil))

	assert.Len(t, fr.req.Items, DefaultSampleLimit)
	require.Len(t, res.Items, 60)
	assert.Equal(t, 59.0, res.Items[59].WeightKg.Value)
	assert.Equal(t, DefaultNewConfidence, res.Confidence, "missing newConfidence takes the default")
}

func TestRunImageReattachesBytes(t *testing.T) {
	fr := &fakeReconciler{fn: func(req llm.ReconcileRequest) (llm.ReconcileResult, error) {
		return llm.ReconcileResult{Items: req.Items}, nil
	}}
	New(Config{}, fr, nil).Run(context.Background(), Input{
		Items: items(1), Kind: constants.KindImage, Data: []byte("jpg"), MIMEType: "image/jpeg",
	}, trace.New(nil))
	assert.Equal(t, []llm.Image{{Data: []byte("jpg"), MIME: "image/jpeg"}}, fr.req.Images)
}

func TestRunPDFAttachesRenderedPages(t *testing.T) {
	fr := &fakeReconciler{fn: func(req llm.ReconcileRequest) (llm.ReconcileResult, error) {
		return llm.ReconcileResult{Items: req.Items}, nil
	}}
	pages := []llm.Image{{Data: []byte("p1"), MIME: "image/png"}, {Data: []byte("p2"), MIME: "image/png"}}
	New(Config{}, fr, nil).Run(context.Background(), Input{
		Items: items(1), Kind: constants.KindPDF, Data: []byte("%PDF-1.4"), MIMEType: "application/pdf",
		Pages: pages, SourceText: "ocr text",
	}, trace.New(nil))

	assert.Equal(t, pages, fr.req.Images)
	assert.Equal(t, "ocr text", fr.req.SourceText)
}

func TestRunPDFWithoutPagesIsLogged(t *testing.T) {
	fr := &fakeReconciler{fn: func(req llm.ReconcileRequest) (llm.ReconcileResult, error) {
		return llm.ReconcileResult{Items: req.Items}, nil
	}}
	tl := trace.New(nil)
	res := New(Config{}, fr, nil).Run(context.Background(), Input{
		Items: items(1), Kind: constants.KindPDF, Data: []byte("%PDF-1.4"),
	}, tl)

	assert.True(t, res.Applied)
	assert.Empty(t, fr.req.Images)
	assert.Contains(t, strings.Join(tl.Lines(), "\n"), "No rendered PDF pages")
}

func TestRunFallsBack(t *testing.T) {
	tests := []struct {
		name string
		fn   func(req llm.ReconcileRequest) (llm.ReconcileResult, error)
	}{
		{"capability error", func(llm.ReconcileRequest) (llm.ReconcileResult, error) {
			return llm.ReconcileResult{}, errors.New("timeout")
		}},
		{"parse error", func(llm.ReconcileRequest) (llm.ReconcileResult, error) {
			return llm.ReconcileResult{}, &llm.ParseError{Capability: "reconcile", Reason: "schema"}
		}},
		{"shrunk list", func(req llm.ReconcileRequest) (llm.ReconcileResult, error) {
			return llm.ReconcileResult{Items: req.Items[:1], NewConfidence: ptr(0.99)}, nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := items(3)
			res := New(Config{}, &fakeReconciler{fn: tt.fn}, nil).Run(context.Background(), Input{Items: in, Confidence: 0.4}, trace.New(nil))
			assert.False(t, res.Applied)
			assert.Equal(t, DefaultFallbackConfidence, res.Confidence)
			assert.Equal(t, in, res.Items)
		})
	}
}

func TestRunWithoutReconciler(t *testing.T) {
	res := New(Config{FallbackConfidence: 0.65}, nil, nil).Run(context.Background(), Input{Items: items(2)}, trace.New(nil))
	assert.Equal(t, 0.65, res.Confidence)
	assert.Len(t, res.Items, 2)
}
