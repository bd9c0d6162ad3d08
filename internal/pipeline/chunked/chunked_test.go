package chunked

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/llm"
	"github.com/joseph-ayodele/waste-pipeline/internal/ocr"
	"github.com/joseph-ayodele/waste-pipeline/internal/tabular"
	"github.com/joseph-ayodele/waste-pipeline/internal/trace"
)

// fakeExtractor answers each chunk by its first row; rows listed in fail error out,
// rows listed in short return only that many items.
type fakeExtractor struct {
	mu         sync.Mutex
	mapping    llm.ColumnMapping
	mappingErr error
	fail       map[int]error
	short      map[int]int
	chunkReqs  []llm.ChunkRequest
	docResult  llm.DocumentResult
	docErr     error
	docReq     llm.DocumentRequest
}

func (f *fakeExtractor) MapColumns(context.Context, llm.MapColumnsRequest) (llm.ColumnMapping, error) {
	return f.mapping, f.mappingErr
}

func (f *fakeExtractor) ExtractChunk(_ context.Context, req llm.ChunkRequest) (llm.ChunkResult, error) {
	f.mu.Lock()
	f.chunkReqs = append(f.chunkReqs, req)
	f.mu.Unlock()
	if err, ok := f.fail[req.FirstRow]; ok {
		return llm.ChunkResult{}, err
	}
	n := len(req.Rows)
	if s, ok := f.short[req.FirstRow]; ok {
		n = s
	}
	items := make([]entity.LineItem, n)
	for i := range items {
		items[i].Material = entity.Field(fmt.Sprintf("row-%d", req.FirstRow+i), 0.9)
	}
	return llm.ChunkResult{Items: items}, nil
}

func (f *fakeExtractor) ExtractDocument(_ context.Context, req llm.DocumentRequest) (llm.DocumentResult, error) {
	f.docReq = req
	return f.docResult, f.docErr
}

type fakeOCR struct {
	res ocr.Result
	err error
}

func (f fakeOCR) ExtractText(context.Context, []byte, string) (ocr.Result, error) {
	return f.res, f.err
}

func grid(rows int) tabular.Grid {
	g := tabular.Grid{{"Datum", "Material", "Vikt"}}
	for i := 0; i < rows; i++ {
		g = append(g, []string{"2024-01-02", fmt.Sprintf("m%d", i), "10"})
	}
	return g
}

func TestConfidenceFormula(t *testing.T) {
	assert.InDelta(t, 0.98, Confidence(1, 1, 1, 0.98), 1e-9)
	assert.InDelta(t, 0.3*0.5+0.5*0.5+0.2*1, Confidence(0.5, 0.5, 1, 0.98), 1e-9)
	assert.Zero(t, Confidence(-5, 0, 0, 0.98))
}

func TestExtractTabularChunkFailureIsPartial(t *testing.T) {
	fe := &fakeExtractor{
		mapping: llm.ColumnMapping{Confidence: 0.9, Language: "Swedish", Columns: map[string]string{"Vikt": "weightKg"}},
		fail:    map[int]error{25: &llm.ParseError{Capability: "extract_chunk", Reason: "not json"}},
	}
	tl := trace.New(nil)
	res, err := New(Config{}, fe, nil, nil).ExtractTabular(context.Background(),
		Input{Grid: grid(60), Filename: "a.xlsx", Settings: entity.DefaultSettings()}, tl)
	require.NoError(t, err)

	assert.Len(t, res.Items, 35)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 1, res.ChunksFailed)
	assert.Equal(t, 60, res.Rows)
	want := 0.3*0.9 + 0.5*(35.0/60.0) + 0.2*(2.0/3.0)
	assert.InDelta(t, want, res.Confidence, 1e-9)
	assert.Equal(t, "row-0", res.Items[0].Material.Value)
	assert.Equal(t, "row-50", res.Items[25].Material.Value, "later chunks follow in order")
	assert.Contains(t, strings.Join(tl.Lines(), "\n"), "Chunk 2 (rows 26-50) failed")

	require.Len(t, fe.chunkReqs, 3)
	assert.Equal(t, 25, fe.chunkReqs[0].ExpectedCount)
	assert.Equal(t, 10, fe.chunkReqs[2].ExpectedCount)
	assert.Equal(t, []string{"Datum", "Material", "Vikt"}, fe.chunkReqs[1].Header)
}

func TestExtractTabularUnderReturnIsLoggedNotRetried(t *testing.T) {
	fe := &fakeExtractor{mapping: llm.ColumnMapping{Confidence: 1}, short: map[int]int{0: 18}}
	tl := trace.New(nil)
	res, err := New(Config{}, fe, nil, nil).ExtractTabular(context.Background(), Input{Grid: grid(25)}, tl)
	require.NoError(t, err)

	assert.Len(t, res.Items, 18)
	assert.Len(t, fe.chunkReqs, 1)
	assert.Contains(t, strings.Join(tl.Lines(), "\n"), "returned 18 of 25 rows")
	assert.InDelta(t, 0.3+0.5*18.0/25.0+0.2, res.Confidence, 1e-9)
}

func TestExtractTabularMappingFailureFallsBack(t *testing.T) {
	fe := &fakeExtractor{mappingErr: errors.Join(common.ErrCapabilityUnavailable, errors.New("503"))}
	res, err := New(Config{}, fe, nil, nil).ExtractTabular(context.Background(), Input{Grid: grid(10)}, trace.New(nil))
	require.NoError(t, err)
	assert.Nil(t, res.Mapping)
	assert.Equal(t, "Swedish", res.Language)
	assert.InDelta(t, 0.3*0.3+0.5+0.2, res.Confidence, 1e-9)
	assert.Nil(t, fe.chunkReqs[0].Mapping)
}

func TestExtractTabularAllChunksFail(t *testing.T) {
	boom := errors.New("boom")
	fe := &fakeExtractor{fail: map[int]error{0: boom, 25: boom}}
	_, err := New(Config{}, fe, nil, nil).ExtractTabular(context.Background(), Input{Grid: grid(30)}, trace.New(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNoItems)
}

func TestExtractTabularSkipsEmptyRowsAndUsesHeaderIndex(t *testing.T) {
	g := tabular.Grid{{"Rapport"}, {"Datum", "Material"}, {"2024-01-01", "Trä"}, {"", ""}, {"2024-01-02", "Metall"}}
	fe := &fakeExtractor{mapping: llm.ColumnMapping{Confidence: 0.8}}
	res, err := New(Config{}, fe, nil, nil).ExtractTabular(context.Background(), Input{Grid: g, HeaderIndex: 1}, trace.New(nil))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, []string{"Datum", "Material"}, fe.chunkReqs[0].Header)
	assert.Contains(t, res.SourceText, "Datum\tMaterial")
}

func TestExtractTabularUndecodableInput(t *testing.T) {
	_, err := New(Config{}, &fakeExtractor{}, nil, nil).ExtractTabular(context.Background(),
		Input{Data: []byte("not a workbook"), Kind: constants.KindXLSX}, trace.New(nil))
	assert.ErrorIs(t, err, common.ErrIrrecoverableInput)
}

func TestExtractTabularConcurrentKeepsOrder(t *testing.T) {
	fe := &fakeExtractor{mapping: llm.ColumnMapping{Confidence: 1}}
	res, err := New(Config{ChunkSize: 5, Concurrency: 4}, fe, nil, nil).ExtractTabular(context.Background(), Input{Grid: grid(42)}, trace.New(nil))
	require.NoError(t, err)
	require.Len(t, res.Items, 42)
	for i, it := range res.Items {
		assert.Equal(t, fmt.Sprintf("row-%d", i), it.Material.Value)
	}
	assert.Equal(t, 9, res.Chunks)
}

func TestExtractScan(t *testing.T) {
	fe := &fakeExtractor{docResult: llm.DocumentResult{
		Items:    []entity.LineItem{{Material: entity.Field("Trä", 0.9)}},
		Document: llm.DocumentInfo{Supplier: "Bygg AB"},
		Language: "Swedish",
	}}
	long := strings.Repeat("a", 60)
	e := New(Config{OCRTextLimit: 50}, fe, fakeOCR{res: ocr.Result{Text: long, Method: "image-ocr", Pages: 1}}, nil)

	res, err := e.ExtractScan(context.Background(), Input{
		Data: []byte("img"), Filename: "scan.jpg", MIMEType: "image/jpeg", Kind: constants.KindImage,
		Assessment: entity.QualityAssessment{QualityScore: 0.6},
	}, trace.New(nil))
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
	assert.Equal(t, "Bygg AB", res.Document.Supplier)
	assert.Len(t, fe.docReq.Text, 50)
	assert.Equal(t, []llm.Image{{Data: []byte("img"), MIME: "image/jpeg"}}, fe.docReq.Images)
	assert.InDelta(t, 0.3*0.6+0.7, res.Confidence, 1e-9)
}

func TestExtractScanAborts(t *testing.T) {
	tests := []struct {
		name    string
		ocr     fakeOCR
		fe      *fakeExtractor
		wantErr error
	}{
		{"ocr outage", fakeOCR{err: common.Errorf("OCR_ERROR", common.ErrCapabilityUnavailable, "down")}, &fakeExtractor{}, common.ErrCapabilityUnavailable},
		{"empty text", fakeOCR{res: ocr.Result{Text: "  "}}, &fakeExtractor{}, common.ErrNoItems},
		{"structuring error", fakeOCR{res: ocr.Result{Text: "Trä 10 kg"}}, &fakeExtractor{docErr: errors.New("timeout")}, common.ErrNoItems},
		{"zero items", fakeOCR{res: ocr.Result{Text: "Trä 10 kg"}}, &fakeExtractor{}, common.ErrNoItems},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{}, tt.fe, tt.ocr, nil).ExtractScan(context.Background(),
				Input{Data: []byte("%PDF"), Filename: "a.pdf", Kind: constants.KindPDF}, trace.New(nil))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
