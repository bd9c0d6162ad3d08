// Package chunked extracts line items from spreadsheets in fixed-size row chunks and from
// scans through a single OCR-then-structure pass.
package chunked

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/llm"
	"github.com/joseph-ayodele/waste-pipeline/internal/metrics"
	"github.com/joseph-ayodele/waste-pipeline/internal/ocr"
	"github.com/joseph-ayodele/waste-pipeline/internal/tabular"
	"github.com/joseph-ayodele/waste-pipeline/internal/trace"
)

const (
	DefaultChunkSize                 = 25
	DefaultSampleRows                = 50
	DefaultOCRTextLimit              = 50000
	DefaultMappingFallbackConfidence = 0.3
	DefaultMaxConfidence             = 0.98

	assessmentWeight   = 0.3
	extractionWeight   = 0.5
	chunkSuccessWeight = 0.2
)

type Config struct {
	ChunkSize                 int
	SampleRows                int // includes the header row
	OCRTextLimit              int
	Concurrency               int // chunks in flight; <= 1 runs sequentially
	MappingFallbackConfidence float64
	MaxConfidence             float64
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.SampleRows <= 1 {
		c.SampleRows = DefaultSampleRows
	}
	if c.OCRTextLimit <= 0 {
		c.OCRTextLimit = DefaultOCRTextLimit
	}
	if c.MappingFallbackConfidence <= 0 {
		c.MappingFallbackConfidence = DefaultMappingFallbackConfidence
	}
	if c.MaxConfidence <= 0 {
		c.MaxConfidence = DefaultMaxConfidence
	}
	return c
}

// TextRecognizer runs OCR over an in-memory scan.
type TextRecognizer interface {
	ExtractText(ctx context.Context, data []byte, filename string) (ocr.Result, error)
}

// Input is one document ready for extraction.
type Input struct {
	Data        []byte
	Filename    string
	MIMEType    string
	Kind        constants.FileKind
	Assessment  entity.QualityAssessment
	Grid        tabular.Grid // pre-decoded spreadsheet; decoded from Data when nil
	HeaderIndex int
	Settings    entity.Settings
	Defaults    entity.ItemDefaults
}

type Result struct {
	Items        []entity.LineItem
	Confidence   float64
	Language     string
	SourceText   string
	Rows         int // data rows submitted; 0 for scans
	Chunks       int
	ChunksFailed int
	Mapping      *llm.ColumnMapping
	Document     llm.DocumentInfo
	OCRMethod    string
}

type Extractor struct {
	cfg    Config
	llm    llm.Extractor
	ocr    TextRecognizer
	logger *slog.Logger
}

func New(cfg Config, extractor llm.Extractor, recognizer TextRecognizer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{cfg: cfg.withDefaults(), llm: extractor, ocr: recognizer, logger: logger}
}

// Confidence blends assessment, extraction rate and chunk success into one score capped at maxConf.
func Confidence(assessment, extractionRate, chunkSuccessRate, maxConf float64) float64 {
	c := assessmentWeight*assessment + extractionWeight*extractionRate + chunkSuccessWeight*chunkSuccessRate
	if c < 0 {
		return 0
	}
	return min(c, maxConf)
}

type chunkOutcome struct {
	first, last int // 1-based data row range
	expected    int
	items       []entity.LineItem
	err         error
}

// ExtractTabular runs the mapping call and the per-chunk extraction calls.
func (e *Extractor) ExtractTabular(ctx context.Context, in Input, tl *trace.Log) (Result, error) {
	grid := in.Grid
	if grid == nil {
		g, err := tabular.Decode(in.Data, in.Kind)
		if err != nil {
			tl.Error(ctx, "chunked.decode.failed", fmt.Sprintf("Could not read %s: %v", in.Filename, err))
			return Result{}, err
		}
		grid = g
	}
	if len(grid) == 0 || in.HeaderIndex >= len(grid) {
		return Result{}, common.Errorf("NO_ROWS", common.ErrNoItems, "%s contains no rows", in.Filename)
	}

	header := grid[in.HeaderIndex]
	data := tabular.Grid(grid[in.HeaderIndex+1:]).NonEmpty()
	if len(data) == 0 {
		tl.Error(ctx, "chunked.no_rows", "Spreadsheet has a header but no data rows")
		return Result{}, common.Errorf("NO_ROWS", common.ErrNoItems, "%s has no data rows", in.Filename)
	}
	tl.Info(ctx, "chunked.start", fmt.Sprintf("Extracting %d data rows in chunks of %d", len(data), e.cfg.ChunkSize),
		"rows", len(data), "header_index", in.HeaderIndex)

	res := Result{Rows: len(data), SourceText: tabular.TSV(append([][]string{header}, data...))}

	mappingConf := e.cfg.MappingFallbackConfidence
	res.Language = constants.DefaultLanguage
	sample := data[:min(len(data), e.cfg.SampleRows-1)]
	mapping, err := e.llm.MapColumns(ctx, llm.MapColumnsRequest{Filename: in.Filename, Header: header, Sample: sample})
	if err != nil {
		tl.Warn(ctx, "chunked.mapping.failed", "Column mapping unavailable, continuing without it", "error", err)
	} else {
		res.Mapping = &mapping
		mappingConf = entity.ClampConfidence(mapping.Confidence)
		if l := strings.TrimSpace(mapping.Language); l != "" {
			res.Language = l
		}
		tl.Info(ctx, "chunked.mapping.ok", fmt.Sprintf("Mapped %d columns (confidence %.2f)", len(mapping.Columns), mappingConf))
	}

	outcomes := e.runChunks(ctx, in, header, data, res.Mapping)

	withItems := 0
	for i, o := range outcomes {
		switch {
		case o.err != nil:
			res.ChunksFailed++
			metrics.ChunkOutcomes.WithLabelValues("failed").Inc()
			tl.Warn(ctx, "chunked.chunk.failed",
				fmt.Sprintf("Chunk %d (rows %d-%d) failed: %v", i+1, o.first, o.last, o.err),
				"chunk", i+1, "parse_error", llm.IsParseError(o.err))
			continue
		case len(o.items) < o.expected:
			metrics.ChunkOutcomes.WithLabelValues("partial").Inc()
			tl.Warn(ctx, "chunked.chunk.partial",
				fmt.Sprintf("Chunk %d (rows %d-%d) returned %d of %d rows", i+1, o.first, o.last, len(o.items), o.expected))
		case len(o.items) > o.expected:
			metrics.ChunkOutcomes.WithLabelValues("over").Inc()
			tl.Warn(ctx, "chunked.chunk.over",
				fmt.Sprintf("Chunk %d (rows %d-%d) returned %d items for %d rows", i+1, o.first, o.last, len(o.items), o.expected))
		default:
			metrics.ChunkOutcomes.WithLabelValues("ok").Inc()
			tl.Info(ctx, "chunked.chunk.ok", fmt.Sprintf("Chunk %d (rows %d-%d) returned %d rows", i+1, o.first, o.last, len(o.items)))
		}
		if len(o.items) > 0 {
			withItems++
		}
		res.Items = append(res.Items, o.items...)
	}
	res.Chunks = len(outcomes)

	if len(res.Items) == 0 {
		tl.Error(ctx, "chunked.no_items", fmt.Sprintf("No items extracted from %d rows", len(data)))
		return res, common.Errorf("NO_ITEMS", common.ErrNoItems, "no items extracted from %d rows", len(data))
	}

	rate := min(float64(len(res.Items))/float64(len(data)), 1)
	success := float64(withItems) / float64(len(outcomes))
	res.Confidence = Confidence(mappingConf, rate, success, e.cfg.MaxConfidence)
	tl.Info(ctx, "chunked.done",
		fmt.Sprintf("Extracted %d items from %d rows (%d/%d chunks ok), confidence %.2f",
			len(res.Items), len(data), withItems, len(outcomes), res.Confidence))
	return res, nil
}

func (e *Extractor) runChunks(ctx context.Context, in Input, header []string, data tabular.Grid, mapping *llm.ColumnMapping) []chunkOutcome {
	size := e.cfg.ChunkSize
	n := (len(data) + size - 1) / size
	outcomes := make([]chunkOutcome, n)

	run := func(i int) {
		start := i * size
		end := min(start+size, len(data))
		rows := data[start:end]
		o := chunkOutcome{first: start + 1, last: end, expected: len(rows)}
		out, err := e.llm.ExtractChunk(ctx, llm.ChunkRequest{
			Filename:           in.Filename,
			Header:             header,
			Rows:               rows,
			FirstRow:           start,
			Mapping:            mapping,
			Synonyms:           in.Settings.MaterialSynonyms,
			DefaultReceiver:    in.Defaults.Receiver,
			FilenameDate:       in.Defaults.Date,
			CustomInstructions: in.Settings.CustomInstructions,
			ExpectedCount:      len(rows),
			Defaults:           in.Defaults,
		})
		if err != nil {
			o.err = err
		} else {
			o.items = out.Items
		}
		outcomes[i] = o
	}

	if e.cfg.Concurrency <= 1 {
		for i := 0; i < n; i++ {
			run(i)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			run(i)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// ExtractScan runs OCR once and submits the text to a single structuring call.
func (e *Extractor) ExtractScan(ctx context.Context, in Input, tl *trace.Log) (Result, error) {
	if e.ocr == nil {
		return Result{}, common.Errorf("OCR_UNAVAILABLE", common.ErrCapabilityUnavailable, "no OCR engine configured")
	}

	ocrRes, err := e.ocr.ExtractText(ctx, in.Data, in.Filename)
	if err != nil {
		tl.Error(ctx, "chunked.ocr.failed", fmt.Sprintf("OCR failed: %v", err))
		return Result{}, err
	}
	text := strings.TrimSpace(ocrRes.Text)
	if text == "" {
		tl.Error(ctx, "chunked.ocr.empty", "OCR returned no text")
		return Result{}, common.Errorf("NO_TEXT", common.ErrNoItems, "ocr returned no text for %s", in.Filename)
	}
	text, cut := ocr.Truncate(text, e.cfg.OCRTextLimit)
	if cut {
		tl.Warn(ctx, "chunked.ocr.truncated", fmt.Sprintf("OCR text truncated to %d characters", e.cfg.OCRTextLimit))
	}
	tl.Info(ctx, "chunked.ocr.ok", fmt.Sprintf("OCR (%s) read %d pages, %d characters", ocrRes.Method, ocrRes.Pages, len([]rune(text))))

	req := llm.DocumentRequest{
		Filename:           in.Filename,
		Text:               text,
		Synonyms:           in.Settings.MaterialSynonyms,
		DefaultReceiver:    in.Defaults.Receiver,
		FilenameDate:       in.Defaults.Date,
		CustomInstructions: in.Settings.CustomInstructions,
		Defaults:           in.Defaults,
	}
	if in.Kind == constants.KindImage {
		req.Images = []llm.Image{{Data: in.Data, MIME: in.MIMEType}}
	}

	res := Result{SourceText: text, Chunks: 1, OCRMethod: ocrRes.Method, Language: constants.DefaultLanguage}
	out, err := e.llm.ExtractDocument(ctx, req)
	if err != nil {
		res.ChunksFailed = 1
		metrics.ChunkOutcomes.WithLabelValues("failed").Inc()
		tl.Error(ctx, "chunked.document.failed", fmt.Sprintf("Structuring call failed: %v", err))
		return res, common.Errorf("NO_ITEMS", errors.Join(common.ErrNoItems, err), "structuring %s", in.Filename)
	}
	if len(out.Items) == 0 {
		res.ChunksFailed = 1
		tl.Error(ctx, "chunked.no_items", "Structuring call returned no items")
		return res, common.Errorf("NO_ITEMS", common.ErrNoItems, "no items extracted from %s", in.Filename)
	}
	metrics.ChunkOutcomes.WithLabelValues("ok").Inc()

	res.Items = out.Items
	res.Document = out.Document
	if l := strings.TrimSpace(out.Language); l != "" {
		res.Language = l
	}
	res.Confidence = Confidence(in.Assessment.QualityScore, 1, 1, e.cfg.MaxConfidence)
	tl.Info(ctx, "chunked.done", fmt.Sprintf("Extracted %d items from scan, confidence %.2f", len(res.Items), res.Confidence))
	return res, nil
}
