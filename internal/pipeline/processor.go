// Package pipeline runs one document through routing, extraction, optional reconciliation,
// verification and disposition, producing the record stored for review.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/llm"
	"github.com/joseph-ayodele/waste-pipeline/internal/metrics"
	"github.com/joseph-ayodele/waste-pipeline/internal/ocr"
	"github.com/joseph-ayodele/waste-pipeline/internal/pipeline/aggregate"
	"github.com/joseph-ayodele/waste-pipeline/internal/pipeline/chunked"
	"github.com/joseph-ayodele/waste-pipeline/internal/pipeline/disposition"
	"github.com/joseph-ayodele/waste-pipeline/internal/pipeline/reconcile"
	"github.com/joseph-ayodele/waste-pipeline/internal/pipeline/route"
	"github.com/joseph-ayodele/waste-pipeline/internal/pipeline/verify"
	"github.com/joseph-ayodele/waste-pipeline/internal/prescan"
	"github.com/joseph-ayodele/waste-pipeline/internal/tabular"
	"github.com/joseph-ayodele/waste-pipeline/internal/trace"
)

// Record-level confidences for derived fields.
const (
	TodayDateConfidence       = 0.5
	DefaultReceiverConfidence = 0.9
	MixedMaterialConfidence   = 0.8
	WeightSumConfidence       = 0.9
	SumConfidence             = 0.8
)

// Capabilities are the external services a Processor calls. Nil members degrade to the
// documented fallbacks; a nil Extractor or OCR fails the documents that need it.
type Capabilities struct {
	Assessor   llm.Assessor
	Extractor  llm.Extractor
	Reconciler llm.Reconciler
	Verifier   llm.Verifier
	OCR        chunked.TextRecognizer
	Preview    PDFPreviewer
}

// PDFPreviewer renders the leading pages of a PDF for the assessor and the reconciler.
type PDFPreviewer interface {
	PreviewPDF(ctx context.Context, data []byte, maxPages int) (ocr.Preview, error)
}

type Input struct {
	Bytes    []byte
	Filename string
	MIME     string
}

type Result struct {
	Record     *entity.ExtractedRecord
	Status     constants.Disposition
	Confidence float64
	ModelPath  string
	Route      constants.Capability
	Changes    []llm.Change
	Issues     []entity.VerificationIssue
	Err        error
}

// Processor coordinates the stages of a single run.
type Processor struct {
	cfg       Config
	router    *route.Router
	extractor *chunked.Extractor
	escalator *reconcile.Escalator
	verifier  *verify.Verifier
	previewer PDFPreviewer
	logger    *slog.Logger
	now       func() time.Time
}

func NewProcessor(cfg Config, caps Capabilities, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		cfg:       cfg,
		router:    route.NewRouter(caps.Assessor, logger),
		extractor: chunked.New(cfg.chunkedConfig(), caps.Extractor, caps.OCR, logger),
		escalator: reconcile.New(cfg.reconcileConfig(), caps.Reconciler, logger),
		verifier:  verify.New(cfg.verifyConfig(), caps.Verifier, logger),
		previewer: caps.Preview,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the clock used for trace timestamps and today-dates.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

type run struct {
	in        Input
	settings  entity.Settings
	kind      constants.FileKind
	tl        *trace.Log
	defaults  entity.ItemDefaults
	grid      tabular.Grid
	baseline  *prescan.Result
	preview   ocr.Preview
	pages     []llm.Image
	modelPath string
}

// Process runs the whole pipeline. Document-level failures come back as Status error with Err
// set and a record carrying the processing log; they are never retried here.
func (p *Processor) Process(ctx context.Context, in Input, settings entity.Settings) Result {
	if common.RequestIDFromContext(ctx) == "" {
		ctx = common.WithRequestID(ctx, uuid.NewString())
	}
	logger := p.logger.With("req_id", common.RequestIDFromContext(ctx), "filename", in.Filename)
	if id := common.DocumentIDFromContext(ctx); id != "" {
		logger = logger.With("doc_id", id)
	}
	start := time.Now()

	r := &run{
		in:       in,
		settings: settings.WithDefaults(),
		kind:     constants.KindFromFilename(in.Filename, in.MIME),
		tl:       trace.New(logger).WithClock(p.now),
	}
	r.tl.Info(ctx, "pipeline.start", fmt.Sprintf("Processing %s (%d bytes)", in.Filename, len(in.Bytes)), "kind", r.kind)

	res, err := p.process(ctx, r)
	if err != nil {
		res = p.fail(ctx, r, err)
	}
	metrics.DocumentsProcessed.WithLabelValues(string(res.Route), string(res.Status)).Inc()
	logger.Info("pipeline.done",
		"status", res.Status, "confidence", res.Confidence, "model_path", res.ModelPath,
		"elapsed_ms", time.Since(start).Milliseconds())
	return res
}

func (p *Processor) process(ctx context.Context, r *run) (Result, error) {
	if len(r.in.Bytes) == 0 {
		return Result{}, common.Errorf("EMPTY_INPUT", common.ErrIrrecoverableInput, "%s is empty", r.in.Filename)
	}
	if !r.kind.IsTabular() && !r.kind.IsScan() {
		return Result{}, common.Errorf("UNSUPPORTED_TYPE", common.ErrIrrecoverableInput, "unsupported file type for %s", r.in.Filename)
	}
	r.defaults = p.itemDefaults(r)

	if r.kind.IsTabular() {
		if err := p.prescan(ctx, r); err != nil {
			return Result{}, err
		}
	}

	if r.kind == constants.KindPDF {
		p.previewPDF(ctx, r)
	}

	timer := metrics.StageTimer("route")
	assessment, capability := p.router.Assess(ctx, route.Document{
		Filename: r.in.Filename,
		MIMEType: r.in.MIME,
		Data:     r.in.Bytes,
		Preview:  r.preview.Text,
		Pages:    r.pages,
	}, r.tl)
	timer.ObserveDuration()
	r.modelPath = string(capability)

	ex, err := p.extract(ctx, r, assessment, capability)
	if err != nil {
		return Result{Route: capability}, err
	}
	items := ex.Items
	extracted := len(items)
	totalRows := ex.Rows
	if totalRows == 0 {
		totalRows = extracted
	}

	var merged *aggregate.Result
	if p.cfg.AggregateRows {
		agg := aggregate.Aggregate(items, totalRows)
		merged = &agg
		items = agg.Items
		r.modelPath += " → aggregate"
		r.tl.Info(ctx, "pipeline.aggregate",
			fmt.Sprintf("Aggregated %d rows into %d (%d merged), total %.2f kg", agg.InputRows, agg.OutputRows, agg.MergedRows, agg.TotalWeightKg),
			"merged", agg.MergedRows)
	}

	confidence := ex.Confidence
	var changes []llm.Change
	if confidence < p.cfg.ReconciliationThreshold {
		timer := metrics.StageTimer("reconcile")
		rec := p.escalator.Run(ctx, reconcile.Input{
			Filename:   r.in.Filename,
			Kind:       r.kind,
			MIMEType:   r.in.MIME,
			Data:       r.in.Bytes,
			Pages:      r.pages,
			SourceText: ex.SourceText,
			Items:      items,
			Confidence: confidence,
			Defaults:   r.defaults,
		}, r.tl)
		timer.ObserveDuration()
		items, confidence, changes = rec.Items, rec.Confidence, rec.Changes
		r.modelPath += " → reconciliation"
	} else {
		r.tl.Info(ctx, "pipeline.reconcile.skipped",
			fmt.Sprintf("Confidence %.2f meets threshold %.2f, skipping reconciliation", confidence, p.cfg.ReconciliationThreshold))
	}

	timer = metrics.StageTimer("verify")
	vr := p.verifier.Run(ctx, verify.Input{Filename: r.in.Filename, Items: items, SourceText: ex.SourceText, Confidence: confidence}, r.tl)
	timer.ObserveDuration()
	r.modelPath += " → verification"
	confidence = vr.Confidence

	threshold := r.settings.AutoApproveThreshold
	if threshold <= 0 {
		threshold = p.cfg.DefaultAutoApproveThreshold
	}
	status := disposition.Decide(vr.Passed, confidence, threshold)
	r.tl.Info(ctx, "pipeline.disposition", disposition.Explain(status, vr.Passed, confidence, threshold), "status", status)

	record := p.buildRecord(ctx, r, ex, vr, merged, extracted, totalRows, confidence)
	metrics.FinalConfidence.Observe(confidence)

	return Result{
		Record:     record,
		Status:     status,
		Confidence: confidence,
		ModelPath:  r.modelPath,
		Route:      capability,
		Changes:    changes,
		Issues:     vr.Issues,
	}, nil
}

// previewPDF renders the leading pages once per run. Without a previewer only the text
// layer is read; render failures leave the run on text alone.
func (p *Processor) previewPDF(ctx context.Context, r *run) {
	n := p.cfg.PreviewPages
	if n <= 0 {
		n = DefaultPreviewPages
	}
	if p.previewer == nil {
		if text, _, err := ocr.PDFText(r.in.Bytes, n); err == nil {
			r.preview.Text = text
		}
		return
	}
	timer := metrics.StageTimer("preview")
	defer timer.ObserveDuration()

	pv, err := p.previewer.PreviewPDF(ctx, r.in.Bytes, n)
	r.preview = pv
	for _, pg := range pv.Pages {
		r.pages = append(r.pages, llm.Image{Data: pg.Data, MIME: pg.MIME})
	}
	if err != nil {
		r.tl.Warn(ctx, "pipeline.preview.failed", fmt.Sprintf("Could not render PDF pages: %v", err))
		return
	}
	r.tl.Info(ctx, "pipeline.preview", fmt.Sprintf("Rendered %d PDF pages, %d characters of text layer", len(r.pages), len([]rune(pv.Text))))
}

func (p *Processor) itemDefaults(r *run) entity.ItemDefaults {
	receiver := r.settings.DefaultReceiver
	if rc, ok := constants.ReceiverFromFilename(r.in.Filename); ok {
		receiver = rc
	}
	return entity.ItemDefaults{
		Date:     entity.DateFromFilename(r.in.Filename),
		Receiver: receiver,
		Synonyms: r.settings.MaterialSynonyms,
		Now:      p.now,
	}
}

func (p *Processor) prescan(ctx context.Context, r *run) error {
	timer := metrics.StageTimer("prescan")
	defer timer.ObserveDuration()

	grid, err := tabular.Decode(r.in.Bytes, r.kind)
	if err != nil {
		r.tl.Error(ctx, "pipeline.decode.failed", fmt.Sprintf("Could not read spreadsheet: %v", err))
		return err
	}
	r.grid = grid
	scan := prescan.Scan(grid)
	r.baseline = &scan
	r.tl.Info(ctx, "pipeline.prescan",
		fmt.Sprintf("Header at row %d, baseline weight %.2f, cost %.2f, co2 %.2f, %d hazardous rows",
			scan.HeaderIndex+1, scan.WeightTotal, scan.CostTotal, scan.CO2Total, scan.HazardousCount),
		"columns", len(scan.Columns))
	return nil
}

func (p *Processor) extract(ctx context.Context, r *run, a entity.QualityAssessment, c constants.Capability) (chunked.Result, error) {
	timer := metrics.StageTimer("extract")
	defer timer.ObserveDuration()

	in := chunked.Input{
		Data:       r.in.Bytes,
		Filename:   r.in.Filename,
		MIMEType:   r.in.MIME,
		Kind:       r.kind,
		Assessment: a,
		Settings:   r.settings,
		Defaults:   r.defaults,
	}
	if c == constants.CapabilityStructured {
		in.Grid = r.grid
		if r.baseline != nil {
			in.HeaderIndex = r.baseline.HeaderIndex
		}
		return p.extractor.ExtractTabular(ctx, in, r.tl)
	}
	return p.extractor.ExtractScan(ctx, in, r.tl)
}

func (p *Processor) buildRecord(ctx context.Context, r *run, ex chunked.Result, vr verify.Result, merged *aggregate.Result, extracted, totalRows int, confidence float64) *entity.ExtractedRecord {
	items := vr.Items
	rec := &entity.ExtractedRecord{LineItems: items}

	if len(items) > 0 && items[0].Date.Value != "" {
		rec.Date = items[0].Date
	} else {
		rec.Date = entity.Field(p.now().Format(time.DateOnly), TodayDateConfidence)
	}
	if ex.Document.Supplier != "" {
		rec.Supplier = entity.Field(ex.Document.Supplier, SumConfidence)
	}
	if len(items) > 0 {
		rec.Address = items[0].Address
	}
	if len(items) > 0 && items[0].Receiver.Value != "" {
		rec.Receiver = items[0].Receiver
	} else {
		rec.Receiver = entity.Field(r.defaults.Receiver, DefaultReceiverConfidence)
	}
	rec.Material = entity.Field(constants.DefaultMaterial, MixedMaterialConfidence)

	weight, co2 := decimal.Zero, decimal.Zero
	for _, it := range items {
		weight = weight.Add(decimal.NewFromFloat(it.WeightKg.Value))
		co2 = co2.Add(decimal.NewFromFloat(it.CO2Saved.Value))
	}
	rec.WeightKg = entity.Field(weight.Round(3).InexactFloat64(), WeightSumConfidence)
	if !co2.IsZero() {
		rec.TotalCO2Saved = entity.Field(co2.Round(3).InexactFloat64(), SumConfidence)
	}
	if r.baseline != nil && r.baseline.CostTotal > 0 {
		rec.Cost = entity.Field(r.baseline.CostTotal, SumConfidence)
	}

	rate := 1.0
	if totalRows > 0 {
		rate = min(float64(extracted)/float64(totalRows), 1)
	}
	language := ex.Language
	if language == "" {
		language = constants.DefaultLanguage
	}
	rec.Metadata = entity.Metadata{
		TotalRows:      totalRows,
		ExtractedRows:  extracted,
		ProcessedRows:  len(items),
		ExtractionRate: rate,
		Chunked:        ex.Rows > 0,
		Chunks:         ex.Chunks,
		Model:          r.modelPath,
		Language:       entity.Language{Detected: language, Translations: []string{}},
	}
	if r.baseline != nil {
		b := r.baseline.Baseline
		rec.Metadata.Baseline = &b
	}
	rec.Validation = entity.Validation{Completeness: math.Round(rate * 100), Issues: []string{}}
	rec.SetConfidence(confidence)

	if merged != nil {
		rec.Metadata.AggregatedRows = merged.OutputRows
		if merged.MergedRows > 0 {
			rec.AddIssue(fmt.Sprintf("Merged %d duplicate rows into %d", merged.MergedRows, merged.OutputRows))
		}
	}
	if ex.Rows > 0 && rate < p.cfg.MinExtractionRate {
		missing := totalRows - extracted
		rec.AddIssue(fmt.Sprintf("Missing %d rows (extracted %d of %d)", missing, extracted, totalRows))
		r.tl.Warn(ctx, "pipeline.rows.missing", fmt.Sprintf("Extraction rate %.0f%% below %.0f%%", rate*100, p.cfg.MinExtractionRate*100))
	}
	if issue, ok := p.baselineIssue(r.baseline, rec.WeightKg.Value); ok {
		rec.AddIssue(issue)
		r.tl.Warn(ctx, "pipeline.baseline.diverged", issue)
	}
	for _, is := range vr.Issues {
		rec.AddIssue(fmt.Sprintf("Row %d: %s (%s, %s)", is.RowIndex+1, is.Issue, is.Field, is.Severity))
	}
	if vr.BatchesFailed > 0 {
		rec.AddIssue(fmt.Sprintf("%d of %d verification batches failed", vr.BatchesFailed, vr.Batches))
	}

	rec.ProcessingLog = r.tl.Lines()
	return rec
}

// baselineIssue reports when the extracted weight diverges from the prescan total by more than the tolerance.
func (p *Processor) baselineIssue(b *prescan.Result, extracted float64) (string, bool) {
	if b == nil || b.WeightTotal <= 0 {
		return "", false
	}
	diff := math.Abs(extracted-b.WeightTotal) / b.WeightTotal
	if diff <= p.cfg.BaselineTolerance {
		return "", false
	}
	return fmt.Sprintf("Extracted weight %.2f kg differs from spreadsheet total %.2f by %.0f%%", extracted, b.WeightTotal, diff*100), true
}

func (p *Processor) fail(ctx context.Context, r *run, err error) Result {
	r.tl.Error(ctx, "pipeline.failed", fmt.Sprintf("Processing failed: %v", err))
	rec := &entity.ExtractedRecord{
		Metadata:   entity.Metadata{Model: r.modelPath, Language: entity.Language{Detected: constants.DefaultLanguage, Translations: []string{}}},
		Validation: entity.Validation{Issues: []string{err.Error()}},
		LineItems:  []entity.LineItem{},
	}
	if r.baseline != nil {
		b := r.baseline.Baseline
		rec.Metadata.Baseline = &b
	}
	rec.ProcessingLog = r.tl.Lines()

	capability := constants.CapabilityStructured
	if r.kind.IsScan() {
		capability = constants.CapabilityOCR
	}
	return Result{
		Record:    rec,
		Status:    constants.DispositionError,
		ModelPath: r.modelPath,
		Route:     capability,
		Err:       err,
	}
}
