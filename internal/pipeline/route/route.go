// Package route grades an incoming document and forks it onto the structured or OCR path.
package route

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/llm"
	"github.com/joseph-ayodele/waste-pipeline/internal/ocr"
	"github.com/joseph-ayodele/waste-pipeline/internal/trace"
)

// Fixed assessment values for spreadsheets.
const (
	SpreadsheetQuality = 0.85
	SpreadsheetTables  = 1
)

// PreviewChars bounds the PDF text shown to the assessor.
const PreviewChars = 4000

// Document is the subset of an input the router looks at. Preview and Pages carry a
// pre-rendered look at a PDF; when Preview is empty the text layer is read from Data.
type Document struct {
	Filename string
	MIMEType string
	Data     []byte
	Preview  string
	Pages    []llm.Image
}

type Router struct {
	assessor llm.Assessor
	logger   *slog.Logger
}

// NewRouter builds a Router. A nil assessor makes every scan use the conservative default.
func NewRouter(assessor llm.Assessor, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{assessor: assessor, logger: logger}
}

// Assess returns the quality assessment and the capability to run next. It never fails.
func (r *Router) Assess(ctx context.Context, doc Document, tl *trace.Log) (entity.QualityAssessment, constants.Capability) {
	kind := constants.KindFromFilename(doc.Filename, doc.MIMEType)

	if kind.IsTabular() {
		tl.Info(ctx, "route.spreadsheet", "Spreadsheet detected, using structured extraction", "kind", kind)
		return entity.QualityAssessment{
			FileType:         kind,
			QualityScore:     SpreadsheetQuality,
			Complexity:       entity.ComplexityMedium,
			TableCount:       SpreadsheetTables,
			HasMergedCells:   true,
			DetectedLanguage: constants.DefaultLanguage,
			Capability:       constants.CapabilityStructured,
			Reasoning:        "spreadsheet input",
		}, constants.CapabilityStructured
	}

	a := r.assessScan(ctx, doc, kind, tl)
	a.FileType = kind
	a.Capability = constants.CapabilityOCR
	return a, constants.CapabilityOCR
}

func (r *Router) assessScan(ctx context.Context, doc Document, kind constants.FileKind, tl *trace.Log) entity.QualityAssessment {
	if r.assessor == nil {
		tl.Warn(ctx, "route.assess.skipped", "No assessor configured, using default assessment")
		return fromRaw(llm.ParseAssessmentLenient(nil), "no assessor configured")
	}

	req := llm.AssessRequest{Filename: doc.Filename, MIMEType: doc.MIMEType}
	switch kind {
	case constants.KindImage:
		req.Images = []llm.Image{{Data: doc.Data, MIME: doc.MIMEType}}
	case constants.KindPDF:
		req.Preview, req.Images = pdfPreview(doc)
		if req.Preview == "" && len(req.Images) == 0 {
			tl.Warn(ctx, "route.assess.blind", "PDF has no text layer and no rendered page, assessing by name only")
		}
	}

	start := time.Now()
	raw, err := r.assessor.Assess(ctx, req)
	if err == nil {
		a := fromRaw(raw, raw.Reasoning)
		tl.Info(ctx, "route.assess.ok", "Quality assessed",
			"quality", a.QualityScore, "complexity", a.Complexity, "elapsed_ms", time.Since(start).Milliseconds())
		return a
	}

	var pe *llm.ParseError
	if errors.As(err, &pe) {
		tl.Warn(ctx, "route.assess.lenient", "Assessment response failed validation, parsed leniently", "reason", pe.Reason)
		lenient := llm.ParseAssessmentLenient(pe.Raw)
		return fromRaw(lenient, lenient.Reasoning)
	}

	tl.Warn(ctx, "route.assess.failed", "Assessment failed, using default assessment", "error", err)
	return fromRaw(llm.ParseAssessmentLenient(nil), "assessment unavailable")
}

func fromRaw(a llm.Assessment, reasoning string) entity.QualityAssessment {
	lang := a.DetectedLanguage
	if lang == "" {
		lang = constants.DefaultLanguage
	}
	tables := a.TableCount
	if tables <= 0 {
		tables = llm.DefaultTableCount
	}
	return entity.QualityAssessment{
		QualityScore:     entity.ClampConfidence(a.QualityScore),
		Complexity:       entity.ParseComplexity(a.Complexity),
		TableCount:       tables,
		HasHandwriting:   a.HasHandwriting,
		HasMergedCells:   a.HasMergedCells,
		DetectedLanguage: lang,
		Reasoning:        reasoning,
	}
}

func pdfPreview(doc Document) (string, []llm.Image) {
	text := doc.Preview
	if text == "" {
		text, _, _ = ocr.PDFText(doc.Data, 1)
	}
	text, _ = ocr.Truncate(text, PreviewChars)
	var pages []llm.Image
	if len(doc.Pages) > 0 {
		pages = doc.Pages[:1]
	}
	return text, pages
}
