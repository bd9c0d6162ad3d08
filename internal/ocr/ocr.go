// Package ocr turns scanned documents into plain text using the PDF text layer when present
// and external tesseract/pdftoppm binaries otherwise.
package ocr

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "swe+eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	PreviewDPI    int    // DPI of page images sent to capabilities, default 150
	MaxPages      int    // 0 = no limit

	TessdataDir         string
	HeicConverter       string // heif-convert | magick | sips
	EnableTSVConfidence bool

	PSM int
	OEM int

	// MinTextLayerChars is the least amount of letters a PDF text layer must carry
	// before rasterization is skipped.
	MinTextLayerChars int
}

// ConfigFrom maps the application OCR settings onto an extractor Config.
func ConfigFrom(c common.OCRConfig) Config {
	return Config{
		Pdftoppm:      c.Pdftoppm,
		Tesseract:     c.Tesseract,
		TesseractLang: c.Language,
		DPI:           c.DPI,
		PreviewDPI:    c.PreviewDPI,
		MaxPages:      c.MaxPages,
		TessdataDir:   c.TessdataDir,
		HeicConverter: c.HeicConverter,
	}
}

type Result struct {
	Text       string
	Pages      int
	SourceType constants.FileKind
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float64
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "swe+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PreviewDPI <= 0 {
		cfg.PreviewDPI = 150
	}
	if cfg.HeicConverter == "" {
		cfg.HeicConverter = "magick"
	}
	if cfg.MinTextLayerChars <= 0 {
		cfg.MinTextLayerChars = 40
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the command runner; used by tests.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// ExtractText recognises the text of an in-memory scan. Tool failures are reported as
// ErrCapabilityUnavailable so the pipeline can abort the document.
func (e *Extractor) ExtractText(ctx context.Context, data []byte, filename string) (Result, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(filename))
	kind := constants.KindFromExt(ext)
	e.logger.Debug("ocr.start", "filename", filename, "kind", kind, "bytes", len(data))

	if !kind.IsScan() {
		return Result{}, common.Errorf("OCR_ERROR", common.ErrIrrecoverableInput, "unsupported ocr extension %q", ext)
	}

	if kind == constants.KindPDF {
		if res, ok := e.textLayer(data); ok {
			res.Duration = time.Since(start)
			e.logger.Info("ocr.pdf_text.ok", "filename", filename, "pages", res.Pages, "chars", len(res.Text))
			return res, nil
		}
	}

	tmpDir, err := os.MkdirTemp("", "waste-ocr-*")
	if err != nil {
		return Result{}, common.Errorf("OCR_ERROR", common.ErrInternal, "create temp dir: %v", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.cleanup.failed", "dir", tmpDir, "error", err)
		}
	}()
	path := filepath.Join(tmpDir, "source."+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Result{}, common.Errorf("OCR_ERROR", common.ErrInternal, "write temp file: %v", err)
	}

	var res Result
	if kind == constants.KindPDF {
		res, err = e.rasterPDF(ctx, path, tmpDir)
	} else {
		res, err = e.image(ctx, path, ext, tmpDir)
	}
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Error("ocr.failed", "filename", filename, "method", res.Method, "error", err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return res, common.Errorf("OCR_TIMEOUT", errors.Join(common.ErrCapabilityUnavailable, err), "ocr %s", filename)
		}
		return res, common.Errorf("OCR_ERROR", errors.Join(common.ErrCapabilityUnavailable, err), "ocr %s", filename)
	}
	e.logger.Info("ocr.ok", "filename", filename, "method", res.Method, "pages", res.Pages,
		"chars", len(res.Text), "confidence", res.Confidence, "elapsed_ms", res.Duration.Milliseconds())
	return res, nil
}

func (e *Extractor) image(ctx context.Context, path, ext, tmpDir string) (Result, error) {
	var warns []string
	if constants.IsHEICExt(ext) {
		out, w, err := convertHEICtoPNG(ctx, e.runner, e.cfg.HeicConverter, path, tmpDir)
		warns = append(warns, w...)
		if err != nil {
			return Result{SourceType: constants.KindImage, Method: "image-ocr", Warnings: warns}, err
		}
		path = out
	}
	res, err := e.extractImage(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	return res, err
}

// Truncate cuts text to at most limit runes.
func Truncate(text string, limit int) (string, bool) {
	if limit <= 0 {
		return text, false
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text, false
	}
	return string(runes[:limit]), true
}
