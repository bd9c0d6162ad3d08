package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joseph-ayodele/waste-pipeline/internal/common"
)

// Page is one rendered PDF page.
type Page struct {
	Data []byte
	MIME string
}

// Preview is what a grader or reviewer looks at without running full OCR.
type Preview struct {
	Text  string // embedded text layer, empty for pure scans
	Pages []Page
}

// PreviewPDF reads the text layer and renders the first maxPages pages as PNG at PreviewDPI.
// A rendering failure still returns whatever text was read, alongside an
// ErrCapabilityUnavailable error.
func (e *Extractor) PreviewPDF(ctx context.Context, data []byte, maxPages int) (Preview, error) {
	if maxPages <= 0 {
		maxPages = 1
	}
	var p Preview
	if text, _, err := PDFText(data, maxPages); err == nil {
		p.Text = text
	} else {
		e.logger.Debug("ocr.preview.no_text", "error", err)
	}

	pages, err := e.renderPages(ctx, data, maxPages)
	if err != nil {
		e.logger.Warn("ocr.preview.render_failed", "error", err)
		return p, common.Errorf("OCR_PREVIEW", errors.Join(common.ErrCapabilityUnavailable, err), "render pdf preview")
	}
	p.Pages = pages
	e.logger.Debug("ocr.preview.ok", "pages", len(pages), "chars", len(p.Text))
	return p, nil
}

func (e *Extractor) renderPages(ctx context.Context, data []byte, maxPages int) ([]Page, error) {
	tmpDir, err := os.MkdirTemp("", "waste-preview-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.cleanup.failed", "dir", tmpDir, "error", err)
		}
	}()

	path := filepath.Join(tmpDir, "source.pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, err
	}
	prefix := filepath.Join(tmpDir, "page")
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-f", "1", "-l", fmt.Sprintf("%d", maxPages),
		"-r", fmt.Sprintf("%d", e.cfg.PreviewDPI), "-png", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 200))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) > maxPages {
		matches = matches[:maxPages]
	}
	if len(matches) == 0 {
		return nil, errors.New("pdftoppm produced no images")
	}
	pages := make([]Page, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			return nil, err
		}
		pages = append(pages, Page{Data: b, MIME: "image/png"})
	}
	return pages, nil
}
