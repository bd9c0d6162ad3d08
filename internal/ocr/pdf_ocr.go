package ocr

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/waste-pipeline/constants"
)

// textLayer reads embedded text. Scans without a usable text layer return ok=false.
func (e *Extractor) textLayer(data []byte) (Result, bool) {
	text, pages, err := PDFText(data, e.cfg.MaxPages)
	if err != nil {
		e.logger.Debug("ocr.pdf_text.unreadable", "error", err)
		return Result{}, false
	}
	if letterCount(text) < e.cfg.MinTextLayerChars {
		return Result{}, false
	}
	return Result{
		Text:       text,
		Pages:      pages,
		SourceType: constants.KindPDF,
		Method:     "pdf-text",
		Language:   e.cfg.TesseractLang,
		Confidence: 0.95,
	}, true
}

// PDFText returns the normalised embedded text of up to maxPages pages (0 = all) and the
// document page count. Malformed documents return an error instead of panicking.
func PDFText(data []byte, maxPages int) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	var b strings.Builder
	pages = r.NumPage()
	for i := 1; i <= pages; i++ {
		if maxPages > 0 && i > maxPages {
			break
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		txt, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(txt)
	}
	return Normalize(b.String()), pages, nil
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

func (e *Extractor) rasterPDF(ctx context.Context, path, tmpDir string) (Result, error) {
	res := Result{SourceType: constants.KindPDF, Method: "pdf-ocr", Language: e.cfg.TesseractLang}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		res.Warnings = []string{string(errb)}
		return res, fmt.Errorf("pdftoppm: %w", err)
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		res.Warnings = []string{"pdftoppm produced no images"}
		return res, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	var failed int
	for _, img := range matches {
		txt, w, err := e.tesseractOCR(ctx, img)
		res.Warnings = append(res.Warnings, w...)
		if err != nil {
			failed++
			res.Warnings = append(res.Warnings, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(txt)
	}
	if failed == len(matches) {
		return res, fmt.Errorf("tesseract failed on all %d pages", failed)
	}

	res.Text = Normalize(b.String())
	res.Pages = len(matches)
	res.Confidence = heuristicConfidence(res.Text)
	return res, nil
}
