package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/tabular"
)

// Prompt is a system/user message pair for one capability call.
type Prompt struct {
	System string
	User   string
}

const itemFieldGuide = "Each item has: date (YYYY-MM-DD), material, handling, weightKg (kilograms; convert ton x1000 and g /1000), " +
	"percentage, co2Saved, isHazardous (boolean), address (pickup location), receiver (receiving company). " +
	"Every field is an object {\"value\": ..., \"confidence\": 0..1}."

func withSchema(parts []string, schema map[string]any) string {
	parts = append(parts, "Return ONLY JSON that matches this JSON Schema:\n"+mustJSON(schema))
	return strings.Join(parts, "\n")
}

func BuildAssessPrompt(req AssessRequest) Prompt {
	sys := withSchema([]string{
		"You grade scanned waste-management documents before data extraction.",
		"Report qualityScore (0..1, how legible and complete the document is), complexity (LOW|MEDIUM|HIGH),",
		"tableCount, hasHandwriting, hasMergedCells, detectedLanguage and a one-sentence reasoning.",
	}, AssessmentSchema())

	var b strings.Builder
	fmt.Fprintf(&b, "Filename: %s\nMIME type: %s\n", req.Filename, req.MIMEType)
	if p := strings.TrimSpace(req.Preview); p != "" {
		b.WriteString("\nText preview:\n")
		b.WriteString(p)
	}
	return Prompt{System: sys, User: b.String()}
}

func BuildMapColumnsPrompt(req MapColumnsRequest) Prompt {
	sys := withSchema([]string{
		"You map spreadsheet columns of Swedish and English waste reports onto line item fields.",
		"Allowed target fields: date, material, handling, weightKg, unit, percentage, co2Saved, isHazardous, address, receiver, cost, ignore.",
		"Report the document language and how confident you are in the mapping.",
	}, ColumnMappingSchema())
	user := fmt.Sprintf("Filename: %s\n\nSample (first row is the header):\n%s",
		req.Filename, tabular.Markdown(req.Header, req.Sample))
	return Prompt{System: sys, User: user}
}

func BuildChunkPrompt(req ChunkRequest) Prompt {
	parts := []string{
		"You extract disposal events from a slice of a waste report spreadsheet.",
		"Return exactly one item per data row, in row order. Never merge, skip or invent rows.",
		itemFieldGuide,
		"Canonical material names and their synonyms:\n" + constants.FormatSynonyms(req.Synonyms),
	}
	if req.DefaultReceiver != "" {
		parts = append(parts, "If a row names no receiver, use "+req.DefaultReceiver+" with confidence 0.5.")
	}
	if req.FilenameDate != "" {
		parts = append(parts, "If a row has no date, use "+req.FilenameDate+" (from the filename) with confidence 0.5.")
	}
	if ci := strings.TrimSpace(req.CustomInstructions); ci != "" {
		parts = append(parts, "Operator instructions: "+ci)
	}
	sys := withSchema(parts, ChunkSchema())

	var b strings.Builder
	fmt.Fprintf(&b, "Filename: %s\n", req.Filename)
	if req.Mapping != nil && len(req.Mapping.Columns) > 0 {
		b.WriteString("Column mapping (advisory): ")
		b.WriteString(mustJSON(req.Mapping.Columns))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Rows %d-%d (%d rows, return %d items):\n",
		req.FirstRow+1, req.FirstRow+len(req.Rows), len(req.Rows), req.ExpectedCount)
	b.WriteString(tabular.Markdown(req.Header, req.Rows))
	return Prompt{System: sys, User: b.String()}
}

func BuildDocumentPrompt(req DocumentRequest) Prompt {
	parts := []string{
		"You extract disposal events from a scanned waste-management document.",
		"Return every line item, plus the document header (date, supplier, address, receiver) and the document language.",
		itemFieldGuide,
		"Canonical material names and their synonyms:\n" + constants.FormatSynonyms(req.Synonyms),
	}
	if req.DefaultReceiver != "" {
		parts = append(parts, "If the document names no receiver, use "+req.DefaultReceiver+" with confidence 0.5.")
	}
	if req.FilenameDate != "" {
		parts = append(parts, "If an item has no date, use "+req.FilenameDate+" with confidence 0.5.")
	}
	if ci := strings.TrimSpace(req.CustomInstructions); ci != "" {
		parts = append(parts, "Operator instructions: "+ci)
	}
	sys := withSchema(parts, DocumentSchema())

	var b strings.Builder
	fmt.Fprintf(&b, "Filename: %s\n\nOCR text:\n%s", req.Filename, req.Text)
	return Prompt{System: sys, User: b.String()}
}

func BuildReconcilePrompt(req ReconcileRequest) Prompt {
	sys := withSchema([]string{
		"You review a low-confidence extraction of a waste report and correct it against the source.",
		"Fix wrong values; do not re-derive the table. Return the same number of items in the same order.",
		"List every correction under changes and give your new overall confidence as newConfidence.",
		itemFieldGuide,
	}, ReconcileSchema())

	var b strings.Builder
	fmt.Fprintf(&b, "Filename: %s\nCurrent confidence: %.2f\n", req.Filename, req.Confidence)
	if len(req.TraceTail) > 0 {
		b.WriteString("\nProcessing log:\n")
		b.WriteString(strings.Join(req.TraceTail, "\n"))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nExtracted items (%d):\n%s\n", len(req.Items), mustJSON(req.Items))
	if src := strings.TrimSpace(req.SourceText); src != "" {
		b.WriteString("\nSource:\n")
		b.WriteString(src)
	}
	return Prompt{System: sys, User: b.String()}
}

func BuildVerifyPrompt(req VerifyRequest) Prompt {
	sys := withSchema([]string{
		"You check extracted waste report rows against the source text and flag values that are not supported by it.",
		"Use severity error for invented or contradicted values and warning for doubtful ones.",
		"rowIndex is the zero-based position within this batch. Report your confidence in the batch as a whole.",
	}, VerifySchema())

	type row struct {
		RowIndex int `json:"rowIndex"`
		entity.LineItem
	}
	rows := make([]row, len(req.Items))
	for i, it := range req.Items {
		it.VerificationIssues = nil
		rows[i] = row{RowIndex: i, LineItem: it}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Filename: %s\nBatch %d of %d (rows %d-%d)\n\nItems:\n%s\n\nSource excerpt:\n%s",
		req.Filename, req.Batch, req.Batches, req.FirstRow+1, req.FirstRow+len(req.Items),
		mustJSON(rows), req.SourceExcerpt)
	return Prompt{System: sys, User: b.String()}
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
