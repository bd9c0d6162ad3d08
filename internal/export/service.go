package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
)

// DocumentLister is the read side of the document store.
type DocumentLister interface {
	ListByStatus(ctx context.Context, statuses ...constants.DocumentStatus) ([]*entity.Document, error)
}

// Service produces XLSX bytes for stored documents.
type Service struct {
	docs   DocumentLister
	logger *slog.Logger
}

func NewService(docs DocumentLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, logger: logger}
}

// ExportXLSX writes every document in the given statuses; with none given, approved and
// needs_review documents are exported.
func (s *Service) ExportXLSX(ctx context.Context, statuses ...constants.DocumentStatus) ([]byte, error) {
	start := time.Now()
	if len(statuses) == 0 {
		statuses = []constants.DocumentStatus{constants.DocumentApproved, constants.DocumentNeedsReview}
	}
	docs, err := s.docs.ListByStatus(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	data, rows, err := Documents(docs, fmt.Sprintf("%d documents", len(docs)))
	if err != nil {
		s.logger.Error("export.xlsx.failed", "error", err)
		return nil, err
	}
	s.logger.Info("export.xlsx.ok", "documents", len(docs), "rows", rows, "statuses", statuses,
		"elapsed_ms", time.Since(start).Milliseconds())
	return data, nil
}

// Documents renders docs into a workbook and returns it with the data row count.
func Documents(docs []*entity.Document, source string) ([]byte, int, error) {
	var rows []Row
	sum := Summary{Source: source}
	for _, d := range docs {
		if d.Record == nil {
			continue
		}
		sum.Documents++
		for _, is := range d.Record.Validation.Issues {
			sum.Issues = append(sum.Issues, d.Filename+": "+is)
		}
		rows = append(rows, RowsFromDocument(d)...)
	}
	sum.TotalRows = len(rows)
	for _, r := range rows {
		if r.Valid() {
			sum.ValidRows++
		}
	}
	data, err := WriteXLSX(rows, sum)
	return data, len(rows), err
}
