// Package reconcile escalates a low-confidence extraction to a stronger model that repairs
// the items in place.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/llm"
	"github.com/joseph-ayodele/waste-pipeline/internal/metrics"
	"github.com/joseph-ayodele/waste-pipeline/internal/trace"
)

const (
	DefaultSampleLimit        = 50
	DefaultFallbackConfidence = 0.70
	DefaultNewConfidence      = 0.85
	DefaultTraceTail          = 20
)

type Config struct {
	SampleLimit        int
	FallbackConfidence float64
	DefaultConfidence  float64 // used when the reconciler omits newConfidence
	TraceTail          int
}

func (c Config) withDefaults() Config {
	if c.SampleLimit <= 0 {
		c.SampleLimit = DefaultSampleLimit
	}
	if c.FallbackConfidence <= 0 {
		c.FallbackConfidence = DefaultFallbackConfidence
	}
	if c.DefaultConfidence <= 0 {
		c.DefaultConfidence = DefaultNewConfidence
	}
	if c.TraceTail <= 0 {
		c.TraceTail = DefaultTraceTail
	}
	return c
}

type Input struct {
	Filename   string
	Kind       constants.FileKind
	MIMEType   string
	Data       []byte
	Pages      []llm.Image // rendered PDF pages
	SourceText string
	Items      []entity.LineItem
	Confidence float64
	Defaults   entity.ItemDefaults
}

type Result struct {
	Items      []entity.LineItem
	Changes    []llm.Change
	Confidence float64
	Applied    bool // false when the original items were kept at the fallback confidence
}

type Escalator struct {
	cfg        Config
	reconciler llm.Reconciler
	logger     *slog.Logger
}

func New(cfg Config, reconciler llm.Reconciler, logger *slog.Logger) *Escalator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Escalator{cfg: cfg.withDefaults(), reconciler: reconciler, logger: logger}
}

// Run submits at most SampleLimit items for repair. It never fails: any error keeps the
// original items at the fallback confidence. The item count is never reduced.
func (e *Escalator) Run(ctx context.Context, in Input, tl *trace.Log) Result {
	n := min(len(in.Items), e.cfg.SampleLimit)
	tl.Info(ctx, "reconcile.start",
		fmt.Sprintf("Confidence %.2f below threshold, reconciling %d of %d items", in.Confidence, n, len(in.Items)),
		"submitted", n)

	fallback := func(reason string, args ...any) Result {
		metrics.Reconciliations.WithLabelValues("fallback").Inc()
		tl.Warn(ctx, "reconcile.fallback",
			fmt.Sprintf("Reconciliation failed (%s), keeping original items at confidence %.2f", reason, e.cfg.FallbackConfidence),
			args...)
		return Result{Items: in.Items, Confidence: e.cfg.FallbackConfidence}
	}
	if e.reconciler == nil {
		return fallback("no reconciler configured")
	}

	req := llm.ReconcileRequest{
		Filename:   in.Filename,
		Items:      entity.CloneItems(in.Items[:n]),
		SourceText: in.SourceText,
		TraceTail:  tl.Tail(e.cfg.TraceTail),
		Confidence: in.Confidence,
		Defaults:   in.Defaults,
	}
	switch in.Kind {
	case constants.KindImage:
		req.Images = []llm.Image{{Data: in.Data, MIME: in.MIMEType}}
	case constants.KindPDF:
		req.Images = in.Pages
		if len(in.Pages) == 0 {
			tl.Warn(ctx, "reconcile.pages.missing", "No rendered PDF pages, reconciling against extracted text only")
		}
	}

	out, err := e.reconciler.Reconcile(ctx, req)
	if err != nil {
		return fallback(err.Error(), "parse_error", llm.IsParseError(err))
	}
	if len(out.Items) != n {
		return fallback(fmt.Sprintf("returned %d items for %d submitted", len(out.Items), n))
	}

	items := make([]entity.LineItem, 0, len(in.Items))
	items = append(items, out.Items...)
	items = append(items, in.Items[n:]...)

	conf := e.cfg.DefaultConfidence
	if out.NewConfidence != nil {
		conf = entity.ClampConfidence(*out.NewConfidence)
	}

	for _, c := range out.Changes {
		tl.Info(ctx, "reconcile.change",
			fmt.Sprintf("Row %d %s: %q -> %q (%s)", c.RowIndex+1, c.Field, c.Before, c.After, c.Reason),
			"row", c.RowIndex, "field", c.Field)
	}
	metrics.Reconciliations.WithLabelValues("ok").Inc()
	tl.Info(ctx, "reconcile.ok",
		fmt.Sprintf("Reconciliation applied %d changes, confidence %.2f -> %.2f", len(out.Changes), in.Confidence, conf),
		"changes", len(out.Changes))

	return Result{Items: items, Changes: out.Changes, Confidence: conf, Applied: true}
}
