// Package verify checks every extracted item against the source in fixed-size batches and
// penalizes the run confidence for each distinct error it finds.
package verify

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/llm"
	"github.com/joseph-ayodele/waste-pipeline/internal/metrics"
	"github.com/joseph-ayodele/waste-pipeline/internal/ocr"
	"github.com/joseph-ayodele/waste-pipeline/internal/trace"
)

const (
	DefaultBatchSize          = 25
	DefaultExcerptChars       = 10000
	DefaultFallbackConfidence = 0.80
	DefaultMissingConfidence  = 0.9
	DefaultPassConfidence     = 0.70
	DefaultErrorPenalty       = 0.05
	DefaultConfidenceFloor    = 0.50
)

type Config struct {
	BatchSize          int
	ExcerptChars       int
	FallbackConfidence float64 // batch confidence when the call fails
	MissingConfidence  float64 // batch confidence when the verifier omits it
	PassConfidence     float64
	ErrorPenalty       float64
	ConfidenceFloor    float64
	Concurrency        int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.ExcerptChars <= 0 {
		c.ExcerptChars = DefaultExcerptChars
	}
	if c.FallbackConfidence <= 0 {
		c.FallbackConfidence = DefaultFallbackConfidence
	}
	if c.MissingConfidence <= 0 {
		c.MissingConfidence = DefaultMissingConfidence
	}
	if c.PassConfidence <= 0 {
		c.PassConfidence = DefaultPassConfidence
	}
	if c.ErrorPenalty < 0 {
		c.ErrorPenalty = 0
	} else if c.ErrorPenalty == 0 {
		c.ErrorPenalty = DefaultErrorPenalty
	}
	if c.ConfidenceFloor <= 0 {
		c.ConfidenceFloor = DefaultConfidenceFloor
	}
	return c
}

type Input struct {
	Filename   string
	Items      []entity.LineItem
	SourceText string
	Confidence float64
}

type Result struct {
	Items          []entity.LineItem // same length and order as the input, issues attached
	Issues         []entity.VerificationIssue
	ErrorCount     int // distinct error-severity issues
	Passed         bool
	AvgConfidence  float64
	Confidence     float64 // input confidence after the error penalty
	Batches        int
	BatchesFailed  int
	ExcerptTrimmed bool
}

type Verifier struct {
	cfg      Config
	verifier llm.Verifier
	logger   *slog.Logger
}

func New(cfg Config, verifier llm.Verifier, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{cfg: cfg.withDefaults(), verifier: verifier, logger: logger}
}

type batchOutcome struct {
	first, last int
	issues      []entity.VerificationIssue // already global
	confidence  float64
	err         error
}

type issueKey struct {
	row   int
	field string
	issue string
}

// Run verifies all items. Batch failures lower the average but never abort the run.
func (v *Verifier) Run(ctx context.Context, in Input, tl *trace.Log) Result {
	items := entity.CloneItems(in.Items)
	res := Result{Items: items, Confidence: entity.ClampConfidence(in.Confidence)}
	if len(items) == 0 {
		tl.Warn(ctx, "verify.empty", "Nothing to verify")
		return res
	}

	excerpt, cut := ocr.Truncate(in.SourceText, v.cfg.ExcerptChars)
	res.ExcerptTrimmed = cut

	size := v.cfg.BatchSize
	n := (len(items) + size - 1) / size
	res.Batches = n
	tl.Info(ctx, "verify.start", fmt.Sprintf("Verifying %d items in %d batches", len(items), n), "batches", n)

	outcomes := make([]batchOutcome, n)
	run := func(b int) {
		start := b * size
		end := min(start+size, len(items))
		o := batchOutcome{first: start, last: end}
		if v.verifier == nil {
			o.err = fmt.Errorf("no verifier configured")
			outcomes[b] = o
			return
		}
		out, err := v.verifier.VerifyBatch(ctx, llm.VerifyRequest{
			Filename:      in.Filename,
			Items:         entity.CloneItems(items[start:end]),
			SourceExcerpt: excerpt,
			Batch:         b + 1,
			Batches:       n,
			FirstRow:      start,
		})
		if err != nil {
			o.err = err
			outcomes[b] = o
			return
		}
		o.confidence = v.cfg.MissingConfidence
		if out.Confidence != nil {
			o.confidence = entity.ClampConfidence(*out.Confidence)
		}
		for _, is := range out.Issues {
			is.RowIndex += start
			if is.Severity != entity.SeverityError {
				is.Severity = entity.SeverityWarning
			}
			o.issues = append(o.issues, is)
		}
		outcomes[b] = o
	}

	if v.cfg.Concurrency <= 1 {
		for b := 0; b < n; b++ {
			run(b)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(v.cfg.Concurrency)
		for b := 0; b < n; b++ {
			g.Go(func() error {
				run(b)
				return nil
			})
		}
		_ = g.Wait()
	}

	seen := make(map[issueKey]struct{})
	var sum float64
	for b, o := range outcomes {
		if o.err != nil {
			res.BatchesFailed++
			sum += v.cfg.FallbackConfidence
			tl.Warn(ctx, "verify.batch.failed",
				fmt.Sprintf("Verification batch %d/%d (rows %d-%d) failed: %v", b+1, n, o.first+1, o.last, o.err),
				"batch", b+1, "parse_error", llm.IsParseError(o.err))
			continue
		}
		sum += o.confidence
		for _, is := range o.issues {
			k := issueKey{is.RowIndex, is.Field, is.Issue}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			metrics.VerificationIssues.WithLabelValues(string(is.Severity)).Inc()
			if is.Severity == entity.SeverityError {
				res.ErrorCount++
			}
			res.Issues = append(res.Issues, is)
			if is.RowIndex >= 0 && is.RowIndex < len(items) {
				items[is.RowIndex].VerificationIssues = append(items[is.RowIndex].VerificationIssues, is)
			} else {
				tl.Warn(ctx, "verify.issue.unmatched",
					fmt.Sprintf("Verifier reported row %d which does not exist", is.RowIndex+1), "row", is.RowIndex)
			}
		}
		tl.Info(ctx, "verify.batch.ok",
			fmt.Sprintf("Verification batch %d/%d: %d issues, confidence %.2f", b+1, n, len(o.issues), o.confidence),
			"batch", b+1)
	}

	res.AvgConfidence = sum / float64(n)
	res.Passed = res.ErrorCount == 0 && res.AvgConfidence >= v.cfg.PassConfidence
	res.Confidence = Penalize(in.Confidence, res.ErrorCount, v.cfg.ErrorPenalty, v.cfg.ConfidenceFloor)

	verdict := "passed"
	if !res.Passed {
		verdict = "failed"
	}
	tl.Info(ctx, "verify.done",
		fmt.Sprintf("Verification %s: %d issues (%d errors), avg confidence %.2f, confidence %.2f -> %.2f",
			verdict, len(res.Issues), res.ErrorCount, res.AvgConfidence, in.Confidence, res.Confidence),
		"passed", res.Passed, "errors", res.ErrorCount)
	return res
}

// Penalize subtracts penalty per error and never returns less than floor.
func Penalize(confidence float64, errCount int, penalty, floor float64) float64 {
	return max(floor, entity.ClampConfidence(confidence)-penalty*float64(errCount))
}
