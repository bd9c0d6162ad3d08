// Package async drains document processing jobs on a fixed pool of workers.
package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/metrics"
)

// Job is one queued document run.
type Job struct {
	DocumentID  uuid.UUID
	Retry       bool
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// DocumentProcessor runs the pipeline for a stored document.
type DocumentProcessor interface {
	Process(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	Retry(ctx context.Context, id uuid.UUID) (*entity.Document, error)
}

type ProcessorQueue struct {
	proc    DocumentProcessor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

var _ Queue = (*ProcessorQueue)(nil)

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc DocumentProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 5 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.work(i + 1)
		}
	})
}

func (q *ProcessorQueue) work(workerID int) {
	defer q.wg.Done()
	q.logger.Info("queue.worker.started", "worker_id", workerID)

	for job := range q.ch {
		metrics.QueueLength.Dec()
		q.run(workerID, job)
	}

	q.logger.Info("queue.worker.stopped", "worker_id", workerID)
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := common.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	start := time.Now()
	var (
		doc *entity.Document
		err error
	)
	if job.Retry {
		doc, err = q.proc.Retry(ctx, job.DocumentID)
	} else {
		doc, err = q.proc.Process(ctx, job.DocumentID)
	}
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		q.logger.Error("queue.job.failed", "worker_id", workerID, "doc_id", job.DocumentID, "elapsed_ms", elapsed, "error", err)
		return
	}
	q.logger.Info("queue.job.ok", "worker_id", workerID, "doc_id", job.DocumentID, "status", doc.Status,
		"wait_ms", start.Sub(job.SubmittedAt).Milliseconds(), "elapsed_ms", elapsed)
}

// Enqueue blocks while the buffer is full until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "doc_id", job.DocumentID)
		return common.Errorf("QUEUE_CLOSED", common.ErrInternal, "queue is shutting down")
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue.full", "doc_id", job.DocumentID)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	metrics.QueueLength.Inc()
	q.logger.Info("queue.enqueued", "doc_id", job.DocumentID, "retry", job.Retry)
	return nil
}

// Shutdown stops accepting jobs and waits for queued ones to drain or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
