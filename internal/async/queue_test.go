package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
)

type recordingProcessor struct {
	mu        sync.Mutex
	processed []uuid.UUID
	retried   []uuid.UUID
	deadline  bool
	delay     time.Duration
	fail      bool
}

func (p *recordingProcessor) Process(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	return p.record(ctx, id, &p.processed)
}

func (p *recordingProcessor) Retry(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	return p.record(ctx, id, &p.retried)
}

func (p *recordingProcessor) record(ctx context.Context, id uuid.UUID, into *[]uuid.UUID) (*entity.Document, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	*into = append(*into, id)
	if _, ok := ctx.Deadline(); ok {
		p.deadline = true
	}
	if p.fail {
		return nil, errors.New("boom")
	}
	return &entity.Document{ID: id, Status: constants.DocumentApproved}, nil
}

func TestQueueDrainsAllJobs(t *testing.T) {
	proc := &recordingProcessor{}
	q := NewProcessorQueue(proc, nil, WithWorkers(3), WithQueueSize(2), WithProcessTimeout(time.Second))

	var ids []uuid.UUID
	for i := 0; i < 10; i++ {
		id := uuid.New()
		ids = append(ids, id)
		require.NoError(t, q.Enqueue(context.Background(), Job{DocumentID: id, Retry: i%5 == 0}))
	}
	q.Shutdown(context.Background())

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Len(t, proc.processed, 8)
	assert.Len(t, proc.retried, 2)
	assert.ElementsMatch(t, ids, append(append([]uuid.UUID{}, proc.processed...), proc.retried...))
	assert.True(t, proc.deadline)
}

func TestQueueFailuresDoNotStopWorkers(t *testing.T) {
	proc := &recordingProcessor{fail: true}
	q := NewProcessorQueue(proc, nil, WithWorkers(1))
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Job{DocumentID: uuid.New()}))
	}
	q.Shutdown(context.Background())
	assert.Len(t, proc.processed, 3)
}

func TestEnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&recordingProcessor{}, nil, WithWorkers(1))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{DocumentID: uuid.New()})
	assert.ErrorIs(t, err, common.ErrInternal)
}

func TestEnqueueFullQueueHonoursContext(t *testing.T) {
	proc := &recordingProcessor{delay: 200 * time.Millisecond}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))
	t.Cleanup(func() { q.Shutdown(context.Background()) })

	require.NoError(t, q.Enqueue(context.Background(), Job{DocumentID: uuid.New()}))
	require.NoError(t, q.Enqueue(context.Background(), Job{DocumentID: uuid.New()}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = q.Enqueue(ctx, Job{DocumentID: uuid.New()})
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
