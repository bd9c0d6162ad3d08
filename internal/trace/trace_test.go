package trace

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRecordsLinesAndMirrorsToSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	clock := func() time.Time { return time.Date(2024, 1, 2, 9, 5, 7, 0, time.UTC) }

	l := New(logger).WithClock(clock)
	l.Info(context.Background(), "pipeline.start", "Processing report.xlsx", "doc_id", "d1")
	l.Warn(context.Background(), "pipeline.chunk.partial", "Chunk 2 returned 18 of 25 rows")

	require.Equal(t, 2, l.Len())
	assert.Equal(t, "[09:05:07] Processing report.xlsx", l.Lines()[0])
	assert.Contains(t, buf.String(), "pipeline.chunk.partial")
	assert.Contains(t, buf.String(), "doc_id=d1")
}

func TestTail(t *testing.T) {
	l := New(nil)
	for i := 0; i < 5; i++ {
		l.Info(context.Background(), "x", "line")
	}
	assert.Len(t, l.Tail(3), 3)
	assert.Len(t, l.Tail(20), 5)
	assert.Nil(t, l.Tail(0))

	lines := l.Lines()
	lines[0] = "mutated"
	assert.NotEqual(t, "mutated", l.Lines()[0])
}
