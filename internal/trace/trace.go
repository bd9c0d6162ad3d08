// Package trace collects the human-readable processing log of a single pipeline run.
package trace

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Log is an append-only event sink owned by one pipeline run. It is not safe for
// concurrent writers; concurrent stages report back to the owning goroutine.
type Log struct {
	logger *slog.Logger
	now    func() time.Time
	lines  []string
}

// New returns a Log that mirrors every event to logger.
func New(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger, now: time.Now}
}

// WithClock replaces the timestamp source.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

// Event records msg at level. event is the dotted slog message; msg is the line kept in the record.
func (l *Log) Event(ctx context.Context, level slog.Level, event, msg string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf("[%s] %s", l.now().Format("15:04:05"), msg))
	l.logger.Log(ctx, level, event, append(args, "line", msg)...)
}

func (l *Log) Info(ctx context.Context, event, msg string, args ...any) {
	l.Event(ctx, slog.LevelInfo, event, msg, args...)
}

func (l *Log) Warn(ctx context.Context, event, msg string, args ...any) {
	l.Event(ctx, slog.LevelWarn, event, msg, args...)
}

func (l *Log) Error(ctx context.Context, event, msg string, args ...any) {
	l.Event(ctx, slog.LevelError, event, msg, args...)
}

// Lines returns a copy of every line recorded so far.
func (l *Log) Lines() []string {
	return append([]string(nil), l.lines...)
}

// Tail returns the last n lines.
func (l *Log) Tail(n int) []string {
	if n <= 0 {
		return nil
	}
	if n > len(l.lines) {
		n = len(l.lines)
	}
	return append([]string(nil), l.lines[len(l.lines)-n:]...)
}

// Len reports how many lines were recorded.
func (l *Log) Len() int { return len(l.lines) }
