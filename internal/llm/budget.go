package llm

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Budget counts prompt tokens and trims text to a token limit. A zero limit disables
// trimming and counting falls back to a 4-chars-per-token estimate.
type Budget struct {
	Limit int

	once   sync.Once
	enc    *tiktoken.Tiktoken
	logger *slog.Logger
}

func NewBudget(limit int, logger *slog.Logger) *Budget {
	if logger == nil {
		logger = slog.Default()
	}
	return &Budget{Limit: limit, logger: logger}
}

func (b *Budget) encoding() *tiktoken.Tiktoken {
	if b == nil || b.Limit <= 0 {
		return nil
	}
	b.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			b.logger.Warn("llm.budget.encoding_unavailable", "error", err)
			return
		}
		b.enc = enc
	})
	return b.enc
}

// Count returns the token count of text.
func (b *Budget) Count(text string) int {
	if enc := b.encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

// Fit trims text so that it plus reserved tokens stays under the limit.
func (b *Budget) Fit(text string, reserved int) (string, bool) {
	if b == nil || b.Limit <= 0 {
		return text, false
	}
	room := b.Limit - reserved
	if room <= 0 {
		return "", text != ""
	}
	if enc := b.encoding(); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		if len(tokens) <= room {
			return text, false
		}
		return enc.Decode(tokens[:room]), true
	}
	if maxChars := room * 4; len(text) > maxChars {
		return strings.ToValidUTF8(text[:maxChars], ""), true
	}
	return text, false
}
