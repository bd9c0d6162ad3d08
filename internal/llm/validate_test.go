package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStrictAcceptsFencedJSON(t *testing.T) {
	raw := []byte("```json\n{\"qualityScore\": 0.9, \"complexity\": \"LOW\", \"tableCount\": 2, \"detectedLanguage\": \"Swedish\"}\n```")
	var a Assessment
	require.NoError(t, DecodeStrict("assess", AssessmentSchema(), raw, &a))
	assert.Equal(t, 0.9, a.QualityScore)
	assert.Equal(t, 2, a.TableCount)
}

func TestDecodeStrictReturnsParseError(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "I could not read the document"},
		{"missing required", `{"qualityScore": 0.9}`},
		{"out of range", `{"qualityScore": 4, "complexity": "LOW", "tableCount": 1, "detectedLanguage": "sv"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Assessment
			err := DecodeStrict("assess", AssessmentSchema(), []byte(tt.raw), &a)
			require.Error(t, err)

			wrapped := fmt.Errorf("router: %w", err)
			var pe *ParseError
			require.True(t, errors.As(wrapped, &pe))
			assert.Equal(t, "assess", pe.Capability)
			assert.True(t, IsParseError(wrapped))
		})
	}
}

func TestParseAssessmentLenient(t *testing.T) {
	a := ParseAssessmentLenient([]byte(`{"qualityScore": "0.55", "complexity": "high", "hasHandwriting": true}`))
	assert.Equal(t, 0.55, a.QualityScore)
	assert.Equal(t, "HIGH", a.Complexity)
	assert.Equal(t, DefaultTableCount, a.TableCount)
	assert.Equal(t, DefaultLanguage, a.DetectedLanguage)
	assert.True(t, a.HasHandwriting)

	d := ParseAssessmentLenient([]byte("garbage"))
	assert.Equal(t, DefaultQualityScore, d.QualityScore)
	assert.Equal(t, DefaultComplexity, d.Complexity)
}

func TestBudgetDisabled(t *testing.T) {
	b := NewBudget(0, nil)
	out, cut := b.Fit("some long text", 10)
	assert.False(t, cut)
	assert.Equal(t, "some long text", out)
	assert.Equal(t, 2, b.Count("abcdefgh"))
}
