package entity

import (
	"bytes"
	"encoding/json"
	"math"
)

// ConfidenceField pairs an extracted value with a [0,1] reliability score.
type ConfidenceField[T any] struct {
	Value      T       `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Field builds a ConfidenceField with a clamped confidence.
func Field[T any](value T, confidence float64) ConfidenceField[T] {
	return ConfidenceField[T]{Value: value, Confidence: ClampConfidence(confidence)}
}

// ClampConfidence forces c into [0,1]; NaN becomes 0.
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// UnmarshalJSON accepts the wrapped {"value","confidence"} form or a bare value.
// A bare value, or a wrapper without confidence, gets confidence 0.
func (f *ConfidenceField[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err == nil {
			if raw, ok := probe["value"]; ok {
				var out ConfidenceField[T]
				if err := json.Unmarshal(raw, &out.Value); err != nil {
					return err
				}
				if c, ok := probe["confidence"]; ok {
					_ = json.Unmarshal(c, &out.Confidence)
				}
				out.Confidence = ClampConfidence(out.Confidence)
				*f = out
				return nil
			}
		}
	}
	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	*f = ConfidenceField[T]{Value: v}
	return nil
}
