package llm

// JSON-Schema (draft 2020-12 subset) documents for every capability response.
// They are sent with the prompt and used locally to validate the reply.

func confidenceProp() map[string]any {
	return map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}
}

// itemsProp accepts wrapped {"value","confidence"} or bare field values.
func itemsProp() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "object"},
	}
}

func AssessmentSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"qualityScore":     confidenceProp(),
			"complexity":       map[string]any{"type": "string", "enum": []string{"LOW", "MEDIUM", "HIGH"}},
			"tableCount":       map[string]any{"type": "integer", "minimum": 0},
			"hasHandwriting":   map[string]any{"type": "boolean"},
			"hasMergedCells":   map[string]any{"type": "boolean"},
			"detectedLanguage": map[string]any{"type": "string", "minLength": 1},
			"reasoning":        map[string]any{"type": "string"},
		},
		"required": []string{"qualityScore", "complexity", "tableCount", "detectedLanguage"},
	}
}

func ColumnMappingSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"columns":    map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
			"language":   map[string]any{"type": "string"},
			"confidence": confidenceProp(),
			"notes":      map[string]any{"type": "string"},
		},
		"required": []string{"columns", "confidence"},
	}
}

func ChunkSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"items": itemsProp()},
		"required":   []string{"items"},
	}
}

func DocumentSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": itemsProp(),
			"document": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"date":     map[string]any{"type": "string"},
					"supplier": map[string]any{"type": "string"},
					"address":  map[string]any{"type": "string"},
					"receiver": map[string]any{"type": "string"},
				},
			},
			"language": map[string]any{"type": "string"},
		},
		"required": []string{"items"},
	}
}

func ReconcileSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": itemsProp(),
			"changes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"rowIndex": map[string]any{"type": "integer", "minimum": 0},
						"field":    map[string]any{"type": "string"},
						"before":   map[string]any{"type": "string"},
						"after":    map[string]any{"type": "string"},
						"reason":   map[string]any{"type": "string"},
					},
					"required": []string{"rowIndex", "field"},
				},
			},
			"newConfidence": confidenceProp(),
		},
		"required": []string{"items"},
	}
}

func VerifySchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"issues": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"rowIndex":   map[string]any{"type": "integer", "minimum": 0},
						"field":      map[string]any{"type": "string", "minLength": 1},
						"issue":      map[string]any{"type": "string", "minLength": 1},
						"severity":   map[string]any{"type": "string", "enum": []string{"warning", "error"}},
						"suggestion": map[string]any{"type": "string"},
					},
					"required": []string{"rowIndex", "field", "issue", "severity"},
				},
			},
			"confidence": confidenceProp(),
		},
		"required": []string{"issues"},
	}
}
