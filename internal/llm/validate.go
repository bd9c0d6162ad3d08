package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ParseError reports a capability reply that failed strict decoding.
// Raw keeps the cleaned payload so callers can attempt a lenient parse.
type ParseError struct {
	Capability string
	Reason     string
	Raw        []byte
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: unparsable response: %s", e.Capability, e.Reason)
}

// IsParseError reports whether err carries a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

var compiled sync.Map // schema name -> *jsonschema.Schema

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	if s, ok := compiled.Load(name); ok {
		return s.(*jsonschema.Schema), nil
	}
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name+".json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name + ".json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	compiled.Store(name, schema)
	return schema, nil
}

// ValidateJSONAgainstSchema validates data against the named schema.
func ValidateJSONAgainstSchema(name string, schemaMap map[string]any, data []byte) error {
	schema, err := compileSchema(name, schemaMap)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// CleanJSON strips markdown fences and any prose around the outermost JSON object.
func CleanJSON(raw []byte) []byte {
	s := bytes.TrimSpace(raw)
	if bytes.HasPrefix(s, []byte("```")) {
		if i := bytes.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = bytes.TrimSuffix(bytes.TrimSpace(s), []byte("```"))
	}
	start := bytes.IndexByte(s, '{')
	end := bytes.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return bytes.TrimSpace(s)
}

// DecodeStrict cleans raw, validates it against the schema and unmarshals into out.
// Any failure is a *ParseError.
func DecodeStrict(capability string, schemaMap map[string]any, raw []byte, out any) error {
	cleaned := CleanJSON(raw)
	if len(cleaned) == 0 {
		return &ParseError{Capability: capability, Reason: "empty response", Raw: cleaned}
	}
	if err := ValidateJSONAgainstSchema(capability, schemaMap, cleaned); err != nil {
		return &ParseError{Capability: capability, Reason: err.Error(), Raw: cleaned}
	}
	if err := json.Unmarshal(cleaned, out); err != nil {
		return &ParseError{Capability: capability, Reason: err.Error(), Raw: cleaned}
	}
	return nil
}
