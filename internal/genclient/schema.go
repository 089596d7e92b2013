package genclient

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled JSON-Schema the typed completion path validates
// generation output against before unmarshalling.
type Schema struct {
	compiled *jsonschema.Schema
	raw      map[string]any
}

// MustCompileSchema compiles a JSON-Schema document given as a map and panics
// on failure. Intended for package-level schema variables, where a compile
// failure is a programming error.
func MustCompileSchema(schemaMap map[string]any) *Schema {
	s, err := CompileSchema(schemaMap)
	if err != nil {
		panic(err)
	}
	return s
}

// CompileSchema compiles a JSON-Schema document given as a map.
func CompileSchema(schemaMap map[string]any) (*Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{compiled: compiled, raw: schemaMap}, nil
}

// Validate checks data against the compiled schema.
func (s *Schema) Validate(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// Describe returns the schema document as indented JSON for embedding in
// instructions, so the model sees the exact contract it must satisfy.
func (s *Schema) Describe() string {
	b, err := json.MarshalIndent(s.raw, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
