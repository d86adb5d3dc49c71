package workqueue

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// buildWorkItemSchema returns a JSON-Schema (draft 2020-12 subset) describing
// one work-queue line. Used for optional strict validation at load time.
func buildWorkItemSchema() map[string]any {
	message := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"role":    map[string]any{"type": "string", "enum": []string{"system", "user", "assistant"}},
			"content": map[string]any{"type": "string"},
		},
		"required": []string{"role", "content"},
	}
	payload := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"model":            map[string]any{"type": "string", "minLength": 1},
			"messages":         map[string]any{"type": "array", "items": message, "minItems": 1},
			"temperature":      map[string]any{"type": "number", "minimum": 0.0, "maximum": 2.0},
			"max_output_items": map[string]any{"type": "integer", "minimum": 1},
		},
		"required": []string{"model", "messages"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key":     map[string]any{"type": "string", "minLength": 1},
			"payload": payload,
		},
		"required": []string{"key", "payload"},
	}
}

// Validator validates raw work-queue lines against the work item schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the work item schema once for reuse across lines.
func NewValidator() (*Validator, error) {
	b, err := json.Marshal(buildWorkItemSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("workitem.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("workitem.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks one raw JSON line against the schema.
func (v *Validator) Validate(line []byte) error {
	var doc any
	if err := json.Unmarshal(line, &doc); err != nil {
		return fmt.Errorf("unmarshal line: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("line does not match schema: %w", err)
	}
	return nil
}
