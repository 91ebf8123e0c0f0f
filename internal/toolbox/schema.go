package toolbox

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
)

// Strict returns a copy of s rewritten for strict-mode function calling:
// every object-typed node, recursively (including inside items, anyOf,
// oneOf, allOf), gets additionalProperties forced to false and its
// required array set to the full property key set. Strict providers
// reject object schemas whose required list is partial.
//
// The transform is pure (s is never mutated) and idempotent.
func Strict(s *jsonschema.Schema) (*jsonschema.Schema, error) {
	if s == nil {
		return nil, nil
	}

	clone, err := cloneSchema(s)
	if err != nil {
		return nil, err
	}
	strictInPlace(clone)
	return clone, nil
}

// cloneSchema deep-copies a schema through its JSON form.
func cloneSchema(s *jsonschema.Schema) (*jsonschema.Schema, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var clone jsonschema.Schema
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	return &clone, nil
}

func strictInPlace(s *jsonschema.Schema) {
	if s == nil {
		return
	}

	if isObjectSchema(s) {
		// &Schema{Not: &Schema{}} is the jsonschema-go representation of
		// the boolean schema false.
		s.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}

		required := make([]string, 0, len(s.Properties))
		for name := range s.Properties {
			required = append(required, name)
		}
		slices.Sort(required)
		s.Required = required
	}

	for _, prop := range s.Properties {
		strictInPlace(prop)
	}
	strictInPlace(s.Items)
	for _, sub := range s.AnyOf {
		strictInPlace(sub)
	}
	for _, sub := range s.OneOf {
		strictInPlace(sub)
	}
	for _, sub := range s.AllOf {
		strictInPlace(sub)
	}
}

// isObjectSchema reports whether the node declares or implies an object.
func isObjectSchema(s *jsonschema.Schema) bool {
	if s.Type == "object" || slices.Contains(s.Types, "object") {
		return true
	}
	return len(s.Properties) > 0
}
