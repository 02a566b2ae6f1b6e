package fields

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Schema is the output contract for an ordered set of fields.
type Schema struct {
	specs []FieldSpec
}

func (s *Schema) Keys() []string {
	keys := make([]string, len(s.specs))
	for i, f := range s.specs {
		keys[i] = f.Key
	}
	return keys
}

func (s *Schema) Specs() []FieldSpec {
	return append([]FieldSpec(nil), s.specs...)
}

// JSON returns a JSON-schema object in which every field is required and
// nullable and no other keys are allowed.
func (s *Schema) JSON() map[string]any {
	props := make(map[string]any, len(s.specs))
	required := make([]string, 0, len(s.specs))
	for _, f := range s.specs {
		props[f.Key] = f.Domain.JSONSchema()
		required = append(required, f.Key)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// Decode parses a generator response. A response that is not a JSON object
// wraps ErrMalformedOutput. Missing, unexpected or out-of-domain keys produce
// a *SchemaViolationError whose Partial holds every valid key.
func (s *Schema) Decode(raw []byte) (Result, error) {
	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedOutput)
	}
	return s.Coerce(obj)
}

// Coerce validates an already-decoded object against the schema.
func (s *Schema) Coerce(obj map[string]any) (Result, error) {
	out := make(Result, len(s.specs))
	var violations []*ViolationError
	known := make(map[string]bool, len(s.specs))
	for _, f := range s.specs {
		known[f.Key] = true
		raw, ok := obj[f.Key]
		if !ok {
			out[f.Key] = Null()
			violations = append(violations, &ViolationError{Key: f.Key, Reason: "missing key"})
			continue
		}
		v, err := f.Coerce(raw)
		if err != nil {
			out[f.Key] = Null()
			violations = append(violations, err.(*ViolationError))
			continue
		}
		out[f.Key] = v
	}
	var extra []string
	for k := range obj {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		violations = append(violations, &ViolationError{Key: k, Reason: "unexpected key"})
	}
	if len(violations) > 0 {
		return out, &SchemaViolationError{Partial: out, Violations: violations}
	}
	return out, nil
}
