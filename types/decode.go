package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SchemaError reports stage output that failed to parse or validate against
// its declared schema. The raw text is retained so a failed run can explain
// what the model actually produced.
type SchemaError struct {
	Schema  string
	RawText string
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("output does not conform to %s schema: %v", e.Schema, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// ExtractJSON strips markdown fences and surrounding prose, leaving the first
// top-level JSON object found in raw. Models fence their JSON often enough
// that rejecting fenced output would burn retries for nothing.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(s[start : end+1])
}

func decodeStrict(raw string, schema string, v interface{}) *SchemaError {
	cleaned := ExtractJSON(raw)
	if cleaned == "" {
		return &SchemaError{Schema: schema, RawText: raw, Err: fmt.Errorf("no JSON object found")}
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	if err := dec.Decode(v); err != nil {
		return &SchemaError{Schema: schema, RawText: raw, Err: err}
	}
	return nil
}

// The Decode functions parse and normalize only. Semantic validation happens
// in the stages, after authoritative fields from earlier stages have been
// written over whatever the model produced.

func DecodeStructuredPatient(raw string) (StructuredPatient, error) {
	var p StructuredPatient
	if serr := decodeStrict(raw, "StructuredPatient", &p); serr != nil {
		return StructuredPatient{}, serr
	}
	return p, nil
}

func DecodeClinicalProfile(raw string) (ClinicalProfile, error) {
	var p ClinicalProfile
	if serr := decodeStrict(raw, "ClinicalProfile", &p); serr != nil {
		return ClinicalProfile{}, serr
	}
	p.Normalize()
	return p, nil
}

func DecodeClinicalAssessment(raw string) (ClinicalAssessment, error) {
	var a ClinicalAssessment
	if serr := decodeStrict(raw, "ClinicalAssessment", &a); serr != nil {
		return ClinicalAssessment{}, serr
	}
	a.Normalize()
	return a, nil
}
