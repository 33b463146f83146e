package providers

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseStructuredJSONPlain(t *testing.T) {
	got, err := parseStructuredJSON(`{"score": 0.8}`)
	if err != nil {
		t.Fatalf("parseStructuredJSON() error = %v", err)
	}
	if !strings.Contains(string(got), "0.8") {
		t.Errorf("parsed = %s, want score preserved", got)
	}
}

func TestParseStructuredJSONCodeFence(t *testing.T) {
	input := "```json\n{\"score\": 0.5}\n```"
	got, err := parseStructuredJSON(input)
	if err != nil {
		t.Fatalf("parseStructuredJSON() error = %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(got, &doc); err != nil {
		t.Fatalf("result not valid JSON: %v", err)
	}
	if doc["score"] != 0.5 {
		t.Errorf("score = %v, want 0.5", doc["score"])
	}
}

func TestParseStructuredJSONSurroundingProse(t *testing.T) {
	input := `Here is the review you asked for: {"score": 0.9, "improvements": []} Hope it helps!`
	got, err := parseStructuredJSON(input)
	if err != nil {
		t.Fatalf("parseStructuredJSON() error = %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(got, &doc); err != nil {
		t.Fatalf("result not valid JSON: %v", err)
	}
	if doc["score"] != 0.9 {
		t.Errorf("score = %v, want 0.9", doc["score"])
	}
}

func TestParseStructuredJSONEmpty(t *testing.T) {
	if _, err := parseStructuredJSON("   "); err == nil {
		t.Error("parseStructuredJSON() = nil error, want failure on empty input")
	}
}

func TestParseStructuredJSONGarbage(t *testing.T) {
	if _, err := parseStructuredJSON("not json at all"); err == nil {
		t.Error("parseStructuredJSON() = nil error, want failure")
	}
}

const reviewSchema = `{
	"name": "review",
	"schema": {
		"type": "object",
		"properties": {
			"score": {"type": "number"},
			"improvements": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["score"]
	}
}`

func TestValidateStructuredJSONValid(t *testing.T) {
	parsed := json.RawMessage(`{"score": 0.7, "improvements": ["tighten pacing"]}`)
	if err := validateStructuredJSON(json.RawMessage(reviewSchema), parsed); err != nil {
		t.Errorf("validateStructuredJSON() = %v, want nil", err)
	}
}

func TestValidateStructuredJSONInvalid(t *testing.T) {
	parsed := json.RawMessage(`{"improvements": "not an array"}`)
	if err := validateStructuredJSON(json.RawMessage(reviewSchema), parsed); err == nil {
		t.Error("validateStructuredJSON() = nil, want validation failure")
	}
}

func TestExtractValidationSchemaWrapped(t *testing.T) {
	wrapped := json.RawMessage(`{"type": "json_schema", "json_schema": {"schema": {"type": "object"}}}`)
	got, err := extractValidationSchema(wrapped)
	if err != nil {
		t.Fatalf("extractValidationSchema() error = %v", err)
	}
	if string(got) != `{"type":"object"}` {
		t.Errorf("extracted = %s, want inner schema", got)
	}
}
