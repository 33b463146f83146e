package review

// ReviewSchema is the JSON schema for chapter review output.
var ReviewSchema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "chapter_review",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"score": map[string]any{
					"type":        "number",
					"minimum":     0,
					"maximum":     1,
					"description": "Quality score in [0,1]; 0.7 is the acceptance bar",
				},
				"strengths": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "What works in the draft",
				},
				"improvements": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Actionable revision notes. Empty array if none.",
				},
			},
			"required":             []string{"score", "strengths", "improvements"},
			"additionalProperties": false,
		},
	},
}

// Result represents the parsed result from a review LLM call.
type Result struct {
	Score        float64  `json:"score"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}
