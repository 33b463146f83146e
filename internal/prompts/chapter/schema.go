package chapter

// DraftSchema is the JSON schema for chapter draft output.
var DraftSchema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "chapter_draft",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Chapter title",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Full chapter prose",
				},
				"summary": map[string]any{
					"type":        "string",
					"description": "2-4 sentence summary of events and state changes for later chapters",
				},
			},
			"required":             []string{"title", "content", "summary"},
			"additionalProperties": false,
		},
	},
}

// Result represents the parsed result from a chapter drafting LLM call.
type Result struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Summary string `json:"summary"`
}
