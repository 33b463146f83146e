package review

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soulscribe/soulscribe/internal/providers"
)

// Input contains the data needed to build a review request.
type Input struct {
	ChapterNumber int
	Title         string
	Content       string // Draft text to score
	ContextText   string // Story context the draft was written against

	// SystemPromptOverride allows using a story-level prompt override.
	// If empty, uses the embedded default.
	SystemPromptOverride string
}

// BuildRequest creates the chat request for scoring one chapter draft.
// Review runs cold so repeated scoring of the same draft stays stable.
func BuildRequest(input Input) *providers.ChatRequest {
	systemPrompt := input.SystemPromptOverride
	if systemPrompt == "" {
		systemPrompt = SystemPrompt()
	}

	return &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(input)},
		},
		ResponseFormat: buildResponseFormat(),
		Temperature:    0.1,
		MaxTokens:      2048,
	}
}

// ParseResult parses the LLM response into a Result.
func ParseResult(parsedJSON any) (*Result, error) {
	jsonBytes, err := json.Marshal(parsedJSON)
	if err != nil {
		return nil, err
	}
	var result Result
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return nil, err
	}
	if result.Score < 0 || result.Score > 1 {
		return nil, fmt.Errorf("review score %v outside [0,1]", result.Score)
	}
	return &result, nil
}

func buildResponseFormat() *providers.ResponseFormat {
	jsonSchema, _ := json.Marshal(ReviewSchema["json_schema"])
	return &providers.ResponseFormat{
		Type:       "json_schema",
		JSONSchema: jsonSchema,
	}
}

func buildUserPrompt(input Input) string {
	var b strings.Builder

	if input.ContextText != "" {
		fmt.Fprintf(&b, "<story_context>\n%s\n</story_context>\n\n", input.ContextText)
	}

	fmt.Fprintf(&b, "Score chapter %d", input.ChapterNumber)
	if input.Title != "" {
		fmt.Fprintf(&b, " (%q)", input.Title)
	}
	b.WriteString(":\n\n")
	fmt.Fprintf(&b, "<draft>\n%s\n</draft>", input.Content)

	return b.String()
}
