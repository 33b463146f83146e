package chapter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soulscribe/soulscribe/internal/providers"
)

// Input contains the data needed to build a chapter drafting request.
type Input struct {
	ChapterNumber int
	Title         string
	Plan          string  // Chapter plan from the outline
	ContextText   string  // Premise plus completed chapter summaries
	Complexity    float64 // [0,1], scales temperature and token budget

	// SystemPromptOverride allows using a story-level prompt override.
	// If empty, uses the embedded default.
	SystemPromptOverride string
}

// Temperature and token budget scale with declared chapter complexity so
// pivotal chapters get more room than transitional ones.
const (
	baseTemperature = 0.6
	tempSpread      = 0.3
	baseMaxTokens   = 4096
	maxTokenSpread  = 4096
)

// BuildRequest creates the chat request for drafting one chapter.
func BuildRequest(input Input) *providers.ChatRequest {
	systemPrompt := input.SystemPromptOverride
	if systemPrompt == "" {
		systemPrompt = SystemPrompt()
	}

	complexity := input.Complexity
	if complexity < 0 {
		complexity = 0
	}
	if complexity > 1 {
		complexity = 1
	}

	return &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(input)},
		},
		ResponseFormat: buildResponseFormat(),
		Temperature:    baseTemperature + tempSpread*complexity,
		MaxTokens:      baseMaxTokens + int(maxTokenSpread*complexity),
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
	if result.Content == "" {
		return nil, fmt.Errorf("chapter draft has empty content")
	}
	return &result, nil
}

func buildResponseFormat() *providers.ResponseFormat {
	jsonSchema, _ := json.Marshal(DraftSchema["json_schema"])
	return &providers.ResponseFormat{
		Type:       "json_schema",
		JSONSchema: jsonSchema,
	}
}

// buildUserPrompt constructs the user prompt from the chapter plan and
// accumulated context.
func buildUserPrompt(input Input) string {
	var b strings.Builder

	if input.ContextText != "" {
		fmt.Fprintf(&b, "<story_context>\n%s\n</story_context>\n\n", input.ContextText)
	}

	fmt.Fprintf(&b, "Write chapter %d", input.ChapterNumber)
	if input.Title != "" {
		fmt.Fprintf(&b, ": %q", input.Title)
	}
	b.WriteString(".\n")

	if input.Plan != "" {
		fmt.Fprintf(&b, "\n<chapter_plan>\n%s\n</chapter_plan>\n", input.Plan)
	}

	return b.String()
}
