package review

import (
	_ "embed"

	"github.com/soulscribe/soulscribe/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

// SystemPrompt returns the system prompt for chapter review.
func SystemPrompt() string {
	return systemPrompt
}

// PromptKey is the hierarchical key for this prompt.
const PromptKey = "stages.review.system"

// RegisterPrompts registers the review prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         PromptKey,
		Text:        systemPrompt,
		Description: "Chapter review system prompt - scores a draft against the story context and produces revision notes",
	})
}
