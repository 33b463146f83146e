package chapter

import (
	_ "embed"

	"github.com/soulscribe/soulscribe/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

// SystemPrompt returns the system prompt for chapter drafting.
func SystemPrompt() string {
	return systemPrompt
}

// PromptKey is the hierarchical key for this prompt.
const PromptKey = "stages.chapter.system"

// RegisterPrompts registers the chapter prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         PromptKey,
		Text:        systemPrompt,
		Description: "Chapter drafting system prompt - writes one chapter from the premise, chapter plan, and completed chapter summaries",
	})
}
