// Package storygen connects the chapter scheduler to the LLM provider layer.
// It implements the scheduler's Generator and Scorer over providers.LLMClient
// using the chapter and review prompt stages.
package storygen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/soulscribe/soulscribe/internal/prompts"
	"github.com/soulscribe/soulscribe/internal/prompts/chapter"
	"github.com/soulscribe/soulscribe/internal/providers"
	"github.com/soulscribe/soulscribe/internal/scheduler"
)

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	Model    string            // Model override; empty uses the client default
	StoryID  string            // For prompt override resolution and logging
	Plans    map[int]string    // Chapter plans from the outline, keyed by chapter number
	Resolver *prompts.Resolver // Optional; enables story-level prompt overrides
	Logger   *slog.Logger

	// OnChatResult receives every chat result for call auditing and metrics.
	// Called synchronously from the generating goroutine.
	OnChatResult func(*providers.ChatResult)
}

// Generator drafts chapters through an LLM client.
type Generator struct {
	client providers.LLMClient
	cfg    GeneratorConfig
	logger *slog.Logger
}

// NewGenerator creates a chapter generator backed by the given client.
func NewGenerator(client providers.LLMClient, cfg GeneratorConfig) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "storygen"),
	}
}

// Generate drafts one chapter. The contextText carries the story premise and
// summaries of completed chapters, assembled by the scheduler.
func (g *Generator) Generate(ctx context.Context, job scheduler.Job, contextText string) (*scheduler.Draft, error) {
	input := chapter.Input{
		ChapterNumber:        job.ID,
		Title:                job.Title,
		Plan:                 g.cfg.Plans[job.ID],
		ContextText:          contextText,
		Complexity:           job.Complexity,
		SystemPromptOverride: g.resolveOverride(ctx, chapter.PromptKey),
	}

	req := chapter.BuildRequest(input)
	req.Model = g.cfg.Model
	req.RequestID = uuid.New().String()

	result, err := g.client.Chat(ctx, req)
	if g.cfg.OnChatResult != nil && result != nil {
		g.cfg.OnChatResult(result)
	}
	if err != nil {
		return nil, fmt.Errorf("chapter %d: %w", job.ID, err)
	}
	if !result.Success {
		return nil, fmt.Errorf("chapter %d: provider error: %s", job.ID, result.ErrorMessage)
	}

	return draftFromResult(job, result)
}

// resolveOverride returns the story-level prompt override text, or empty
// string for the embedded default.
func (g *Generator) resolveOverride(ctx context.Context, key string) string {
	if g.cfg.Resolver == nil {
		return ""
	}
	resolved, err := g.cfg.Resolver.Resolve(ctx, key, g.cfg.StoryID)
	if err != nil {
		g.logger.Warn("prompt resolution failed, using embedded default", "key", key, "error", err)
		return ""
	}
	if !resolved.IsOverride {
		return ""
	}
	return resolved.Text
}

// draftFromResult maps a chat result onto a scheduler draft. Structured JSON
// is preferred; plain text responses fall back to a leading-sentence summary.
func draftFromResult(job scheduler.Job, result *providers.ChatResult) (*scheduler.Draft, error) {
	draft := &scheduler.Draft{
		JobID: job.ID,
		Title: job.Title,
	}

	if result.ParsedJSON != nil {
		parsed, err := chapter.ParseResult(result.ParsedJSON)
		if err != nil {
			return nil, fmt.Errorf("chapter %d: %w", job.ID, err)
		}
		if parsed.Title != "" {
			draft.Title = parsed.Title
		}
		draft.Content = parsed.Content
		draft.Summary = parsed.Summary
	} else {
		content := strings.TrimSpace(result.Content)
		if content == "" {
			return nil, fmt.Errorf("chapter %d: empty response", job.ID)
		}
		draft.Content = content
		draft.Summary = FallbackSummary(content, 3)
	}

	draft.WordCount = len(strings.Fields(draft.Content))
	return draft, nil
}

var _ scheduler.Generator = (*Generator)(nil)
