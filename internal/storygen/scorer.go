package storygen

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/soulscribe/soulscribe/internal/prompts"
	"github.com/soulscribe/soulscribe/internal/prompts/review"
	"github.com/soulscribe/soulscribe/internal/providers"
	"github.com/soulscribe/soulscribe/internal/scheduler"
)

// ScorerConfig configures a Scorer.
type ScorerConfig struct {
	Model       string            // Reviewer model; empty uses the client default
	StoryID     string            // For prompt override resolution
	ContextText string            // Story premise the reviewer judges against
	Resolver    *prompts.Resolver // Optional; enables story-level prompt overrides
	Logger      *slog.Logger

	// OnChatResult receives every chat result for call auditing and metrics.
	OnChatResult func(*providers.ChatResult)
}

// Scorer reviews chapter drafts through an LLM client. A separate reviewer
// model can be configured so drafts are not graded by their own author.
type Scorer struct {
	client providers.LLMClient
	cfg    ScorerConfig
	logger *slog.Logger
}

// NewScorer creates a draft scorer backed by the given client.
func NewScorer(client providers.LLMClient, cfg ScorerConfig) *Scorer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "storygen"),
	}
}

// Score reviews one draft and returns its quality value plus revision hints.
func (s *Scorer) Score(ctx context.Context, draft *scheduler.Draft) (*scheduler.Score, error) {
	input := review.Input{
		ChapterNumber:        draft.JobID,
		Title:                draft.Title,
		Content:              draft.Content,
		ContextText:          s.cfg.ContextText,
		SystemPromptOverride: s.resolveOverride(ctx, review.PromptKey),
	}

	req := review.BuildRequest(input)
	req.Model = s.cfg.Model
	req.RequestID = uuid.New().String()

	result, err := s.client.Chat(ctx, req)
	if s.cfg.OnChatResult != nil && result != nil {
		s.cfg.OnChatResult(result)
	}
	if err != nil {
		return nil, fmt.Errorf("review chapter %d: %w", draft.JobID, err)
	}
	if !result.Success {
		return nil, fmt.Errorf("review chapter %d: provider error: %s", draft.JobID, result.ErrorMessage)
	}
	if result.ParsedJSON == nil {
		return nil, fmt.Errorf("review chapter %d: no structured output", draft.JobID)
	}

	parsed, err := review.ParseResult(result.ParsedJSON)
	if err != nil {
		return nil, fmt.Errorf("review chapter %d: %w", draft.JobID, err)
	}

	s.logger.Debug("scored draft",
		"chapter", draft.JobID,
		"score", parsed.Score,
		"improvements", len(parsed.Improvements))

	return &scheduler.Score{
		Value: parsed.Score,
		Hints: parsed.Improvements,
	}, nil
}

func (s *Scorer) resolveOverride(ctx context.Context, key string) string {
	if s.cfg.Resolver == nil {
		return ""
	}
	resolved, err := s.cfg.Resolver.Resolve(ctx, key, s.cfg.StoryID)
	if err != nil {
		s.logger.Warn("prompt resolution failed, using embedded default", "key", key, "error", err)
		return ""
	}
	if !resolved.IsOverride {
		return ""
	}
	return resolved.Text
}

var _ scheduler.Scorer = (*Scorer)(nil)
