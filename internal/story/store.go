package story

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/soulscribe/soulscribe/internal/storedb"
)

// Store persists stories, chapters, and runs in the document store.
type Store struct {
	client *storedb.Client
	logger *slog.Logger
}

// NewStore creates a story store.
func NewStore(client *storedb.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, logger: logger.With("component", "story")}
}

// CreateStory creates a new story record and returns its document ID.
func (s *Store) CreateStory(ctx context.Context, st Story) (string, error) {
	now := time.Now()
	outlineJSON, err := json.Marshal(st.Outline)
	if err != nil {
		return "", fmt.Errorf("failed to marshal outline: %w", err)
	}

	status := st.Status
	if status == "" {
		status = StatusDraft
	}

	result, err := s.client.Create(ctx, "Story", map[string]any{
		"title":         st.Title,
		"premise":       st.Premise,
		"theme":         st.Theme,
		"status":        status,
		"outline":       string(outlineJSON),
		"chapter_count": len(st.Outline.Chapters),
		"created_at":    now.Format(time.RFC3339),
		"updated_at":    now.Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create story: %w", err)
	}
	return result.DocID, nil
}

// GetStory retrieves a story by document ID.
func (s *Store) GetStory(ctx context.Context, docID string) (*Story, error) {
	resp, err := storedb.SafeQueryByDocID(ctx, s.client, "Story", docID, storyFields...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	stories, err := parseStories(resp.Data)
	if err != nil {
		return nil, err
	}
	if len(stories) == 0 {
		return nil, nil
	}
	return &stories[0], nil
}

// ListStories retrieves all stories, newest first.
func (s *Store) ListStories(ctx context.Context) ([]Story, error) {
	resp, err := storedb.NewQuery("Story").
		Fields(storyFields...).
		OrderBy("created_at", "DESC").
		Execute(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	return parseStories(resp.Data)
}

// SetStoryStatus updates a story's status.
func (s *Store) SetStoryStatus(ctx context.Context, docID, status string) error {
	_, err := s.client.Update(ctx, "Story", docID, map[string]any{
		"status":     status,
		"updated_at": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to update story status: %w", err)
	}
	return nil
}

// DeleteStory removes a story record.
func (s *Store) DeleteStory(ctx context.Context, docID string) error {
	return s.client.Delete(ctx, "Story", docID)
}

// SaveChapter persists an accepted chapter draft. The (story_id,
// chapter_number) pair is upserted so re-running a story never produces
// duplicate chapter records.
func (s *Store) SaveChapter(ctx context.Context, ch Chapter) (string, error) {
	if ch.StoryID == "" {
		return "", fmt.Errorf("chapter missing story_id")
	}
	if ch.Number <= 0 {
		return "", fmt.Errorf("chapter number must be positive, got %d", ch.Number)
	}

	doc := map[string]any{
		"story_id":       ch.StoryID,
		"run_id":         ch.RunID,
		"chapter_number": ch.Number,
		"title":          ch.Title,
		"content":        ch.Content,
		"summary":        ch.Summary,
		"word_count":     ch.WordCount,
		"quality_score":  ch.QualityScore,
		"low_quality":    ch.LowQuality,
		"attempts":       ch.Attempts,
		"created_at":     time.Now().Format(time.RFC3339),
	}

	result, err := s.client.Upsert(ctx, "Chapter", map[string]any{
		"story_id":       map[string]any{"_eq": ch.StoryID},
		"chapter_number": map[string]any{"_eq": ch.Number},
	}, doc, doc)
	if err != nil {
		return "", fmt.Errorf("failed to save chapter %d: %w", ch.Number, err)
	}

	s.logger.Debug("saved chapter",
		"story_id", ch.StoryID,
		"chapter", ch.Number,
		"words", ch.WordCount)

	return result.DocID, nil
}

// ListChapters retrieves a story's chapters in reading order.
func (s *Store) ListChapters(ctx context.Context, storyID string) ([]Chapter, error) {
	resp, err := storedb.NewQuery("Chapter").
		Filter("story_id", storyID).
		Fields(chapterFields...).
		OrderBy("chapter_number", "ASC").
		Execute(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	return parseChapters(resp.Data)
}

// GetChapter retrieves one chapter of a story.
func (s *Store) GetChapter(ctx context.Context, storyID string, number int) (*Chapter, error) {
	resp, err := storedb.NewQuery("Chapter").
		Filter("story_id", storyID).
		Filter("chapter_number", number).
		Fields(chapterFields...).
		Execute(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	chapters, err := parseChapters(resp.Data)
	if err != nil {
		return nil, err
	}
	if len(chapters) == 0 {
		return nil, nil
	}
	return &chapters[0], nil
}

// SaveChapterAudio attaches narration audio to a chapter record.
func (s *Store) SaveChapterAudio(ctx context.Context, chapterDocID string, audio []byte, format string) error {
	_, err := s.client.Update(ctx, "Chapter", chapterDocID, map[string]any{
		"audio":        audio,
		"audio_format": format,
	})
	if err != nil {
		return fmt.Errorf("failed to save chapter audio: %w", err)
	}
	return nil
}

// CreateRun records the start of a scheduler execution.
func (s *Store) CreateRun(ctx context.Context, r Run) (string, error) {
	result, err := s.client.Create(ctx, "Run", map[string]any{
		"run_id":            r.RunID,
		"story_id":          r.StoryID,
		"status":            RunStatusRunning,
		"max_concurrency":   r.MaxConcurrency,
		"quality_threshold": r.QualityThreshold,
		"started_at":        time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return result.DocID, nil
}

// FinishRun records the outcome of a scheduler execution.
func (s *Store) FinishRun(ctx context.Context, docID string, r Run) error {
	_, err := s.client.Update(ctx, "Run", docID, map[string]any{
		"status":       r.Status,
		"succeeded":    r.Succeeded,
		"failed":       r.Failed,
		"mean_quality": r.MeanQuality,
		"elapsed_ms":   r.ElapsedMS,
		"finished_at":  time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by its run_id.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	resp, err := storedb.SafeQuery(ctx, s.client, "Run", "run_id", runID, runFields...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	runs, err := parseRuns(resp.Data)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// ListRuns retrieves all runs for a story, newest first.
func (s *Store) ListRuns(ctx context.Context, storyID string) ([]Run, error) {
	resp, err := storedb.NewQuery("Run").
		Filter("story_id", storyID).
		Fields(runFields...).
		OrderBy("started_at", "DESC").
		Execute(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	return parseRuns(resp.Data)
}

var storyFields = []string{
	"_docID", "title", "premise", "theme", "status", "outline",
	"chapter_count", "created_at", "updated_at",
}

var chapterFields = []string{
	"_docID", "story_id", "run_id", "chapter_number", "title", "content",
	"summary", "word_count", "quality_score", "low_quality", "attempts",
	"audio_format", "created_at",
}

var runFields = []string{
	"_docID", "run_id", "story_id", "status", "max_concurrency",
	"quality_threshold", "succeeded", "failed", "mean_quality",
	"elapsed_ms", "started_at", "finished_at",
}
