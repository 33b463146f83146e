package story

import (
	"encoding/json"
	"fmt"
	"time"
)

// parseStories parses Story entries from GraphQL response data.
func parseStories(data map[string]any) ([]Story, error) {
	docs, err := docsFor(data, "Story")
	if err != nil || docs == nil {
		return nil, err
	}

	stories := make([]Story, 0, len(docs))
	for _, doc := range docs {
		st := Story{
			DocID:        str(doc, "_docID"),
			Title:        str(doc, "title"),
			Premise:      str(doc, "premise"),
			Theme:        str(doc, "theme"),
			Status:       str(doc, "status"),
			ChapterCount: num(doc, "chapter_count"),
			CreatedAt:    timestamp(doc, "created_at"),
			UpdatedAt:    timestamp(doc, "updated_at"),
		}
		if raw := str(doc, "outline"); raw != "" {
			// Outline is stored JSON-encoded; a corrupt value should not
			// make the whole story unreadable.
			_ = json.Unmarshal([]byte(raw), &st.Outline)
		}
		stories = append(stories, st)
	}
	return stories, nil
}

// parseChapters parses Chapter entries from GraphQL response data.
func parseChapters(data map[string]any) ([]Chapter, error) {
	docs, err := docsFor(data, "Chapter")
	if err != nil || docs == nil {
		return nil, err
	}

	chapters := make([]Chapter, 0, len(docs))
	for _, doc := range docs {
		chapters = append(chapters, Chapter{
			DocID:        str(doc, "_docID"),
			StoryID:      str(doc, "story_id"),
			RunID:        str(doc, "run_id"),
			Number:       num(doc, "chapter_number"),
			Title:        str(doc, "title"),
			Content:      str(doc, "content"),
			Summary:      str(doc, "summary"),
			WordCount:    num(doc, "word_count"),
			QualityScore: floatVal(doc, "quality_score"),
			LowQuality:   boolVal(doc, "low_quality"),
			Attempts:     num(doc, "attempts"),
			AudioFormat:  str(doc, "audio_format"),
			CreatedAt:    timestamp(doc, "created_at"),
		})
	}
	return chapters, nil
}

// parseRuns parses Run entries from GraphQL response data.
func parseRuns(data map[string]any) ([]Run, error) {
	docs, err := docsFor(data, "Run")
	if err != nil || docs == nil {
		return nil, err
	}

	runs := make([]Run, 0, len(docs))
	for _, doc := range docs {
		runs = append(runs, Run{
			DocID:            str(doc, "_docID"),
			RunID:            str(doc, "run_id"),
			StoryID:          str(doc, "story_id"),
			Status:           str(doc, "status"),
			MaxConcurrency:   num(doc, "max_concurrency"),
			QualityThreshold: floatVal(doc, "quality_threshold"),
			Succeeded:        num(doc, "succeeded"),
			Failed:           num(doc, "failed"),
			MeanQuality:      floatVal(doc, "mean_quality"),
			ElapsedMS:        int64(num(doc, "elapsed_ms")),
			StartedAt:        timestamp(doc, "started_at"),
			FinishedAt:       timestamp(doc, "finished_at"),
		})
	}
	return runs, nil
}

// docsFor extracts the document list for a collection from response data.
func docsFor(data map[string]any, collection string) ([]map[string]any, error) {
	raw, ok := data[collection]
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected %s type: %T", collection, raw)
	}
	docs := make([]map[string]any, 0, len(list))
	for _, d := range list {
		if doc, ok := d.(map[string]any); ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func str(doc map[string]any, key string) string {
	v, _ := doc[key].(string)
	return v
}

// num reads an integer field. GraphQL numbers arrive as float64 through
// encoding/json.
func num(doc map[string]any, key string) int {
	switch v := doc[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func floatVal(doc map[string]any, key string) float64 {
	v, _ := doc[key].(float64)
	return v
}

func boolVal(doc map[string]any, key string) bool {
	v, _ := doc[key].(bool)
	return v
}

func timestamp(doc map[string]any, key string) time.Time {
	raw, ok := doc[key].(string)
	if !ok || raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
