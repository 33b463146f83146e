// Package metrics provides cost and usage tracking for LLM and TTS calls.
package metrics

import "time"

// Stage names used for metric attribution.
const (
	StageChapter = "chapter"
	StageReview  = "review"
	StageTTS     = "tts"
)

// Metric represents a single recorded metric for a provider call. Metrics are
// append-only records with full story/run attribution.
type Metric struct {
	ID string `json:"_docID,omitempty"`

	// Attribution (for filtering/aggregation)
	StoryID       string `json:"story_id,omitempty"`
	RunID         string `json:"run_id,omitempty"`
	Stage         string `json:"stage,omitempty"`
	ChapterNumber int    `json:"chapter_number,omitempty"`

	// Provider info
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// Cost and tokens
	CostUSD          float64 `json:"cost_usd,omitempty"`
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	TotalTokens      int     `json:"total_tokens,omitempty"`

	// Timing
	ExecutionSeconds float64 `json:"execution_seconds,omitempty"`
	TotalSeconds     float64 `json:"total_seconds,omitempty"`

	// Status
	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ToMap converts the metric to a map for document store storage.
func (m *Metric) ToMap() map[string]any {
	data := map[string]any{
		"success":    m.Success,
		"created_at": m.CreatedAt.Format(time.RFC3339),
	}

	if m.StoryID != "" {
		data["story_id"] = m.StoryID
	}
	if m.RunID != "" {
		data["run_id"] = m.RunID
	}
	if m.Stage != "" {
		data["stage"] = m.Stage
	}
	if m.ChapterNumber > 0 {
		data["chapter_number"] = m.ChapterNumber
	}
	if m.Provider != "" {
		data["provider"] = m.Provider
	}
	if m.Model != "" {
		data["model"] = m.Model
	}
	if m.CostUSD > 0 {
		data["cost_usd"] = m.CostUSD
	}
	if m.PromptTokens > 0 {
		data["prompt_tokens"] = m.PromptTokens
	}
	if m.CompletionTokens > 0 {
		data["completion_tokens"] = m.CompletionTokens
	}
	if m.TotalTokens > 0 {
		data["total_tokens"] = m.TotalTokens
	}
	if m.ExecutionSeconds > 0 {
		data["execution_seconds"] = m.ExecutionSeconds
	}
	if m.TotalSeconds > 0 {
		data["total_seconds"] = m.TotalSeconds
	}
	if m.ErrorType != "" {
		data["error_type"] = m.ErrorType
	}

	return data
}
