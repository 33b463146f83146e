// Package llmcall records every LLM API call made during story generation
// for traceability. Each record links the call back to its story, run,
// pipeline stage, and the exact prompt version used.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/soulscribe/soulscribe/internal/providers"
)

// Call represents a recorded LLM API call.
type Call struct {
	// Unique identifier, carried on the request as RequestID when available
	RequestID string `json:"request_id"`

	// Context references
	StoryID       string `json:"story_id,omitempty"`
	RunID         string `json:"run_id,omitempty"`
	Stage         string `json:"stage,omitempty"`
	ChapterNumber int    `json:"chapter_number,omitempty"`

	// Content-addressed ID linking to the exact prompt version used
	PromptCID string `json:"prompt_cid,omitempty"`

	// Model info
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// Token usage and cost
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`

	// Timing
	ExecutionMs int       `json:"execution_ms"`
	CreatedAt   time.Time `json:"created_at"`

	// Status
	Attempts     int    `json:"attempts"`
	Success      bool   `json:"success"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// RecordOptions provides generation context for recording an LLM call.
type RecordOptions struct {
	StoryID       string
	RunID         string
	Stage         string
	ChapterNumber int

	// Content-addressed ID linking to exact prompt version
	PromptCID string
}

// FromChatResult creates a Call from a ChatResult.
// Returns nil if result is nil.
func FromChatResult(result *providers.ChatResult, opts RecordOptions) *Call {
	if result == nil {
		return nil
	}

	call := &Call{
		RequestID:        result.RequestID,
		StoryID:          opts.StoryID,
		RunID:            opts.RunID,
		Stage:            opts.Stage,
		ChapterNumber:    opts.ChapterNumber,
		PromptCID:        opts.PromptCID,
		Provider:         result.Provider,
		Model:            result.ModelUsed,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,
		CostUSD:          result.CostUSD,
		ExecutionMs:      int(result.ExecutionTime.Milliseconds()),
		CreatedAt:        time.Now(),
		Attempts:         result.Attempts,
		Success:          result.Success,
	}

	if call.RequestID == "" {
		call.RequestID = uuid.New().String()
	}

	if !result.Success {
		call.ErrorType = result.ErrorType
		call.ErrorMessage = result.ErrorMessage
	}

	return call
}

// ToMap converts the Call to a document map for insertion.
func (c *Call) ToMap() map[string]any {
	m := map[string]any{
		"request_id":   c.RequestID,
		"provider":     c.Provider,
		"model":        c.Model,
		"attempts":     c.Attempts,
		"success":      c.Success,
		"execution_ms": c.ExecutionMs,
		"created_at":   c.CreatedAt.Format(time.RFC3339),
	}

	if c.StoryID != "" {
		m["story_id"] = c.StoryID
	}
	if c.RunID != "" {
		m["run_id"] = c.RunID
	}
	if c.Stage != "" {
		m["stage"] = c.Stage
	}
	if c.ChapterNumber != 0 {
		m["chapter_number"] = c.ChapterNumber
	}
	if c.PromptCID != "" {
		m["prompt_cid"] = c.PromptCID
	}
	if c.PromptTokens != 0 {
		m["prompt_tokens"] = c.PromptTokens
	}
	if c.CompletionTokens != 0 {
		m["completion_tokens"] = c.CompletionTokens
	}
	if c.TotalTokens != 0 {
		m["total_tokens"] = c.TotalTokens
	}
	if c.CostUSD != 0 {
		m["cost_usd"] = c.CostUSD
	}
	if c.ErrorType != "" {
		m["error_type"] = c.ErrorType
	}
	if c.ErrorMessage != "" {
		m["error_message"] = c.ErrorMessage
	}

	return m
}
