package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/soulscribe/soulscribe/internal/providers"
	"github.com/soulscribe/soulscribe/internal/storedb"
)

// Recorder stores metrics in the document store.
type Recorder struct {
	client *storedb.Client
}

// NewRecorder creates a new metrics recorder.
func NewRecorder(client *storedb.Client) *Recorder {
	return &Recorder{client: client}
}

// RecordOpts provides attribution for a metric recording.
type RecordOpts struct {
	StoryID       string
	RunID         string
	Stage         string // chapter | review | tts
	ChapterNumber int
}

// Record stores a single metric.
func (r *Recorder) Record(ctx context.Context, m Metric) (string, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	result, err := r.client.Create(ctx, "Metric", m.ToMap())
	if err != nil {
		return "", err
	}
	return result.DocID, nil
}

// RecordChat records metrics from an LLM chat result.
func (r *Recorder) RecordChat(ctx context.Context, opts RecordOpts, result *providers.ChatResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("nil chat result")
	}

	m := Metric{
		StoryID:       opts.StoryID,
		RunID:         opts.RunID,
		Stage:         opts.Stage,
		ChapterNumber: opts.ChapterNumber,

		Provider: result.Provider,
		Model:    result.ModelUsed,

		CostUSD:          result.CostUSD,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,

		ExecutionSeconds: result.ExecutionTime.Seconds(),
		TotalSeconds:     result.TotalTime.Seconds(),

		Success:   result.Success,
		ErrorType: result.ErrorType,

		CreatedAt: time.Now(),
	}

	return r.Record(ctx, m)
}

// RecordTTS records metrics from a TTS result.
func (r *Recorder) RecordTTS(ctx context.Context, opts RecordOpts, provider string, result *providers.TTSResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("nil TTS result")
	}

	m := Metric{
		StoryID:       opts.StoryID,
		RunID:         opts.RunID,
		Stage:         StageTTS,
		ChapterNumber: opts.ChapterNumber,

		Provider: provider,

		CostUSD:          result.CostUSD,
		ExecutionSeconds: result.ExecutionTime.Seconds(),
		TotalSeconds:     result.ExecutionTime.Seconds(),

		Success:   result.Success,
		CreatedAt: time.Now(),
	}
	if result.ErrorMessage != "" {
		m.ErrorType = "tts_error"
	}

	return r.Record(ctx, m)
}

// RecordError records a failed operation as a metric.
func (r *Recorder) RecordError(ctx context.Context, opts RecordOpts, provider, model, errorType string, duration time.Duration) (string, error) {
	m := Metric{
		StoryID:       opts.StoryID,
		RunID:         opts.RunID,
		Stage:         opts.Stage,
		ChapterNumber: opts.ChapterNumber,

		Provider: provider,
		Model:    model,

		TotalSeconds: duration.Seconds(),

		Success:   false,
		ErrorType: errorType,

		CreatedAt: time.Now(),
	}

	return r.Record(ctx, m)
}
