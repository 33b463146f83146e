// Package tts narrates finished chapters into audio. Chapter text is split
// into sentence-sized chunks within the provider's input limit, each chunk is
// synthesized with retries, and the assembled audio is stored on the chapter
// record.
package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/soulscribe/soulscribe/internal/metrics"
	"github.com/soulscribe/soulscribe/internal/providers"
	"github.com/soulscribe/soulscribe/internal/story"
)

const defaultFormat = "mp3"

// Config configures a Narrator.
type Config struct {
	Provider     providers.TTSProvider
	Store        *story.Store
	Voice        string
	Format       string // defaults to mp3
	Instructions string

	// Optional metrics recorder for per-chunk cost and timing.
	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// Narrator converts chapter text to narration audio.
type Narrator struct {
	provider     providers.TTSProvider
	store        *story.Store
	voice        string
	format       string
	instructions string
	metrics      *metrics.Recorder
	logger       *slog.Logger
}

// ChapterAudio is the result of narrating one chapter.
type ChapterAudio struct {
	ChapterNumber int
	Audio         []byte
	Format        string
	DurationMS    int
	ChunkCount    int
	CharCount     int
	CostUSD       float64
}

// NewNarrator creates a Narrator from config.
func NewNarrator(cfg Config) (*Narrator, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("tts provider is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("story store is required")
	}
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format == "" {
		format = defaultFormat
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Narrator{
		provider:     cfg.Provider,
		store:        cfg.Store,
		voice:        cfg.Voice,
		format:       format,
		instructions: cfg.Instructions,
		metrics:      cfg.Metrics,
		logger:       logger.With("component", "tts"),
	}, nil
}

// NarrateChapter synthesizes audio for a single chapter and persists it on
// the chapter record.
func (n *Narrator) NarrateChapter(ctx context.Context, ch story.Chapter) (*ChapterAudio, error) {
	if ch.Content == "" {
		return nil, fmt.Errorf("chapter %d has no content", ch.Number)
	}

	chunks := SplitIntoChunks(ch.Content)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("chapter %d produced no narration chunks", ch.Number)
	}

	n.logger.Info("narrating chapter",
		"chapter", ch.Number,
		"chunks", len(chunks),
		"provider", n.provider.Name())

	out := &ChapterAudio{
		ChapterNumber: ch.Number,
		Format:        n.format,
	}

	var buf bytes.Buffer
	for i, chunk := range chunks {
		result, err := n.generateChunk(ctx, chunk)
		if n.metrics != nil {
			opts := metrics.RecordOpts{
				StoryID:       ch.StoryID,
				RunID:         ch.RunID,
				Stage:         metrics.StageTTS,
				ChapterNumber: ch.Number,
			}
			if result != nil {
				if _, recErr := n.metrics.RecordTTS(ctx, opts, n.provider.Name(), result); recErr != nil {
					n.logger.Warn("failed to record tts metric", "error", recErr)
				}
			}
		}
		if err != nil {
			return nil, fmt.Errorf("chapter %d chunk %d/%d: %w", ch.Number, i+1, len(chunks), err)
		}

		buf.Write(result.Audio)
		out.DurationMS += result.DurationMS
		out.CharCount += result.CharCount
		out.CostUSD += result.CostUSD
		out.ChunkCount++
	}

	out.Audio = buf.Bytes()

	if ch.DocID != "" {
		if err := n.store.SaveChapterAudio(ctx, ch.DocID, out.Audio, out.Format); err != nil {
			return nil, fmt.Errorf("chapter %d: %w", ch.Number, err)
		}
	}

	n.logger.Info("chapter narrated",
		"chapter", ch.Number,
		"duration_ms", out.DurationMS,
		"bytes", len(out.Audio),
		"cost_usd", out.CostUSD)

	return out, nil
}

// NarrateStory narrates every chapter of a story that has content but no
// audio yet. Returns the per-chapter results in chapter order.
func (n *Narrator) NarrateStory(ctx context.Context, storyID string) ([]*ChapterAudio, error) {
	chapters, err := n.store.ListChapters(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	if len(chapters) == 0 {
		return nil, fmt.Errorf("story %s has no chapters", storyID)
	}

	var results []*ChapterAudio
	for _, ch := range chapters {
		if ch.Content == "" {
			n.logger.Warn("skipping chapter without content", "chapter", ch.Number)
			continue
		}
		if ch.AudioFormat != "" {
			n.logger.Debug("chapter already narrated, skipping", "chapter", ch.Number)
			continue
		}

		audio, err := n.NarrateChapter(ctx, ch)
		if err != nil {
			return results, err
		}
		results = append(results, audio)
	}

	return results, nil
}

// generateChunk calls the provider with retries using its own retry policy.
func (n *Narrator) generateChunk(ctx context.Context, text string) (*providers.TTSResult, error) {
	req := &providers.TTSRequest{
		Text:         text,
		Voice:        n.voice,
		Format:       n.format,
		Instructions: n.instructions,
	}

	maxRetries := n.provider.MaxRetries()
	var lastResult *providers.TTSResult
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := n.provider.Generate(ctx, req)
		if result != nil {
			lastResult = result
		}
		if err == nil && result != nil && result.Success {
			return result, nil
		}

		if err != nil {
			lastErr = err
		} else if result != nil {
			lastErr = fmt.Errorf("tts failed: %s", result.ErrorMessage)
		} else {
			lastErr = fmt.Errorf("tts returned no result")
		}

		if attempt < maxRetries {
			n.logger.Debug("tts chunk failed, retrying",
				"attempt", attempt+1,
				"max_attempts", maxRetries+1,
				"error", lastErr)
			if err := sleepBackoff(ctx, n.provider.RetryDelayBase(), attempt); err != nil {
				return lastResult, err
			}
		}
	}

	return lastResult, lastErr
}

func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	if base <= 0 {
		base = time.Second
	}
	delay := base * (1 << attempt)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
