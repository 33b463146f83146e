// Package story holds the story domain model and its persistence over the
// document store.
package story

import (
	"time"
)

// Story statuses.
const (
	StatusDraft      = "draft"
	StatusGenerating = "generating"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ChapterPlan is one planned chapter from a story outline.
type ChapterPlan struct {
	Number     int     `json:"number"` // 1-based chapter number
	Title      string  `json:"title"`
	Plan       string  `json:"plan,omitempty"` // What the chapter should accomplish
	DependsOn  []int   `json:"depends_on,omitempty"`
	Priority   string  `json:"priority,omitempty"`   // low | normal | high
	Complexity float64 `json:"complexity,omitempty"` // [0,1]
}

// Outline describes the planned shape of a story.
type Outline struct {
	Chapters []ChapterPlan `json:"chapters"`
}

// Story is the top-level record for one story.
type Story struct {
	DocID        string    `json:"_docID,omitempty"`
	Title        string    `json:"title"`
	Premise      string    `json:"premise"`
	Theme        string    `json:"theme,omitempty"`
	Status       string    `json:"status"`
	Outline      Outline   `json:"outline"`
	ChapterCount int       `json:"chapter_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Chapter is one accepted chapter draft.
type Chapter struct {
	DocID        string    `json:"_docID,omitempty"`
	StoryID      string    `json:"story_id"`
	RunID        string    `json:"run_id,omitempty"`
	Number       int       `json:"chapter_number"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Summary      string    `json:"summary,omitempty"`
	WordCount    int       `json:"word_count"`
	QualityScore float64   `json:"quality_score"`
	LowQuality   bool      `json:"low_quality"`
	Attempts     int       `json:"attempts"`
	AudioFormat  string    `json:"audio_format,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Run records one scheduler execution over a story.
type Run struct {
	DocID            string    `json:"_docID,omitempty"`
	RunID            string    `json:"run_id"`
	StoryID          string    `json:"story_id"`
	Status           string    `json:"status"`
	MaxConcurrency   int       `json:"max_concurrency"`
	QualityThreshold float64   `json:"quality_threshold"`
	Succeeded        int       `json:"succeeded"`
	Failed           int       `json:"failed"`
	MeanQuality      float64   `json:"mean_quality"`
	ElapsedMS        int64     `json:"elapsed_ms"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at,omitempty"`
}
