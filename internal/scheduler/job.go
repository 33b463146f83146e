package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Priority orders jobs that are otherwise equally ready. It breaks ties
// only; it never overrides dependency gating.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Job is one chapter-generation unit of work. ID is the 1-based chapter
// number and doubles as the dependency key.
type Job struct {
	ID         int
	Title      string
	DependsOn  []int
	Priority   Priority
	Complexity float64 // 0..1, scales generator token budget and temperature
}

// Draft is the generator's output for a job.
type Draft struct {
	JobID     int
	Title     string
	Content   string
	Summary   string
	WordCount int
}

// Score is the reviewer's verdict on a draft: a value in [0,1] plus
// optional improvement hints folded into the next revision attempt.
type Score struct {
	Value float64
	Hints []string
}

// Generator produces a draft for a job. The context text carries the
// shared story context plus summaries of completed dependency chapters.
// Implementations must be safe to retry on failure.
type Generator interface {
	Generate(ctx context.Context, job Job, contextText string) (*Draft, error)
}

// Scorer evaluates draft quality.
type Scorer interface {
	Score(ctx context.Context, draft *Draft) (*Score, error)
}

// Status is the lifecycle state of a job within one run.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Config controls one scheduler run.
type Config struct {
	// MaxConcurrency caps in-flight jobs (default 3).
	MaxConcurrency int

	// QualityThreshold is the minimum accepted score. Nil means
	// DefaultQualityThreshold; a pointer to 0 accepts every draft.
	QualityThreshold *float64

	// MaxRetries is the number of retries after the first attempt. Nil
	// means DefaultMaxRetries; a pointer to 0 allows exactly one
	// attempt per job.
	MaxRetries *int

	// AttemptTimeout bounds a single generate+score attempt. A timed-out
	// attempt becomes a retryable generation error. Zero disables it.
	AttemptTimeout time.Duration

	// RetryDelay is the base for jittered exponential backoff between
	// attempts (default 500ms).
	RetryDelay time.Duration

	// DefaultJobEstimate seeds the ETA before any job has completed.
	DefaultJobEstimate time.Duration

	// OnProgress is invoked after every admission, completion, and
	// failure. Panics in the callback are recovered and logged.
	OnProgress func(ProgressSnapshot)

	Logger *slog.Logger
}

const (
	DefaultMaxConcurrency     = 3
	DefaultQualityThreshold   = 0.7
	DefaultMaxRetries         = 2
	DefaultRetryDelay         = 500 * time.Millisecond
	DefaultJobEstimateSeconds = 30
)

func (c Config) withDefaults() Config {
	if c.MaxConcurrency < 1 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.QualityThreshold == nil {
		threshold := DefaultQualityThreshold
		c.QualityThreshold = &threshold
	} else if *c.QualityThreshold < 0 {
		zero := 0.0
		c.QualityThreshold = &zero
	}
	if c.MaxRetries == nil {
		retries := DefaultMaxRetries
		c.MaxRetries = &retries
	} else if *c.MaxRetries < 0 {
		zero := 0
		c.MaxRetries = &zero
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.DefaultJobEstimate <= 0 {
		c.DefaultJobEstimate = DefaultJobEstimateSeconds * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
