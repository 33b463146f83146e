package storygen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soulscribe/soulscribe/internal/llmcall"
	"github.com/soulscribe/soulscribe/internal/metrics"
	"github.com/soulscribe/soulscribe/internal/prompts"
	"github.com/soulscribe/soulscribe/internal/providers"
	"github.com/soulscribe/soulscribe/internal/scheduler"
	"github.com/soulscribe/soulscribe/internal/story"
)

// ErrRunInProgress is returned when a story already has an active run.
var ErrRunInProgress = errors.New("generation run already in progress")

// RunnerConfig holds the services a Runner needs.
type RunnerConfig struct {
	Store    *story.Store
	Registry *providers.Registry
	Resolver *prompts.Resolver

	// Optional recorders. Nil disables the corresponding recording.
	Metrics *metrics.Recorder
	Calls   *llmcall.Recorder

	Logger *slog.Logger
}

// RunOptions configures one generation run.
type RunOptions struct {
	// Provider names for registry lookup (required).
	GeneratorProvider string
	ReviewerProvider  string

	// Model overrides passed through to the providers. Empty uses each
	// client's default model.
	GeneratorModel string
	ReviewerModel  string

	// Nil pointer fields take the scheduler defaults; a pointer to zero
	// is a real setting (threshold 0 accepts everything, retries 0
	// means one attempt).
	MaxConcurrency   int
	QualityThreshold *float64
	MaxRetries       *int
	AttemptTimeout   time.Duration
}

// RunState is the lifecycle state of a generation run.
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)

// RunStatus is a point-in-time view of an active or finished run.
type RunStatus struct {
	RunID     string                     `json:"run_id"`
	StoryID   string                     `json:"story_id"`
	State     RunState                   `json:"state"`
	StartedAt time.Time                  `json:"started_at"`
	Progress  scheduler.ProgressSnapshot `json:"progress"`

	// Populated once the run finishes.
	Succeeded   int     `json:"succeeded,omitempty"`
	Failed      int     `json:"failed,omitempty"`
	MeanQuality float64 `json:"mean_quality,omitempty"`
	ElapsedMS   int64   `json:"elapsed_ms,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Runner starts and tracks story generation runs. Each run executes in its
// own goroutine; Runner keeps in-memory status for progress polling and
// persists chapters and run records through the story store.
type Runner struct {
	store    *story.Store
	registry *providers.Registry
	resolver *prompts.Resolver
	metrics  *metrics.Recorder
	calls    *llmcall.Recorder
	logger   *slog.Logger

	mu   sync.RWMutex
	runs map[string]*activeRun
}

type activeRun struct {
	mu     sync.RWMutex
	status RunStatus
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner creates a Runner from config.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("story store is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:    cfg.Store,
		registry: cfg.Registry,
		resolver: cfg.Resolver,
		metrics:  cfg.Metrics,
		calls:    cfg.Calls,
		logger:   logger.With("component", "runner"),
		runs:     make(map[string]*activeRun),
	}, nil
}

// StartRun begins generating chapters for a story. It validates the story
// and its outline synchronously, then runs the scheduler in the background.
// Returns the run ID for progress polling.
func (r *Runner) StartRun(ctx context.Context, storyID string, opts RunOptions) (string, error) {
	st, err := r.store.GetStory(ctx, storyID)
	if err != nil {
		return "", fmt.Errorf("failed to load story: %w", err)
	}
	if st == nil {
		return "", fmt.Errorf("story not found: %s", storyID)
	}
	if len(st.Outline.Chapters) == 0 {
		return "", fmt.Errorf("story %s has no outline", storyID)
	}

	if r.hasActiveRun(storyID) {
		return "", fmt.Errorf("story %s: %w", storyID, ErrRunInProgress)
	}

	genClient, err := r.registry.GetLLM(opts.GeneratorProvider)
	if err != nil {
		return "", fmt.Errorf("generator provider: %w", err)
	}
	reviewClient, err := r.registry.GetLLM(opts.ReviewerProvider)
	if err != nil {
		return "", fmt.Errorf("reviewer provider: %w", err)
	}

	jobs, plans := jobsFromOutline(st.Outline)
	if err := scheduler.CheckFeasible(jobs); err != nil {
		return "", fmt.Errorf("outline is not schedulable: %w", err)
	}
	runID := uuid.New().String()

	cfg := scheduler.Config{
		MaxConcurrency:   opts.MaxConcurrency,
		QualityThreshold: opts.QualityThreshold,
		MaxRetries:       opts.MaxRetries,
		AttemptTimeout:   opts.AttemptTimeout,
		Logger:           r.logger.With("run_id", runID),
	}

	run := &activeRun{
		status: RunStatus{
			RunID:     runID,
			StoryID:   storyID,
			State:     RunStateRunning,
			StartedAt: time.Now(),
		},
		done: make(chan struct{}),
	}
	cfg.OnProgress = func(snap scheduler.ProgressSnapshot) {
		run.mu.Lock()
		run.status.Progress = snap
		run.mu.Unlock()
	}

	gen := NewGenerator(genClient, GeneratorConfig{
		Model:        opts.GeneratorModel,
		StoryID:      storyID,
		Plans:        plans,
		Resolver:     r.resolver,
		Logger:       r.logger,
		OnChatResult: r.chatResultHook(storyID, runID, metrics.StageChapter),
	})
	scorer := NewScorer(reviewClient, ScorerConfig{
		Model:        opts.ReviewerModel,
		StoryID:      storyID,
		ContextText:  st.Premise,
		Resolver:     r.resolver,
		Logger:       r.logger,
		OnChatResult: r.chatResultHook(storyID, runID, metrics.StageReview),
	})

	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency < 1 {
		maxConcurrency = scheduler.DefaultMaxConcurrency
	}
	qualityThreshold := float64(scheduler.DefaultQualityThreshold)
	if cfg.QualityThreshold != nil {
		qualityThreshold = *cfg.QualityThreshold
	}

	// Persist the run record before launching so progress endpoints can
	// find it immediately.
	runDocID, err := r.store.CreateRun(ctx, story.Run{
		RunID:            runID,
		StoryID:          storyID,
		Status:           story.RunStatusRunning,
		MaxConcurrency:   maxConcurrency,
		QualityThreshold: qualityThreshold,
		StartedAt:        run.status.StartedAt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create run record: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run.cancel = cancel

	r.mu.Lock()
	r.runs[runID] = run
	r.mu.Unlock()

	go r.execute(runCtx, run, runDocID, st, jobs, gen, scorer, cfg)

	r.logger.Info("generation run started",
		"run_id", runID,
		"story_id", storyID,
		"chapters", len(jobs))
	return runID, nil
}

// execute drives one run to completion and persists the results.
func (r *Runner) execute(ctx context.Context, run *activeRun, runDocID string, st *story.Story, jobs []scheduler.Job, gen *Generator, scorer *Scorer, cfg scheduler.Config) {
	defer close(run.done)
	defer run.cancel()

	runID := run.status.RunID
	logger := r.logger.With("run_id", runID)

	if err := r.store.SetStoryStatus(ctx, st.DocID, story.StatusGenerating); err != nil {
		logger.Warn("failed to mark story generating", "error", err)
	}

	sched := scheduler.New(gen, scorer, cfg)
	report, err := sched.Run(ctx, jobs, st.Premise)

	finish := func(state RunState, errMsg string) {
		run.mu.Lock()
		run.status.State = state
		run.status.Error = errMsg
		if report != nil {
			run.status.Succeeded = report.Succeeded
			run.status.Failed = report.Failed
			run.status.MeanQuality = report.MeanQuality
			run.status.ElapsedMS = report.Elapsed.Milliseconds()
		}
		run.mu.Unlock()
	}

	if err != nil {
		logger.Error("generation run failed", "error", err)
		finish(RunStateFailed, err.Error())
		r.persistRunOutcome(runDocID, st, report, story.RunStatusFailed)
		return
	}

	r.persistChapters(st, runID, report, logger)

	storyStatus := story.StatusComplete
	runStatus := story.RunStatusCompleted
	if report.Succeeded == 0 {
		storyStatus = story.StatusFailed
		runStatus = story.RunStatusFailed
	}
	if err := r.store.SetStoryStatus(context.Background(), st.DocID, storyStatus); err != nil {
		logger.Warn("failed to update story status", "error", err)
	}
	r.persistRunOutcome(runDocID, st, report, runStatus)

	finish(RunStateCompleted, "")
	logger.Info("generation run finished",
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"mean_quality", report.MeanQuality,
		"elapsed", report.Elapsed)
}

// persistChapters saves every accepted draft from the report.
func (r *Runner) persistChapters(st *story.Story, runID string, report *scheduler.RunReport, logger *slog.Logger) {
	byID := make(map[int]scheduler.Result, len(report.Results))
	for _, res := range report.Results {
		byID[res.JobID] = res
	}

	ctx := context.Background()
	for _, draft := range report.Drafts {
		res := byID[draft.JobID]
		ch := story.Chapter{
			StoryID:      st.DocID,
			RunID:        runID,
			Number:       draft.JobID,
			Title:        draft.Title,
			Content:      draft.Content,
			Summary:      draft.Summary,
			WordCount:    draft.WordCount,
			QualityScore: res.QualityScore,
			LowQuality:   res.LowQuality,
			Attempts:     res.Attempts,
		}
		if _, err := r.store.SaveChapter(ctx, ch); err != nil {
			logger.Error("failed to save chapter", "chapter", draft.JobID, "error", err)
		}
	}
}

func (r *Runner) persistRunOutcome(runDocID string, st *story.Story, report *scheduler.RunReport, status string) {
	run := story.Run{
		Status:     status,
		FinishedAt: time.Now(),
	}
	if report != nil {
		run.Succeeded = report.Succeeded
		run.Failed = report.Failed
		run.MeanQuality = report.MeanQuality
		run.ElapsedMS = report.Elapsed.Milliseconds()
	}
	if err := r.store.FinishRun(context.Background(), runDocID, run); err != nil {
		r.logger.Warn("failed to finish run record", "story_id", st.DocID, "error", err)
	}
}

// chatResultHook records metrics and call audit entries for a stage.
func (r *Runner) chatResultHook(storyID, runID, stage string) func(*providers.ChatResult) {
	if r.metrics == nil && r.calls == nil {
		return nil
	}
	return func(result *providers.ChatResult) {
		if result == nil {
			return
		}
		if r.metrics != nil {
			opts := metrics.RecordOpts{StoryID: storyID, RunID: runID, Stage: stage}
			if _, err := r.metrics.RecordChat(context.Background(), opts, result); err != nil {
				r.logger.Warn("failed to record metric", "stage", stage, "error", err)
			}
		}
		if r.calls != nil {
			r.calls.Record(result, llmcall.RecordOptions{
				StoryID: storyID,
				RunID:   runID,
				Stage:   stage,
			})
		}
	}
}

// Status returns the current status of a run.
func (r *Runner) Status(runID string) (RunStatus, bool) {
	r.mu.RLock()
	run, ok := r.runs[runID]
	r.mu.RUnlock()
	if !ok {
		return RunStatus{}, false
	}
	run.mu.RLock()
	defer run.mu.RUnlock()
	return run.status, true
}

// Cancel stops a running generation. In-flight attempts are abandoned.
func (r *Runner) Cancel(runID string) bool {
	r.mu.RLock()
	run, ok := r.runs[runID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	run.cancel()
	return true
}

// Active returns statuses for all tracked runs.
func (r *Runner) Active() []RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RunStatus, 0, len(r.runs))
	for _, run := range r.runs {
		run.mu.RLock()
		out = append(out, run.status)
		run.mu.RUnlock()
	}
	return out
}

// Wait blocks until the run finishes or the context is cancelled. Used by
// tests and synchronous CLI flows.
func (r *Runner) Wait(ctx context.Context, runID string) error {
	r.mu.RLock()
	run, ok := r.runs[runID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown run: %s", runID)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-run.done:
		return nil
	}
}

func (r *Runner) hasActiveRun(storyID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, run := range r.runs {
		run.mu.RLock()
		active := run.status.StoryID == storyID && run.status.State == RunStateRunning
		run.mu.RUnlock()
		if active {
			return true
		}
	}
	return false
}

// jobsFromOutline converts chapter plans to scheduler jobs plus the plan
// text map the generator prompts from.
func jobsFromOutline(outline story.Outline) ([]scheduler.Job, map[int]string) {
	jobs := make([]scheduler.Job, 0, len(outline.Chapters))
	plans := make(map[int]string, len(outline.Chapters))
	for _, ch := range outline.Chapters {
		jobs = append(jobs, scheduler.Job{
			ID:         ch.Number,
			Title:      ch.Title,
			DependsOn:  ch.DependsOn,
			Priority:   parsePriority(ch.Priority),
			Complexity: ch.Complexity,
		})
		plans[ch.Number] = ch.Plan
	}
	return jobs, plans
}

func parsePriority(s string) scheduler.Priority {
	switch s {
	case "high":
		return scheduler.PriorityHigh
	case "low":
		return scheduler.PriorityLow
	default:
		return scheduler.PriorityNormal
	}
}
