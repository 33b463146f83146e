package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/soulscribe/soulscribe/internal/api"
	"github.com/soulscribe/soulscribe/internal/config"
	"github.com/soulscribe/soulscribe/internal/scheduler"
	"github.com/soulscribe/soulscribe/internal/storygen"
	"github.com/soulscribe/soulscribe/internal/svcctx"
)

// StartRunRequest is the request body for starting a generation run. All
// fields are optional; absent fields fall back to the configured
// defaults. quality_threshold and max_retries are pointers so an
// explicit 0 survives as a real setting instead of reading as unset.
type StartRunRequest struct {
	GeneratorProvider     string   `json:"generator_provider,omitempty"`
	ReviewerProvider      string   `json:"reviewer_provider,omitempty"`
	GeneratorModel        string   `json:"generator_model,omitempty"`
	ReviewerModel         string   `json:"reviewer_model,omitempty"`
	MaxConcurrency        int      `json:"max_concurrency,omitempty"`
	QualityThreshold      *float64 `json:"quality_threshold,omitempty"`
	MaxRetries            *int     `json:"max_retries,omitempty"`
	AttemptTimeoutSeconds int      `json:"attempt_timeout_seconds,omitempty"`
}

// StartRunResponse is returned after starting a run.
type StartRunResponse struct {
	RunID   string `json:"run_id"`
	StoryID string `json:"story_id"`
	State   string `json:"state"`
}

// StartRunEndpoint handles POST /api/stories/{id}/generate.
type StartRunEndpoint struct {
	Defaults config.DefaultsCfg
}

func (e *StartRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/stories/{id}/generate", e.handler
}

func (e *StartRunEndpoint) RequiresInit() bool { return true }

func (e *StartRunEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	storyID := r.PathValue("id")
	if storyID == "" {
		writeError(w, http.StatusBadRequest, "story id is required")
		return
	}

	var req StartRunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	runner := svcctx.RunnerFrom(r.Context())
	if runner == nil {
		writeError(w, http.StatusServiceUnavailable, "runner not initialized")
		return
	}

	runID, err := runner.StartRun(r.Context(), storyID, e.runOptions(req))
	if err != nil {
		var deadlock *scheduler.DeadlockError
		switch {
		case errors.As(err, &deadlock):
			writeError(w, http.StatusUnprocessableEntity, "outline has unsatisfiable dependencies: "+err.Error())
		case errors.Is(err, storygen.ErrRunInProgress):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadRequest, "failed to start run: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, StartRunResponse{
		RunID:   runID,
		StoryID: storyID,
		State:   string(storygen.RunStateRunning),
	})
}

// runOptions maps a request onto run options, filling absent fields from
// the configured defaults. Explicitly set pointer fields pass through
// untouched, so a requested threshold or retry count of 0 is honored.
func (e *StartRunEndpoint) runOptions(req StartRunRequest) storygen.RunOptions {
	opts := storygen.RunOptions{
		GeneratorProvider: req.GeneratorProvider,
		ReviewerProvider:  req.ReviewerProvider,
		GeneratorModel:    req.GeneratorModel,
		ReviewerModel:     req.ReviewerModel,
		MaxConcurrency:    req.MaxConcurrency,
		QualityThreshold:  req.QualityThreshold,
		MaxRetries:        req.MaxRetries,
	}
	if req.AttemptTimeoutSeconds > 0 {
		opts.AttemptTimeout = time.Duration(req.AttemptTimeoutSeconds) * time.Second
	}
	if opts.GeneratorProvider == "" {
		opts.GeneratorProvider = e.Defaults.GeneratorProvider
	}
	if opts.ReviewerProvider == "" {
		opts.ReviewerProvider = e.Defaults.ReviewerProvider
	}
	if opts.MaxConcurrency == 0 {
		opts.MaxConcurrency = e.Defaults.MaxConcurrency
	}
	if opts.QualityThreshold == nil && e.Defaults.QualityThreshold > 0 {
		threshold := e.Defaults.QualityThreshold
		opts.QualityThreshold = &threshold
	}
	if opts.MaxRetries == nil && e.Defaults.MaxRetries > 0 {
		retries := e.Defaults.MaxRetries
		opts.MaxRetries = &retries
	}
	return opts
}

func (e *StartRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		req       StartRunRequest
		threshold float64
		retries   int
	)
	cmd := &cobra.Command{
		Use:   "generate <story-id>",
		Short: "Start a chapter generation run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Only explicitly passed flags go in the request; 0 is a
			// real value for both, so presence matters.
			if cmd.Flags().Changed("threshold") {
				req.QualityThreshold = &threshold
			}
			if cmd.Flags().Changed("retries") {
				req.MaxRetries = &retries
			}
			client := api.NewClient(getServerURL())
			var resp StartRunResponse
			if err := client.Post(cmd.Context(), "/api/stories/"+args[0]+"/generate", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&req.GeneratorProvider, "generator", "", "LLM provider for chapter drafts")
	cmd.Flags().StringVar(&req.ReviewerProvider, "reviewer", "", "LLM provider for quality review")
	cmd.Flags().IntVar(&req.MaxConcurrency, "concurrency", 0, "Max chapters generated in parallel")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum acceptable quality score (0 accepts everything)")
	cmd.Flags().IntVar(&retries, "retries", 0, "Retries per chapter after the first attempt (0 means one attempt)")
	return cmd
}

// RunStatusEndpoint handles GET /api/runs/{run_id}.
type RunStatusEndpoint struct{}

func (e *RunStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/runs/{run_id}", e.handler
}

func (e *RunStatusEndpoint) RequiresInit() bool { return true }

func (e *RunStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")

	// Active runs answer from memory with live progress. Finished runs
	// fall back to the persisted record.
	if runner := svcctx.RunnerFrom(r.Context()); runner != nil {
		if status, ok := runner.Status(runID); ok {
			writeJSON(w, http.StatusOK, status)
			return
		}
	}

	store := svcctx.StoryStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "story store not initialized")
		return
	}

	run, err := store.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func (e *RunStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show progress for a generation run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp map[string]any
			if err := client.Get(cmd.Context(), "/api/runs/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CancelRunEndpoint handles POST /api/runs/{run_id}/cancel.
type CancelRunEndpoint struct{}

func (e *CancelRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/runs/{run_id}/cancel", e.handler
}

func (e *CancelRunEndpoint) RequiresInit() bool { return true }

func (e *CancelRunEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")

	runner := svcctx.RunnerFrom(r.Context())
	if runner == nil {
		writeError(w, http.StatusServiceUnavailable, "runner not initialized")
		return
	}

	if !runner.Cancel(runID) {
		writeError(w, http.StatusNotFound, "no active run with id "+runID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"cancelled": runID})
}

func (e *CancelRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "Cancel an active generation run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp map[string]string
			if err := client.Post(cmd.Context(), "/api/runs/"+args[0]+"/cancel", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ListRunsResponse contains the runs recorded for a story.
type ListRunsResponse struct {
	StoryID string      `json:"story_id"`
	Runs    []any       `json:"runs"`
	Active  []RunActive `json:"active,omitempty"`
}

// RunActive is a live run entry in a runs listing.
type RunActive struct {
	RunID     string `json:"run_id"`
	State     string `json:"state"`
	Queued    int    `json:"queued"`
	Running   int    `json:"running"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

// ListRunsEndpoint handles GET /api/stories/{id}/runs.
type ListRunsEndpoint struct{}

func (e *ListRunsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/stories/{id}/runs", e.handler
}

func (e *ListRunsEndpoint) RequiresInit() bool { return true }

func (e *ListRunsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	storyID := r.PathValue("id")

	store := svcctx.StoryStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "story store not initialized")
		return
	}

	runs, err := store.ListRuns(r.Context(), storyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs: "+err.Error())
		return
	}

	resp := ListRunsResponse{StoryID: storyID, Runs: make([]any, len(runs))}
	for i, run := range runs {
		resp.Runs[i] = run
	}

	if runner := svcctx.RunnerFrom(r.Context()); runner != nil {
		for _, rs := range runner.Active() {
			if rs.StoryID != storyID {
				continue
			}
			resp.Active = append(resp.Active, RunActive{
				RunID:     rs.RunID,
				State:     string(rs.State),
				Queued:    rs.Progress.Queued,
				Running:   rs.Progress.Active,
				Completed: rs.Progress.Completed,
				Failed:    rs.Progress.Failed,
			})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ListRunsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list <story-id>",
		Short: "List generation runs for a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListRunsResponse
			if err := client.Get(cmd.Context(), "/api/stories/"+args[0]+"/runs", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
