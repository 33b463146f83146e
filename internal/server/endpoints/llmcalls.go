package endpoints

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/soulscribe/soulscribe/internal/api"
	"github.com/soulscribe/soulscribe/internal/llmcall"
	"github.com/soulscribe/soulscribe/internal/svcctx"
)

// ListLLMCallsResponse contains a page of LLM call records.
type ListLLMCallsResponse struct {
	Calls []llmcall.Call `json:"calls"`
	Count int            `json:"count"`
}

// ListLLMCallsEndpoint handles GET /api/llmcalls.
type ListLLMCallsEndpoint struct{}

func (e *ListLLMCallsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls", e.handler
}

func (e *ListLLMCallsEndpoint) RequiresInit() bool { return true }

func (e *ListLLMCallsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "llm call store not initialized")
		return
	}

	q := r.URL.Query()
	filter := llmcall.QueryFilter{
		StoryID:  q.Get("story_id"),
		RunID:    q.Get("run_id"),
		Stage:    q.Get("stage"),
		Provider: q.Get("provider"),
		Model:    q.Get("model"),
	}
	if v := q.Get("chapter"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid chapter number")
			return
		}
		filter.ChapterNumber = n
	}
	if v := q.Get("success"); v != "" {
		success := v == "true"
		filter.Success = &success
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}
	if filter.Limit == 0 {
		filter.Limit = 100
	}

	calls, err := store.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list llm calls: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ListLLMCallsResponse{Calls: calls, Count: len(calls)})
}

func (e *ListLLMCallsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var storyID, runID, stage string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded LLM calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if storyID != "" {
				q.Set("story_id", storyID)
			}
			if runID != "" {
				q.Set("run_id", runID)
			}
			if stage != "" {
				q.Set("stage", stage)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			path := "/api/llmcalls"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			client := api.NewClient(getServerURL())
			var resp ListLLMCallsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&storyID, "story", "", "Filter by story ID")
	cmd.Flags().StringVar(&runID, "run", "", "Filter by run ID")
	cmd.Flags().StringVar(&stage, "stage", "", "Filter by pipeline stage")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max records to return")
	return cmd
}

// GetLLMCallEndpoint handles GET /api/llmcalls/{request_id}.
type GetLLMCallEndpoint struct{}

func (e *GetLLMCallEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls/{request_id}", e.handler
}

func (e *GetLLMCallEndpoint) RequiresInit() bool { return true }

func (e *GetLLMCallEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "llm call store not initialized")
		return
	}

	call, err := store.Get(r.Context(), r.PathValue("request_id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "llm call not found: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, call)
}

func (e *GetLLMCallEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <request-id>",
		Short: "Get one LLM call record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp llmcall.Call
			if err := client.Get(cmd.Context(), "/api/llmcalls/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// LLMCallCountsResponse contains per-stage call counts for a run.
type LLMCallCountsResponse struct {
	RunID  string         `json:"run_id"`
	Counts map[string]int `json:"counts"`
}

// LLMCallCountsEndpoint handles GET /api/runs/{run_id}/llmcalls.
type LLMCallCountsEndpoint struct{}

func (e *LLMCallCountsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/runs/{run_id}/llmcalls", e.handler
}

func (e *LLMCallCountsEndpoint) RequiresInit() bool { return true }

func (e *LLMCallCountsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "llm call store not initialized")
		return
	}

	runID := r.PathValue("run_id")
	counts, err := store.CountByStage(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count llm calls: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, LLMCallCountsResponse{RunID: runID, Counts: counts})
}

func (e *LLMCallCountsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "counts <run-id>",
		Short: "Show per-stage LLM call counts for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp LLMCallCountsResponse
			if err := client.Get(cmd.Context(), "/api/runs/"+args[0]+"/llmcalls", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
