package endpoints

import (
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/soulscribe/soulscribe/internal/api"
	"github.com/soulscribe/soulscribe/internal/metrics"
	"github.com/soulscribe/soulscribe/internal/svcctx"
)

// filterFromQuery builds a metrics filter from request query parameters.
func filterFromQuery(q url.Values) metrics.Filter {
	f := metrics.Filter{
		StoryID:  q.Get("story_id"),
		RunID:    q.Get("run_id"),
		Stage:    q.Get("stage"),
		Provider: q.Get("provider"),
		Model:    q.Get("model"),
	}
	if v := q.Get("after"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.After = t
		}
	}
	if v := q.Get("before"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.Before = t
		}
	}
	if v := q.Get("success"); v != "" {
		success := v == "true"
		f.Success = &success
	}
	return f
}

// metricsQueryFlags adds the shared filter flags to a metrics command and
// returns a func that renders them as a query string.
func metricsQueryFlags(cmd *cobra.Command) func() string {
	var storyID, runID, stage string
	cmd.Flags().StringVar(&storyID, "story", "", "Filter by story ID")
	cmd.Flags().StringVar(&runID, "run", "", "Filter by run ID")
	cmd.Flags().StringVar(&stage, "stage", "", "Filter by pipeline stage")
	return func() string {
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
		if len(q) == 0 {
			return ""
		}
		return "?" + q.Encode()
	}
}

// MetricsSummaryEndpoint handles GET /api/metrics/summary.
type MetricsSummaryEndpoint struct{}

func (e *MetricsSummaryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/metrics/summary", e.handler
}

func (e *MetricsSummaryEndpoint) RequiresInit() bool { return true }

func (e *MetricsSummaryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	query := svcctx.MetricsQueryFrom(r.Context())
	if query == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics not initialized")
		return
	}

	summary, err := query.GetSummary(r.Context(), filterFromQuery(r.URL.Query()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to summarize metrics: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (e *MetricsSummaryEndpoint) Command(getServerURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show aggregate LLM and TTS usage",
	}
	queryString := metricsQueryFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		client := api.NewClient(getServerURL())
		var resp metrics.Summary
		if err := client.Get(cmd.Context(), "/api/metrics/summary"+queryString(), &resp); err != nil {
			return err
		}
		return api.Output(resp)
	}
	return cmd
}

// MetricsCostResponse breaks down spend by model and provider.
type MetricsCostResponse struct {
	TotalCostUSD float64              `json:"total_cost_usd"`
	ByModel      []metrics.CostBucket `json:"by_model"`
	ByProvider   []metrics.CostBucket `json:"by_provider"`
}

// MetricsCostEndpoint handles GET /api/metrics/cost.
type MetricsCostEndpoint struct{}

func (e *MetricsCostEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/metrics/cost", e.handler
}

func (e *MetricsCostEndpoint) RequiresInit() bool { return true }

func (e *MetricsCostEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	query := svcctx.MetricsQueryFrom(r.Context())
	if query == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics not initialized")
		return
	}

	f := filterFromQuery(r.URL.Query())

	byModel, err := query.CostByModel(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute cost: "+err.Error())
		return
	}
	byProvider, err := query.CostByProvider(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute cost: "+err.Error())
		return
	}

	var total float64
	for _, b := range byModel {
		total += b.TotalCostUSD
	}

	writeJSON(w, http.StatusOK, MetricsCostResponse{
		TotalCostUSD: total,
		ByModel:      byModel,
		ByProvider:   byProvider,
	})
}

func (e *MetricsCostEndpoint) Command(getServerURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Show cost breakdown by model and provider",
	}
	queryString := metricsQueryFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		client := api.NewClient(getServerURL())
		var resp MetricsCostResponse
		if err := client.Get(cmd.Context(), "/api/metrics/cost"+queryString(), &resp); err != nil {
			return err
		}
		return api.Output(resp)
	}
	return cmd
}

// MetricsStagesResponse contains per-stage latency and cost stats.
type MetricsStagesResponse struct {
	Stages []metrics.DetailedStats `json:"stages"`
}

// MetricsStagesEndpoint handles GET /api/metrics/stages.
type MetricsStagesEndpoint struct{}

func (e *MetricsStagesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/metrics/stages", e.handler
}

func (e *MetricsStagesEndpoint) RequiresInit() bool { return true }

func (e *MetricsStagesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	query := svcctx.MetricsQueryFrom(r.Context())
	if query == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics not initialized")
		return
	}

	stages, err := query.StageBreakdown(r.Context(), filterFromQuery(r.URL.Query()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute stage stats: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, MetricsStagesResponse{Stages: stages})
}

func (e *MetricsStagesEndpoint) Command(getServerURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Show per-stage latency percentiles and cost",
	}
	queryString := metricsQueryFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		client := api.NewClient(getServerURL())
		var resp MetricsStagesResponse
		if err := client.Get(cmd.Context(), "/api/metrics/stages"+queryString(), &resp); err != nil {
			return err
		}
		return api.Output(resp)
	}
	return cmd
}
