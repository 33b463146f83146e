package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Summary holds aggregate statistics over a set of metrics.
type Summary struct {
	TotalCalls       int            `json:"total_calls"`
	SuccessfulCalls  int            `json:"successful_calls"`
	FailedCalls      int            `json:"failed_calls"`
	TotalCostUSD     float64        `json:"total_cost_usd"`
	TotalTokens      int            `json:"total_tokens"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	TotalSeconds     float64        `json:"total_seconds"`
	ByStage          map[string]int `json:"by_stage,omitempty"`
	ByErrorType      map[string]int `json:"by_error_type,omitempty"`
}

// GetSummary computes a Summary for metrics matching the filter.
func (q *Query) GetSummary(ctx context.Context, f Filter) (*Summary, error) {
	metrics, err := q.List(ctx, f, 0)
	if err != nil {
		return nil, err
	}
	return Summarize(metrics), nil
}

// Summarize computes aggregate statistics over a metric slice.
func Summarize(metrics []Metric) *Summary {
	s := &Summary{
		ByStage:     make(map[string]int),
		ByErrorType: make(map[string]int),
	}

	for _, m := range metrics {
		s.TotalCalls++
		if m.Success {
			s.SuccessfulCalls++
		} else {
			s.FailedCalls++
			if m.ErrorType != "" {
				s.ByErrorType[m.ErrorType]++
			}
		}
		s.TotalCostUSD += m.CostUSD
		s.TotalTokens += m.TotalTokens
		s.PromptTokens += m.PromptTokens
		s.CompletionTokens += m.CompletionTokens
		s.TotalSeconds += m.TotalSeconds
		if m.Stage != "" {
			s.ByStage[m.Stage]++
		}
	}

	return s
}

// TotalCost returns the total cost in USD for metrics matching the filter.
func (q *Query) TotalCost(ctx context.Context, f Filter) (float64, error) {
	metrics, err := q.List(ctx, f, 0)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, m := range metrics {
		total += m.CostUSD
	}
	return total, nil
}

// DetailedStats holds latency and token distributions for one stage.
type DetailedStats struct {
	Stage        string  `json:"stage"`
	Calls        int     `json:"calls"`
	Failures     int     `json:"failures"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	TotalTokens  int     `json:"total_tokens"`
	MeanSeconds  float64 `json:"mean_seconds"`
	P50Seconds   float64 `json:"p50_seconds"`
	P95Seconds   float64 `json:"p95_seconds"`
	MaxSeconds   float64 `json:"max_seconds"`
}

// StageBreakdown computes per-stage detailed statistics for a story run.
func (q *Query) StageBreakdown(ctx context.Context, f Filter) ([]DetailedStats, error) {
	metrics, err := q.List(ctx, f, 0)
	if err != nil {
		return nil, err
	}

	byStage := make(map[string][]Metric)
	for _, m := range metrics {
		stage := m.Stage
		if stage == "" {
			stage = "unknown"
		}
		byStage[stage] = append(byStage[stage], m)
	}

	var stages []string
	for stage := range byStage {
		stages = append(stages, stage)
	}
	sort.Strings(stages)

	var stats []DetailedStats
	for _, stage := range stages {
		group := byStage[stage]
		ds := DetailedStats{Stage: stage, Calls: len(group)}

		var durations []float64
		var totalSeconds float64
		for _, m := range group {
			if !m.Success {
				ds.Failures++
			}
			ds.TotalCostUSD += m.CostUSD
			ds.TotalTokens += m.TotalTokens
			durations = append(durations, m.ExecutionSeconds)
			totalSeconds += m.ExecutionSeconds
			if m.ExecutionSeconds > ds.MaxSeconds {
				ds.MaxSeconds = m.ExecutionSeconds
			}
		}
		if len(durations) > 0 {
			ds.MeanSeconds = totalSeconds / float64(len(durations))
			sort.Float64s(durations)
			ds.P50Seconds = percentile(durations, 0.50)
			ds.P95Seconds = percentile(durations, 0.95)
		}
		stats = append(stats, ds)
	}

	return stats, nil
}

// percentile computes the p-th percentile of sorted values using linear
// interpolation between adjacent ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// CostBucket holds cost attribution for one model or provider.
type CostBucket struct {
	Key          string  `json:"key"`
	Calls        int     `json:"calls"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	TotalTokens  int     `json:"total_tokens"`
}

// CostByModel returns cost buckets grouped by model, most expensive first.
func (q *Query) CostByModel(ctx context.Context, f Filter) ([]CostBucket, error) {
	metrics, err := q.List(ctx, f, 0)
	if err != nil {
		return nil, err
	}
	return bucketBy(metrics, func(m Metric) string { return m.Model }), nil
}

// CostByProvider returns cost buckets grouped by provider, most expensive first.
func (q *Query) CostByProvider(ctx context.Context, f Filter) ([]CostBucket, error) {
	metrics, err := q.List(ctx, f, 0)
	if err != nil {
		return nil, err
	}
	return bucketBy(metrics, func(m Metric) string { return m.Provider }), nil
}

func bucketBy(metrics []Metric, keyFn func(Metric) string) []CostBucket {
	buckets := make(map[string]*CostBucket)
	for _, m := range metrics {
		key := keyFn(m)
		if key == "" {
			key = "unknown"
		}
		b, ok := buckets[key]
		if !ok {
			b = &CostBucket{Key: key}
			buckets[key] = b
		}
		b.Calls++
		b.TotalCostUSD += m.CostUSD
		b.TotalTokens += m.TotalTokens
	}

	result := make([]CostBucket, 0, len(buckets))
	for _, b := range buckets {
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalCostUSD != result[j].TotalCostUSD {
			return result[i].TotalCostUSD > result[j].TotalCostUSD
		}
		return result[i].Key < result[j].Key
	})
	return result
}

// FormatCost renders a USD amount for display.
func FormatCost(usd float64) string {
	if usd < 0.01 && usd > 0 {
		return fmt.Sprintf("$%.6f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

// FormatDuration renders seconds for display.
func FormatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(100 * time.Millisecond).String()
}
