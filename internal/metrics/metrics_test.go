package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/soulscribe/soulscribe/internal/providers"
	"github.com/soulscribe/soulscribe/internal/storedb"
)

func TestMetricToMap(t *testing.T) {
	m := Metric{
		StoryID:          "story-1",
		RunID:            "run-1",
		Stage:            StageChapter,
		ChapterNumber:    3,
		Provider:         "openrouter",
		Model:            "anthropic/claude-sonnet-4",
		CostUSD:          0.0123,
		PromptTokens:     500,
		CompletionTokens: 1200,
		TotalTokens:      1700,
		ExecutionSeconds: 4.2,
		Success:          true,
		CreatedAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	doc := m.ToMap()

	if doc["stage"] != StageChapter {
		t.Errorf("stage = %v, want %q", doc["stage"], StageChapter)
	}
	if doc["chapter_number"] != 3 {
		t.Errorf("chapter_number = %v, want 3", doc["chapter_number"])
	}
	if doc["success"] != true {
		t.Errorf("success = %v, want true", doc["success"])
	}
	if doc["created_at"] != "2026-03-01T12:00:00Z" {
		t.Errorf("created_at = %v", doc["created_at"])
	}
	if _, ok := doc["error_type"]; ok {
		t.Error("error_type should be omitted when empty")
	}
	if _, ok := doc["total_seconds"]; ok {
		t.Error("total_seconds should be omitted when zero")
	}
}

func TestRecordChat(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req storedb.GQLRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotQuery = req.Query
		fmt.Fprint(w, `{"data":{"create_Metric":[{"_docID":"bae-metric-1"}]}}`)
	}))
	defer server.Close()

	recorder := NewRecorder(storedb.NewClient(server.URL))

	result := &providers.ChatResult{
		Provider:         "openrouter",
		ModelUsed:        "anthropic/claude-sonnet-4",
		Success:          true,
		CostUSD:          0.05,
		PromptTokens:     100,
		CompletionTokens: 400,
		TotalTokens:      500,
		ExecutionTime:    2 * time.Second,
		TotalTime:        3 * time.Second,
	}

	docID, err := recorder.RecordChat(context.Background(), RecordOpts{
		StoryID:       "story-1",
		RunID:         "run-1",
		Stage:         StageChapter,
		ChapterNumber: 2,
	}, result)
	if err != nil {
		t.Fatalf("RecordChat: %v", err)
	}
	if docID != "bae-metric-1" {
		t.Errorf("docID = %q, want bae-metric-1", docID)
	}

	for _, want := range []string{
		`stage: "chapter"`,
		`provider: "openrouter"`,
		`chapter_number: 2`,
		`total_tokens: 500`,
		"execution_seconds: 2",
	} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("mutation missing %q:\n%s", want, gotQuery)
		}
	}
}

func TestBuildFilterClause(t *testing.T) {
	success := true
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{
			name:   "empty",
			filter: Filter{},
			want:   nil,
		},
		{
			name:   "story and stage",
			filter: Filter{StoryID: "story-1", Stage: StageReview},
			want:   []string{`story_id: {_eq: "story-1"}`, `stage: {_eq: "review"}`},
		},
		{
			name:   "success pointer",
			filter: Filter{Success: &success},
			want:   []string{"success: {_eq: true}"},
		},
		{
			name:   "time range",
			filter: Filter{After: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
			want:   []string{`created_at: {_gt: "2026-01-01T00:00:00Z"}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildFilterClause(tt.filter)
			if len(tt.want) == 0 {
				if got != "" {
					t.Errorf("got %q, want empty", got)
				}
				return
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("clause %q missing %q", got, w)
				}
			}
		})
	}
}

func TestQueryList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"Metric":[
			{"_docID":"bae-1","stage":"chapter","chapter_number":1,"cost_usd":0.02,"total_tokens":800,"execution_seconds":3.5,"success":true,"created_at":"2026-03-01T12:00:00Z"},
			{"_docID":"bae-2","stage":"review","chapter_number":1,"cost_usd":0.001,"total_tokens":200,"execution_seconds":1.1,"success":false,"error_type":"rate_limit"}
		]}}`)
	}))
	defer server.Close()

	q := NewQuery(storedb.NewClient(server.URL))
	metrics, err := q.List(context.Background(), Filter{}, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metrics) != 2 {
		t.Fatalf("got %d metrics, want 2", len(metrics))
	}
	if metrics[0].Stage != StageChapter || metrics[0].ChapterNumber != 1 {
		t.Errorf("first metric = %+v", metrics[0])
	}
	if metrics[0].CreatedAt.IsZero() {
		t.Error("created_at not parsed")
	}
	if metrics[1].Success || metrics[1].ErrorType != "rate_limit" {
		t.Errorf("second metric = %+v", metrics[1])
	}
}

func TestSummarize(t *testing.T) {
	metrics := []Metric{
		{Stage: StageChapter, Success: true, CostUSD: 0.02, TotalTokens: 800, TotalSeconds: 3},
		{Stage: StageChapter, Success: true, CostUSD: 0.03, TotalTokens: 900, TotalSeconds: 4},
		{Stage: StageReview, Success: false, ErrorType: "rate_limit", CostUSD: 0, TotalTokens: 0},
	}

	s := Summarize(metrics)

	if s.TotalCalls != 3 || s.SuccessfulCalls != 2 || s.FailedCalls != 1 {
		t.Errorf("counts = %d/%d/%d", s.TotalCalls, s.SuccessfulCalls, s.FailedCalls)
	}
	if s.TotalCostUSD != 0.05 {
		t.Errorf("cost = %v, want 0.05", s.TotalCostUSD)
	}
	if s.TotalTokens != 1700 {
		t.Errorf("tokens = %d, want 1700", s.TotalTokens)
	}
	if s.ByStage[StageChapter] != 2 || s.ByStage[StageReview] != 1 {
		t.Errorf("by stage = %v", s.ByStage)
	}
	if s.ByErrorType["rate_limit"] != 1 {
		t.Errorf("by error type = %v", s.ByErrorType)
	}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 0.5, 0},
		{"single", []float64{5}, 0.95, 5},
		{"median of two", []float64{1, 3}, 0.5, 2},
		{"p50 of five", []float64{1, 2, 3, 4, 5}, 0.5, 3},
		{"p100", []float64{1, 2, 3}, 1.0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := percentile(tt.sorted, tt.p)
			if got != tt.want {
				t.Errorf("percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestBucketBy(t *testing.T) {
	metrics := []Metric{
		{Model: "model-a", CostUSD: 0.01, TotalTokens: 100},
		{Model: "model-b", CostUSD: 0.50, TotalTokens: 5000},
		{Model: "model-a", CostUSD: 0.02, TotalTokens: 200},
	}

	buckets := bucketBy(metrics, func(m Metric) string { return m.Model })

	if len(buckets) != 2 {
		t.Fatalf("got %d buckets, want 2", len(buckets))
	}
	if buckets[0].Key != "model-b" {
		t.Errorf("most expensive first: got %q", buckets[0].Key)
	}
	if buckets[1].Calls != 2 || buckets[1].TotalCostUSD != 0.03 {
		t.Errorf("model-a bucket = %+v", buckets[1])
	}
}
