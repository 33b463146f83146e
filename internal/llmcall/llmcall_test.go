package llmcall

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

func TestFromChatResult(t *testing.T) {
	result := &providers.ChatResult{
		RequestID:        "req-1",
		Provider:         "openrouter",
		ModelUsed:        "anthropic/claude-sonnet-4",
		PromptTokens:     100,
		CompletionTokens: 400,
		TotalTokens:      500,
		CostUSD:          0.05,
		ExecutionTime:    1500 * time.Millisecond,
		Attempts:         2,
		Success:          true,
	}

	call := FromChatResult(result, RecordOptions{
		StoryID:       "story-1",
		RunID:         "run-1",
		Stage:         "chapter",
		ChapterNumber: 3,
		PromptCID:     "bafy-prompt-1",
	})

	if call.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", call.RequestID)
	}
	if call.ExecutionMs != 1500 {
		t.Errorf("ExecutionMs = %d, want 1500", call.ExecutionMs)
	}
	if call.ChapterNumber != 3 || call.PromptCID != "bafy-prompt-1" {
		t.Errorf("context fields = %+v", call)
	}
	if call.ErrorType != "" {
		t.Errorf("ErrorType should be empty on success, got %q", call.ErrorType)
	}
	if call.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestFromChatResultFailure(t *testing.T) {
	result := &providers.ChatResult{
		Provider:     "openrouter",
		ModelUsed:    "test-model",
		Success:      false,
		ErrorType:    "rate_limit",
		ErrorMessage: "too many requests",
	}

	call := FromChatResult(result, RecordOptions{})

	if call.RequestID == "" {
		t.Error("RequestID should be generated when result has none")
	}
	if call.ErrorType != "rate_limit" || call.ErrorMessage != "too many requests" {
		t.Errorf("error fields = %q / %q", call.ErrorType, call.ErrorMessage)
	}
}

func TestFromChatResultNil(t *testing.T) {
	if call := FromChatResult(nil, RecordOptions{}); call != nil {
		t.Errorf("got %+v, want nil", call)
	}
}

func TestCallToMapOmitsEmpty(t *testing.T) {
	call := &Call{
		RequestID: "req-1",
		Provider:  "openrouter",
		Model:     "test-model",
		Success:   true,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	m := call.ToMap()

	if m["request_id"] != "req-1" {
		t.Errorf("request_id = %v", m["request_id"])
	}
	for _, key := range []string{"story_id", "error_type", "prompt_tokens", "cost_usd"} {
		if _, ok := m[key]; ok {
			t.Errorf("%s should be omitted when zero", key)
		}
	}
	if m["created_at"] != "2026-03-01T12:00:00Z" {
		t.Errorf("created_at = %v", m["created_at"])
	}
}

func TestRecorderThroughSink(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req storedb.GQLRequest
		json.NewDecoder(r.Body).Decode(&req)
		queries = append(queries, req.Query)
		fmt.Fprint(w, `{"data":{"create_LLMCall":[{"_docID":"bae-call-1"}]}}`)
	}))
	defer server.Close()

	sink := storedb.NewSink(storedb.SinkConfig{
		Client:        storedb.NewClient(server.URL),
		FlushInterval: time.Hour,
	})
	sink.Start(context.Background())

	recorder := NewRecorder(sink)
	recorder.Record(&providers.ChatResult{
		RequestID: "req-1",
		Provider:  "openrouter",
		ModelUsed: "test-model",
		Success:   true,
	}, RecordOptions{StoryID: "story-1", Stage: "review"})

	sink.Stop()

	if len(queries) != 1 {
		t.Fatalf("got %d mutations, want 1", len(queries))
	}
	for _, want := range []string{"create_LLMCall", `story_id: "story-1"`, `stage: "review"`} {
		if !strings.Contains(queries[0], want) {
			t.Errorf("mutation missing %q:\n%s", want, queries[0])
		}
	}
}

func TestStoreList(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req storedb.GQLRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotQuery = req.Query
		fmt.Fprint(w, `{"data":{"LLMCall":[
			{"request_id":"req-1","stage":"chapter","chapter_number":1,"provider":"openrouter","success":true,"total_tokens":500,"execution_ms":1500,"created_at":"2026-03-01T12:00:00Z"},
			{"request_id":"req-2","stage":"review","chapter_number":1,"provider":"openrouter","success":false,"error_type":"timeout"}
		]}}`)
	}))
	defer server.Close()

	store := NewStore(storedb.NewClient(server.URL))
	success := true
	calls, err := store.List(context.Background(), QueryFilter{
		RunID:   "run-1",
		Success: &success,
		Limit:   10,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	for _, want := range []string{`run_id: {_eq: "run-1"}`, "success: {_eq: true}", "limit: 10"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query missing %q:\n%s", want, gotQuery)
		}
	}

	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].ExecutionMs != 1500 || calls[0].TotalTokens != 500 {
		t.Errorf("first call = %+v", calls[0])
	}
	if calls[1].ErrorType != "timeout" {
		t.Errorf("second call error type = %q", calls[1].ErrorType)
	}
}

func TestCountByStage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"LLMCall":[
			{"request_id":"a","stage":"chapter"},
			{"request_id":"b","stage":"chapter"},
			{"request_id":"c","stage":"review"}
		]}}`)
	}))
	defer server.Close()

	store := NewStore(storedb.NewClient(server.URL))
	counts, err := store.CountByStage(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("CountByStage: %v", err)
	}
	if counts["chapter"] != 2 || counts["review"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
