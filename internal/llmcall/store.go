package llmcall

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soulscribe/soulscribe/internal/storedb"
)

// Store provides read access to LLM call records.
type Store struct {
	client *storedb.Client
}

// NewStore creates a new LLMCall store.
func NewStore(client *storedb.Client) *Store {
	return &Store{client: client}
}

// QueryFilter specifies filters for listing LLM calls.
type QueryFilter struct {
	StoryID       string
	RunID         string
	Stage         string
	ChapterNumber int
	Provider      string
	Model         string
	After         *time.Time
	Before        *time.Time
	Success       *bool
	Limit         int
	Offset        int
}

var callFields = []string{
	"request_id",
	"story_id",
	"run_id",
	"stage",
	"chapter_number",
	"provider",
	"model",
	"prompt_cid",
	"attempts",
	"success",
	"error_type",
	"error_message",
	"prompt_tokens",
	"completion_tokens",
	"total_tokens",
	"cost_usd",
	"execution_ms",
	"created_at",
}

// Get retrieves a single LLM call by request ID.
func (s *Store) Get(ctx context.Context, requestID string) (*Call, error) {
	query := fmt.Sprintf(`{
		LLMCall(filter: {request_id: {_eq: %q}}) {
			%s
		}
	}`, requestID, strings.Join(callFields, "\n\t\t\t"))

	resp, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	calls, err := parseCalls(resp.Data)
	if err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return nil, nil
	}
	return &calls[0], nil
}

// List retrieves LLM calls matching the filter.
func (s *Store) List(ctx context.Context, filter QueryFilter) ([]Call, error) {
	var conditions []string

	if filter.StoryID != "" {
		conditions = append(conditions, fmt.Sprintf(`story_id: {_eq: %q}`, filter.StoryID))
	}
	if filter.RunID != "" {
		conditions = append(conditions, fmt.Sprintf(`run_id: {_eq: %q}`, filter.RunID))
	}
	if filter.Stage != "" {
		conditions = append(conditions, fmt.Sprintf(`stage: {_eq: %q}`, filter.Stage))
	}
	if filter.ChapterNumber > 0 {
		conditions = append(conditions, fmt.Sprintf(`chapter_number: {_eq: %d}`, filter.ChapterNumber))
	}
	if filter.Provider != "" {
		conditions = append(conditions, fmt.Sprintf(`provider: {_eq: %q}`, filter.Provider))
	}
	if filter.Model != "" {
		conditions = append(conditions, fmt.Sprintf(`model: {_eq: %q}`, filter.Model))
	}
	if filter.Success != nil {
		conditions = append(conditions, fmt.Sprintf(`success: {_eq: %t}`, *filter.Success))
	}
	if filter.After != nil {
		conditions = append(conditions, fmt.Sprintf(`created_at: {_gt: %q}`, filter.After.Format(time.RFC3339)))
	}
	if filter.Before != nil {
		conditions = append(conditions, fmt.Sprintf(`created_at: {_lt: %q}`, filter.Before.Format(time.RFC3339)))
	}

	var args []string
	if len(conditions) > 0 {
		args = append(args, fmt.Sprintf("filter: {%s}", strings.Join(conditions, ", ")))
	}
	if filter.Limit > 0 {
		args = append(args, fmt.Sprintf("limit: %d", filter.Limit))
	}
	if filter.Offset > 0 {
		args = append(args, fmt.Sprintf("offset: %d", filter.Offset))
	}

	argsStr := ""
	if len(args) > 0 {
		argsStr = fmt.Sprintf("(%s)", strings.Join(args, ", "))
	}

	query := fmt.Sprintf(`{
		LLMCall%s {
			%s
		}
	}`, argsStr, strings.Join(callFields, "\n\t\t\t"))

	resp, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	return parseCalls(resp.Data)
}

// CountByStage returns call counts grouped by pipeline stage for a run.
// DefraDB has no GROUP BY, so we fetch and aggregate client-side.
func (s *Store) CountByStage(ctx context.Context, runID string) (map[string]int, error) {
	calls, err := s.List(ctx, QueryFilter{RunID: runID})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, c := range calls {
		counts[c.Stage]++
	}
	return counts, nil
}

// parseCalls parses LLMCall entries from GraphQL response data.
func parseCalls(data map[string]any) ([]Call, error) {
	callData, ok := data["LLMCall"]
	if !ok {
		return nil, nil
	}

	docs, ok := callData.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected LLMCall type: %T", callData)
	}

	calls := make([]Call, 0, len(docs))
	for _, d := range docs {
		doc, ok := d.(map[string]any)
		if !ok {
			continue
		}

		call := Call{}
		if v, ok := doc["request_id"].(string); ok {
			call.RequestID = v
		}
		if v, ok := doc["story_id"].(string); ok {
			call.StoryID = v
		}
		if v, ok := doc["run_id"].(string); ok {
			call.RunID = v
		}
		if v, ok := doc["stage"].(string); ok {
			call.Stage = v
		}
		if v, ok := doc["chapter_number"].(float64); ok {
			call.ChapterNumber = int(v)
		}
		if v, ok := doc["provider"].(string); ok {
			call.Provider = v
		}
		if v, ok := doc["model"].(string); ok {
			call.Model = v
		}
		if v, ok := doc["prompt_cid"].(string); ok {
			call.PromptCID = v
		}
		if v, ok := doc["attempts"].(float64); ok {
			call.Attempts = int(v)
		}
		if v, ok := doc["success"].(bool); ok {
			call.Success = v
		}
		if v, ok := doc["error_type"].(string); ok {
			call.ErrorType = v
		}
		if v, ok := doc["error_message"].(string); ok {
			call.ErrorMessage = v
		}
		if v, ok := doc["prompt_tokens"].(float64); ok {
			call.PromptTokens = int(v)
		}
		if v, ok := doc["completion_tokens"].(float64); ok {
			call.CompletionTokens = int(v)
		}
		if v, ok := doc["total_tokens"].(float64); ok {
			call.TotalTokens = int(v)
		}
		if v, ok := doc["cost_usd"].(float64); ok {
			call.CostUSD = v
		}
		if v, ok := doc["execution_ms"].(float64); ok {
			call.ExecutionMs = int(v)
		}
		if v, ok := doc["created_at"].(string); ok {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				call.CreatedAt = t
			}
		}

		calls = append(calls, call)
	}

	return calls, nil
}
