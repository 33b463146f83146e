package storygen

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/soulscribe/soulscribe/internal/providers"
	"github.com/soulscribe/soulscribe/internal/scheduler"
)

func draftJSON(t *testing.T, title, content, summary string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"title":   title,
		"content": content,
		"summary": summary,
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func reviewJSON(t *testing.T, score float64, improvements ...string) json.RawMessage {
	t.Helper()
	if improvements == nil {
		improvements = []string{}
	}
	b, err := json.Marshal(map[string]any{
		"score":        score,
		"strengths":    []string{"readable"},
		"improvements": improvements,
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestGeneratorProducesDraft(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Latency = 0
	mock.ResponseJSON = draftJSON(t, "The Door", "She opened the door. Nothing was behind it.", "The door is opened and found empty.")

	gen := NewGenerator(mock, GeneratorConfig{
		Model: "test-model",
		Plans: map[int]string{1: "Protagonist opens the door."},
	})

	job := scheduler.Job{ID: 1, Title: "Chapter One", Complexity: 0.5}
	draft, err := gen.Generate(context.Background(), job, "A house with one locked door.")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if draft.Title != "The Door" {
		t.Errorf("expected model title, got %q", draft.Title)
	}
	if draft.Summary != "The door is opened and found empty." {
		t.Errorf("unexpected summary: %q", draft.Summary)
	}
	if draft.WordCount != 8 {
		t.Errorf("expected word count 8, got %d", draft.WordCount)
	}
}

func TestGeneratorPlainTextFallback(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Latency = 0
	mock.ResponseText = "First sentence. Second sentence. Third sentence. Fourth sentence."

	gen := NewGenerator(mock, GeneratorConfig{})

	draft, err := gen.Generate(context.Background(), scheduler.Job{ID: 2, Title: "Two"}, "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if draft.Title != "Two" {
		t.Errorf("expected job title fallback, got %q", draft.Title)
	}
	want := "First sentence. Second sentence. Third sentence."
	if draft.Summary != want {
		t.Errorf("summary = %q, want %q", draft.Summary, want)
	}
}

func TestGeneratorProviderError(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Latency = 0
	mock.ShouldFail = true

	gen := NewGenerator(mock, GeneratorConfig{})

	_, err := gen.Generate(context.Background(), scheduler.Job{ID: 1}, "")
	if err == nil {
		t.Fatal("expected error from failing provider")
	}
	if !strings.Contains(err.Error(), "chapter 1") {
		t.Errorf("error should name the chapter: %v", err)
	}
}

func TestGeneratorReportsChatResults(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Latency = 0
	mock.ResponseJSON = draftJSON(t, "T", "Body text.", "Summary.")

	var seen []*providers.ChatResult
	gen := NewGenerator(mock, GeneratorConfig{
		OnChatResult: func(r *providers.ChatResult) { seen = append(seen, r) },
	})

	if _, err := gen.Generate(context.Background(), scheduler.Job{ID: 1}, ""); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("expected 1 chat result, got %d", len(seen))
	}
	if !seen[0].Success {
		t.Error("expected successful chat result")
	}
}

func TestScorerParsesReview(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Latency = 0
	mock.ResponseJSON = reviewJSON(t, 0.45, "tighten the opening", "resolve the cliffhanger")

	scorer := NewScorer(mock, ScorerConfig{ContextText: "premise"})

	score, err := scorer.Score(context.Background(), &scheduler.Draft{JobID: 3, Title: "Three", Content: "text"})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score.Value != 0.45 {
		t.Errorf("score = %v, want 0.45", score.Value)
	}
	if len(score.Hints) != 2 || score.Hints[0] != "tighten the opening" {
		t.Errorf("unexpected hints: %v", score.Hints)
	}
}

func TestScorerRejectsOutOfRangeScore(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Latency = 0
	mock.ResponseJSON = reviewJSON(t, 1.5)

	scorer := NewScorer(mock, ScorerConfig{})

	if _, err := scorer.Score(context.Background(), &scheduler.Draft{JobID: 1, Content: "text"}); err == nil {
		t.Fatal("expected error for out-of-range score")
	}
}

// TestSchedulerIntegration runs the real scheduler over storygen's generator
// and scorer with mock clients end to end.
func TestSchedulerIntegration(t *testing.T) {
	genClient := providers.NewMockClient()
	genClient.Latency = time.Millisecond
	genClient.ResponseJSON = draftJSON(t, "A Chapter", "Chapter prose goes here.", "Things happened.")

	reviewClient := providers.NewMockClient()
	reviewClient.Latency = 0
	reviewClient.ResponseJSON = reviewJSON(t, 0.9)

	gen := NewGenerator(genClient, GeneratorConfig{Plans: map[int]string{1: "setup", 2: "payoff"}})
	scorer := NewScorer(reviewClient, ScorerConfig{ContextText: "premise"})

	sched := scheduler.New(gen, scorer, scheduler.Config{
		MaxConcurrency: 2,
		RetryDelay:     time.Millisecond,
	})

	jobs := []scheduler.Job{
		{ID: 1, Title: "One"},
		{ID: 2, Title: "Two", DependsOn: []int{1}},
	}

	report, err := sched.Run(context.Background(), jobs, "premise")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Succeeded != 2 {
		t.Fatalf("expected 2 succeeded, got %d", report.Succeeded)
	}
	if len(report.Drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(report.Drafts))
	}
	if report.MeanQuality != 0.9 {
		t.Errorf("mean quality = %v, want 0.9", report.MeanQuality)
	}
}

func TestFallbackSummary(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"empty", "", 3, ""},
		{"fewer than limit", "Only one.", 3, "Only one."},
		{"truncates", "A. B. C. D.", 2, "A. B."},
		{"question and bang", "What? Yes! More.", 2, "What? Yes!"},
		{"decimal not sentence end", "Pi is 3.14 roughly. Next.", 1, "Pi is 3.14 roughly."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FallbackSummary(tt.text, tt.n); got != tt.want {
				t.Errorf("FallbackSummary(%q, %d) = %q, want %q", tt.text, tt.n, got, tt.want)
			}
		})
	}
}
