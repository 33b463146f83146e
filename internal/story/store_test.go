package story

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/soulscribe/soulscribe/internal/storedb"
)

// graphqlServer answers every GraphQL request with the given body and records
// the queries it received.
func graphqlServer(t *testing.T, body string, queries *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var req storedb.GQLRequest
		_ = json.Unmarshal(raw, &req)
		if queries != nil {
			*queries = append(*queries, req.Query)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func TestCreateStory(t *testing.T) {
	var queries []string
	server := graphqlServer(t, `{"data": {"create_Story": [{"_docID": "bae-story-1"}]}}`, &queries)
	defer server.Close()

	store := NewStore(storedb.NewClient(server.URL), nil)
	docID, err := store.CreateStory(context.Background(), Story{
		Title:   "The Lighthouse",
		Premise: "A keeper who cannot sleep.",
		Outline: Outline{Chapters: []ChapterPlan{
			{Number: 1, Title: "Arrival"},
			{Number: 2, Title: "The Light", DependsOn: []int{1}},
		}},
	})
	if err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}
	if docID != "bae-story-1" {
		t.Errorf("unexpected docID: %s", docID)
	}

	if len(queries) != 1 {
		t.Fatalf("expected 1 query, got %d", len(queries))
	}
	if !strings.Contains(queries[0], "create_Story") {
		t.Errorf("expected create_Story mutation, got: %s", queries[0])
	}
	// Outline rides along JSON-encoded, default status applied.
	if !strings.Contains(queries[0], "depends_on") {
		t.Errorf("outline not serialized into mutation: %s", queries[0])
	}
	if !strings.Contains(queries[0], `status: "draft"`) {
		t.Errorf("default status missing: %s", queries[0])
	}
}

func TestGetStoryParsesOutline(t *testing.T) {
	outline := `{\"chapters\":[{\"number\":1,\"title\":\"Arrival\"},{\"number\":2,\"title\":\"The Light\",\"depends_on\":[1]}]}`
	body := `{"data": {"Story": [{
		"_docID": "bae-story-1",
		"title": "The Lighthouse",
		"premise": "A keeper who cannot sleep.",
		"status": "draft",
		"outline": "` + outline + `",
		"chapter_count": 2,
		"created_at": "2026-08-01T10:00:00Z"
	}]}}`
	server := graphqlServer(t, body, nil)
	defer server.Close()

	store := NewStore(storedb.NewClient(server.URL), nil)
	st, err := store.GetStory(context.Background(), "bae-story-1")
	if err != nil {
		t.Fatalf("GetStory() error = %v", err)
	}
	if st == nil {
		t.Fatal("expected story")
	}
	if len(st.Outline.Chapters) != 2 {
		t.Fatalf("expected 2 planned chapters, got %d", len(st.Outline.Chapters))
	}
	if got := st.Outline.Chapters[1].DependsOn; len(got) != 1 || got[0] != 1 {
		t.Errorf("unexpected depends_on: %v", got)
	}
}

func TestGetStoryNotFound(t *testing.T) {
	server := graphqlServer(t, `{"data": {"Story": []}}`, nil)
	defer server.Close()

	store := NewStore(storedb.NewClient(server.URL), nil)
	st, err := store.GetStory(context.Background(), "bae-missing")
	if err != nil {
		t.Fatalf("GetStory() error = %v", err)
	}
	if st != nil {
		t.Errorf("expected nil for missing story, got %+v", st)
	}
}

func TestSaveChapterUpserts(t *testing.T) {
	var queries []string
	server := graphqlServer(t, `{"data": {"upsert_Chapter": [{"_docID": "bae-ch-1"}]}}`, &queries)
	defer server.Close()

	store := NewStore(storedb.NewClient(server.URL), nil)
	docID, err := store.SaveChapter(context.Background(), Chapter{
		StoryID:      "bae-story-1",
		Number:       3,
		Title:        "The Storm",
		Content:      "Rain fell sideways.",
		WordCount:    3,
		QualityScore: 0.82,
		Attempts:     2,
	})
	if err != nil {
		t.Fatalf("SaveChapter() error = %v", err)
	}
	if docID != "bae-ch-1" {
		t.Errorf("unexpected docID: %s", docID)
	}

	// Saving the same chapter twice must go through upsert, not create.
	if !strings.Contains(queries[0], "upsert_Chapter") {
		t.Errorf("expected upsert_Chapter mutation, got: %s", queries[0])
	}
	if !strings.Contains(queries[0], "chapter_number: {_eq: 3}") {
		t.Errorf("upsert filter missing chapter_number: %s", queries[0])
	}
}

func TestSaveChapterValidation(t *testing.T) {
	store := NewStore(storedb.NewClient("http://localhost:0"), nil)

	if _, err := store.SaveChapter(context.Background(), Chapter{Number: 1}); err == nil {
		t.Error("expected error for missing story_id")
	}
	if _, err := store.SaveChapter(context.Background(), Chapter{StoryID: "s", Number: 0}); err == nil {
		t.Error("expected error for zero chapter number")
	}
}

func TestListChapters(t *testing.T) {
	body := `{"data": {"Chapter": [
		{"_docID": "bae-1", "chapter_number": 1, "title": "One", "quality_score": 0.9, "low_quality": false},
		{"_docID": "bae-2", "chapter_number": 2, "title": "Two", "quality_score": 0.5, "low_quality": true}
	]}}`
	server := graphqlServer(t, body, nil)
	defer server.Close()

	store := NewStore(storedb.NewClient(server.URL), nil)
	chapters, err := store.ListChapters(context.Background(), "bae-story-1")
	if err != nil {
		t.Fatalf("ListChapters() error = %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	if chapters[1].Number != 2 || !chapters[1].LowQuality {
		t.Errorf("unexpected chapter: %+v", chapters[1])
	}
}

func TestRunLifecycle(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var req storedb.GQLRequest
		_ = json.Unmarshal(raw, &req)
		queries = append(queries, req.Query)

		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(req.Query, "create_Run") {
			w.Write([]byte(`{"data": {"create_Run": [{"_docID": "bae-run-1"}]}}`))
			return
		}
		w.Write([]byte(`{"data": {"update_Run": [{"_docID": "bae-run-1"}]}}`))
	}))
	defer server.Close()

	store := NewStore(storedb.NewClient(server.URL), nil)

	docID, err := store.CreateRun(context.Background(), Run{
		RunID:            "run-abc",
		StoryID:          "bae-story-1",
		MaxConcurrency:   3,
		QualityThreshold: 0.7,
	})
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	err = store.FinishRun(context.Background(), docID, Run{
		Status:      RunStatusCompleted,
		Succeeded:   4,
		Failed:      1,
		MeanQuality: 0.81,
		ElapsedMS:   5200,
	})
	if err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	if !strings.Contains(queries[0], `status: "running"`) {
		t.Errorf("new run should start running: %s", queries[0])
	}
	if !strings.Contains(queries[1], `status: "completed"`) {
		t.Errorf("finished run should be completed: %s", queries[1])
	}
}
