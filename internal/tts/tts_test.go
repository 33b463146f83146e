package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/soulscribe/soulscribe/internal/providers"
	"github.com/soulscribe/soulscribe/internal/storedb"
	"github.com/soulscribe/soulscribe/internal/story"
)

func TestSplitIntoChunks(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty",
			text: "",
			want: nil,
		},
		{
			name: "single sentence",
			text: "The door creaked open.",
			want: []string{"The door creaked open."},
		},
		{
			name: "two sentences",
			text: "The door creaked open. Nobody was there.",
			want: []string{"The door creaked open.", "Nobody was there."},
		},
		{
			name: "abbreviation not split",
			text: "Dr. Hale frowned. The lab was empty.",
			want: []string{"Dr. Hale frowned.", "The lab was empty."},
		},
		{
			name: "decimal not split",
			text: "It weighed 3.5 tons. They pushed anyway.",
			want: []string{"It weighed 3.5 tons.", "They pushed anyway."},
		},
		{
			name: "exclamation and question",
			text: "Run! Where are you going?",
			want: []string{"Run!", "Where are you going?"},
		},
		{
			name: "newlines collapsed",
			text: "First line.\n\nSecond line.",
			want: []string{"First line.", "Second line."},
		},
		{
			name: "quoted sentence start",
			text: `He stopped. "Listen," she said.`,
			want: []string{"He stopped.", `"Listen," she said.`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitIntoChunks(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d chunks %q, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitLongSegment(t *testing.T) {
	// A single run-on sentence longer than the chunk limit must be split at
	// clause boundaries, never dropped.
	var b strings.Builder
	for i := 0; i < 600; i++ {
		fmt.Fprintf(&b, "clause %d, ", i)
	}
	text := strings.TrimSuffix(b.String(), ", ") + "."

	chunks := SplitIntoChunks(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	total := 0
	for i, c := range chunks {
		if len([]rune(c)) > maxChunkChars {
			t.Errorf("chunk %d exceeds limit: %d runes", i, len([]rune(c)))
		}
		total += len(c)
	}
	// Some separators get trimmed but the bulk of the text must survive.
	if total < len(text)/2 {
		t.Errorf("chunks total %d chars, original %d", total, len(text))
	}
}

func newStoreServer(t *testing.T) (*story.Store, *[]string) {
	t.Helper()
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req storedb.GQLRequest
		json.NewDecoder(r.Body).Decode(&req)
		queries = append(queries, req.Query)
		switch {
		case strings.Contains(req.Query, "update_Chapter"):
			fmt.Fprint(w, `{"data":{"update_Chapter":[{"_docID":"bae-ch-1"}]}}`)
		default:
			fmt.Fprint(w, `{"data":{}}`)
		}
	}))
	t.Cleanup(server.Close)
	return story.NewStore(storedb.NewClient(server.URL), nil), &queries
}

func TestNarrateChapter(t *testing.T) {
	store, queries := newStoreServer(t)
	provider := providers.NewMockTTSProvider()

	n, err := NewNarrator(Config{Provider: provider, Store: store})
	if err != nil {
		t.Fatalf("NewNarrator: %v", err)
	}

	audio, err := n.NarrateChapter(context.Background(), story.Chapter{
		DocID:   "bae-ch-1",
		StoryID: "story-1",
		Number:  1,
		Content: "The door creaked open. Nobody was there. She stepped inside.",
	})
	if err != nil {
		t.Fatalf("NarrateChapter: %v", err)
	}

	if audio.ChunkCount != 3 {
		t.Errorf("ChunkCount = %d, want 3", audio.ChunkCount)
	}
	if want := bytes.Repeat([]byte("mock-audio"), 3); !bytes.Equal(audio.Audio, want) {
		t.Errorf("audio = %q", audio.Audio)
	}
	if audio.Format != "mp3" {
		t.Errorf("format = %q, want mp3", audio.Format)
	}
	if audio.DurationMS == 0 || audio.CharCount == 0 {
		t.Errorf("duration/chars not accumulated: %+v", audio)
	}

	found := false
	for _, q := range *queries {
		if strings.Contains(q, "update_Chapter") && strings.Contains(q, `audio_format: "mp3"`) {
			found = true
		}
	}
	if !found {
		t.Error("chapter audio was not persisted")
	}
}

func TestNarrateChapterEmptyContent(t *testing.T) {
	store, _ := newStoreServer(t)
	n, err := NewNarrator(Config{Provider: providers.NewMockTTSProvider(), Store: store})
	if err != nil {
		t.Fatalf("NewNarrator: %v", err)
	}

	if _, err := n.NarrateChapter(context.Background(), story.Chapter{Number: 2}); err == nil {
		t.Error("expected error for empty chapter")
	}
}

func TestNarrateChapterProviderFailure(t *testing.T) {
	store, _ := newStoreServer(t)
	provider := providers.NewMockTTSProvider()
	provider.ShouldFail = true

	n, err := NewNarrator(Config{Provider: provider, Store: store})
	if err != nil {
		t.Fatalf("NewNarrator: %v", err)
	}

	_, err = n.NarrateChapter(context.Background(), story.Chapter{
		Number:  1,
		Content: "One sentence only.",
	})
	if err == nil {
		t.Fatal("expected error from failing provider")
	}
	if !strings.Contains(err.Error(), "chunk 1/1") {
		t.Errorf("error = %v, want chunk position", err)
	}

	// All retry attempts should have been consumed.
	if got, want := provider.RequestCount(), provider.MaxRetries()+1; got != want {
		t.Errorf("requests = %d, want %d", got, want)
	}
}

func TestNewNarratorValidation(t *testing.T) {
	if _, err := NewNarrator(Config{}); err == nil {
		t.Error("expected error without provider")
	}
	if _, err := NewNarrator(Config{Provider: providers.NewMockTTSProvider()}); err == nil {
		t.Error("expected error without store")
	}
}
