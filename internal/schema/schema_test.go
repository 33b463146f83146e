package schema

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/soulscribe/soulscribe/internal/storedb"
)

func TestAll(t *testing.T) {
	schemas, err := All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}

	if len(schemas) != len(registry) {
		t.Errorf("expected %d schemas, got %d", len(registry), len(schemas))
	}

	found := false
	for _, s := range schemas {
		if s.Name == "Story" {
			found = true
			if !strings.Contains(s.SDL, "type Story") {
				t.Error("Story schema SDL doesn't contain 'type Story'")
			}
		}
		if s.SDL == "" {
			t.Errorf("schema %s has empty SDL", s.Name)
		}
	}

	if !found {
		t.Error("Story schema not found")
	}

	// Story must initialize before Chapter, which references it.
	var storyIdx, chapterIdx int
	for i, s := range schemas {
		switch s.Name {
		case "Story":
			storyIdx = i
		case "Chapter":
			chapterIdx = i
		}
	}
	if storyIdx > chapterIdx {
		t.Error("Story must come before Chapter in initialization order")
	}
}

func TestGet(t *testing.T) {
	t.Run("existing schema", func(t *testing.T) {
		s, err := Get("Chapter")
		if err != nil {
			t.Fatalf("Get(Chapter) error = %v", err)
		}
		if s.Name != "Chapter" {
			t.Errorf("expected name Chapter, got %s", s.Name)
		}
		if !strings.Contains(s.SDL, "chapter_number") {
			t.Error("Chapter schema missing chapter_number field")
		}
	})

	t.Run("non-existent schema", func(t *testing.T) {
		_, err := Get("NonExistent")
		if err == nil {
			t.Error("expected error for non-existent schema")
		}
	})
}

func TestInitialize(t *testing.T) {
	t.Run("successful initialization", func(t *testing.T) {
		var applied int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/v0/schema" {
				applied++
				w.WriteHeader(http.StatusOK)
				return
			}
			t.Errorf("unexpected path: %s", r.URL.Path)
		}))
		defer server.Close()

		client := storedb.NewClient(server.URL)
		err := Initialize(context.Background(), client, slog.Default())
		if err != nil {
			t.Errorf("Initialize() error = %v", err)
		}
		if applied != len(registry) {
			t.Errorf("expected %d schema applications, got %d", len(registry), applied)
		}
	})

	t.Run("handles already exists error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("collection already exists. Name: Story"))
		}))
		defer server.Close()

		client := storedb.NewClient(server.URL)
		err := Initialize(context.Background(), client, slog.Default())
		if err != nil {
			t.Errorf("Initialize() should handle already exists, got error = %v", err)
		}
	})

	t.Run("fails on other errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("invalid schema syntax"))
		}))
		defer server.Close()

		client := storedb.NewClient(server.URL)
		err := Initialize(context.Background(), client, slog.Default())
		if err == nil {
			t.Error("Initialize() should fail on syntax error")
		}
	})
}

func TestIsAlreadyExistsError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"already exists", errWithMsg("collection already exists. Name: Story"), true},
		{"already exists variant", errWithMsg("schema already exists"), true},
		{"other error", errWithMsg("invalid syntax"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isAlreadyExistsError(tt.err); got != tt.want {
				t.Errorf("isAlreadyExistsError() = %v, want %v", got, tt.want)
			}
		})
	}
}

type errWithMsg string

func (e errWithMsg) Error() string { return string(e) }
