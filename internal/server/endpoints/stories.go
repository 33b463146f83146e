package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/soulscribe/soulscribe/internal/api"
	"github.com/soulscribe/soulscribe/internal/story"
	"github.com/soulscribe/soulscribe/internal/svcctx"
)

// CreateStoryRequest is the request body for creating a story.
type CreateStoryRequest struct {
	Title   string        `json:"title"`
	Premise string        `json:"premise"`
	Theme   string        `json:"theme,omitempty"`
	Outline story.Outline `json:"outline"`
}

// CreateStoryResponse is returned after creating a story.
type CreateStoryResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Chapters int    `json:"chapters"`
}

// CreateStoryEndpoint handles POST /api/stories.
type CreateStoryEndpoint struct{}

func (e *CreateStoryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/stories", e.handler
}

func (e *CreateStoryEndpoint) RequiresInit() bool { return true }

func (e *CreateStoryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req CreateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Premise == "" {
		writeError(w, http.StatusBadRequest, "premise is required")
		return
	}
	if len(req.Outline.Chapters) == 0 {
		writeError(w, http.StatusBadRequest, "outline must contain at least one chapter")
		return
	}
	for _, ch := range req.Outline.Chapters {
		if ch.Number < 1 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("chapter %q has invalid number %d", ch.Title, ch.Number))
			return
		}
	}

	store := svcctx.StoryStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "story store not initialized")
		return
	}

	now := time.Now().UTC()
	docID, err := store.CreateStory(r.Context(), story.Story{
		Title:        req.Title,
		Premise:      req.Premise,
		Theme:        req.Theme,
		Status:       story.StatusDraft,
		Outline:      req.Outline,
		ChapterCount: len(req.Outline.Chapters),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create story: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, CreateStoryResponse{
		ID:       docID,
		Title:    req.Title,
		Status:   story.StatusDraft,
		Chapters: len(req.Outline.Chapters),
	})
}

func (e *CreateStoryEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outlineFile string
	cmd := &cobra.Command{
		Use:   "create <title> <premise>",
		Short: "Create a new story from an outline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := CreateStoryRequest{Title: args[0], Premise: args[1]}
			if outlineFile != "" {
				data, err := os.ReadFile(outlineFile)
				if err != nil {
					return fmt.Errorf("reading outline: %w", err)
				}
				if err := json.Unmarshal(data, &req.Outline); err != nil {
					return fmt.Errorf("parsing outline: %w", err)
				}
			}
			client := api.NewClient(getServerURL())
			var resp CreateStoryResponse
			if err := client.Post(cmd.Context(), "/api/stories", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVarP(&outlineFile, "outline", "o", "", "Path to a JSON outline file")
	return cmd
}

// StorySummary is one story in a list response.
type StorySummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	ChapterCount int    `json:"chapter_count"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// ListStoriesResponse contains all stories.
type ListStoriesResponse struct {
	Stories []StorySummary `json:"stories"`
}

// ListStoriesEndpoint handles GET /api/stories.
type ListStoriesEndpoint struct{}

func (e *ListStoriesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/stories", e.handler
}

func (e *ListStoriesEndpoint) RequiresInit() bool { return true }

func (e *ListStoriesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.StoryStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "story store not initialized")
		return
	}

	stories, err := store.ListStories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list stories: "+err.Error())
		return
	}

	resp := ListStoriesResponse{Stories: make([]StorySummary, len(stories))}
	for i, st := range stories {
		resp.Stories[i] = StorySummary{
			ID:           st.DocID,
			Title:        st.Title,
			Status:       st.Status,
			ChapterCount: st.ChapterCount,
		}
		if !st.CreatedAt.IsZero() {
			resp.Stories[i].CreatedAt = st.CreatedAt.Format(time.RFC3339)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ListStoriesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stories",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListStoriesResponse
			if err := client.Get(cmd.Context(), "/api/stories", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetStoryEndpoint handles GET /api/stories/{id}.
type GetStoryEndpoint struct{}

func (e *GetStoryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/stories/{id}", e.handler
}

func (e *GetStoryEndpoint) RequiresInit() bool { return true }

func (e *GetStoryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "story id is required")
		return
	}

	store := svcctx.StoryStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "story store not initialized")
		return
	}

	st, err := store.GetStory(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "story not found: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, st)
}

func (e *GetStoryEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <story-id>",
		Short: "Get a story with its outline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp story.Story
			if err := client.Get(cmd.Context(), "/api/stories/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// DeleteStoryEndpoint handles DELETE /api/stories/{id}.
type DeleteStoryEndpoint struct{}

func (e *DeleteStoryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/stories/{id}", e.handler
}

func (e *DeleteStoryEndpoint) RequiresInit() bool { return true }

func (e *DeleteStoryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "story id is required")
		return
	}

	runner := svcctx.RunnerFrom(r.Context())
	if runner != nil {
		for _, rs := range runner.Active() {
			if rs.StoryID == id {
				writeError(w, http.StatusConflict, "story has an active generation run; cancel it first")
				return
			}
		}
	}

	store := svcctx.StoryStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "story store not initialized")
		return
	}

	if err := store.DeleteStory(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete story: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (e *DeleteStoryEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <story-id>",
		Short: "Delete a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp map[string]string
			if err := client.Delete(cmd.Context(), "/api/stories/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ChapterSummary is one chapter in a list response. Content is included
// only when requested.
type ChapterSummary struct {
	Number       int     `json:"number"`
	Title        string  `json:"title"`
	WordCount    int     `json:"word_count"`
	QualityScore float64 `json:"quality_score"`
	LowQuality   bool    `json:"low_quality,omitempty"`
	Attempts     int     `json:"attempts"`
	AudioFormat  string  `json:"audio_format,omitempty"`
	Content      string  `json:"content,omitempty"`
	Summary      string  `json:"summary,omitempty"`
}

// ListChaptersResponse contains a story's chapters.
type ListChaptersResponse struct {
	StoryID  string           `json:"story_id"`
	Chapters []ChapterSummary `json:"chapters"`
}

// ListChaptersEndpoint handles GET /api/stories/{id}/chapters.
type ListChaptersEndpoint struct{}

func (e *ListChaptersEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/stories/{id}/chapters", e.handler
}

func (e *ListChaptersEndpoint) RequiresInit() bool { return true }

func (e *ListChaptersEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	includeText := r.URL.Query().Get("include_text") == "true"

	store := svcctx.StoryStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "story store not initialized")
		return
	}

	chapters, err := store.ListChapters(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list chapters: "+err.Error())
		return
	}

	resp := ListChaptersResponse{StoryID: id, Chapters: make([]ChapterSummary, len(chapters))}
	for i, ch := range chapters {
		resp.Chapters[i] = ChapterSummary{
			Number:       ch.Number,
			Title:        ch.Title,
			WordCount:    ch.WordCount,
			QualityScore: ch.QualityScore,
			LowQuality:   ch.LowQuality,
			Attempts:     ch.Attempts,
			AudioFormat:  ch.AudioFormat,
		}
		if includeText {
			resp.Chapters[i].Content = ch.Content
			resp.Chapters[i].Summary = ch.Summary
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ListChaptersEndpoint) Command(getServerURL func() string) *cobra.Command {
	var includeText bool
	cmd := &cobra.Command{
		Use:   "chapters <story-id>",
		Short: "List a story's generated chapters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/stories/" + args[0] + "/chapters"
			if includeText {
				path += "?include_text=true"
			}
			var resp ListChaptersResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().BoolVar(&includeText, "include-text", false, "Include chapter text in the output")
	return cmd
}

// GetChapterEndpoint handles GET /api/stories/{id}/chapters/{number}.
type GetChapterEndpoint struct{}

func (e *GetChapterEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/stories/{id}/chapters/{number}", e.handler
}

func (e *GetChapterEndpoint) RequiresInit() bool { return true }

func (e *GetChapterEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number < 1 {
		writeError(w, http.StatusBadRequest, "invalid chapter number")
		return
	}

	store := svcctx.StoryStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "story store not initialized")
		return
	}

	ch, err := store.GetChapter(r.Context(), id, number)
	if err != nil {
		writeError(w, http.StatusNotFound, "chapter not found: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ch)
}

func (e *GetChapterEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "chapter <story-id> <number>",
		Short: "Get a single chapter with its full text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp story.Chapter
			if err := client.Get(cmd.Context(), "/api/stories/"+args[0]+"/chapters/"+args[1], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
