package endpoints

import (
	"encoding/json"
	"net/http"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/soulscribe/soulscribe/internal/api"
	"github.com/soulscribe/soulscribe/internal/svcctx"
)

// PromptResponse represents a single prompt.
type PromptResponse struct {
	Key         string   `json:"key"`
	Text        string   `json:"text,omitempty"`
	Description string   `json:"description,omitempty"`
	Variables   []string `json:"variables,omitempty"`
	Hash        string   `json:"hash,omitempty"`
}

// PromptsListResponse contains all prompts.
type PromptsListResponse struct {
	Prompts []PromptResponse `json:"prompts"`
}

// StoryPromptResponse represents a resolved prompt for a story.
type StoryPromptResponse struct {
	Key        string   `json:"key"`
	Text       string   `json:"text,omitempty"`
	Variables  []string `json:"variables,omitempty"`
	IsOverride bool     `json:"is_override"`
	CID        string   `json:"cid,omitempty"`
}

// StoryPromptsListResponse contains all prompts resolved for a story.
type StoryPromptsListResponse struct {
	StoryID string                `json:"story_id"`
	Prompts []StoryPromptResponse `json:"prompts"`
}

// SetPromptRequest is the request body for setting a story prompt override.
type SetPromptRequest struct {
	Text string `json:"text"`
	Note string `json:"note,omitempty"`
}

// ListPromptsEndpoint handles GET /api/prompts.
type ListPromptsEndpoint struct{}

func (e *ListPromptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts", e.handler
}

func (e *ListPromptsEndpoint) RequiresInit() bool { return false }

func (e *ListPromptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolver := svcctx.ResolverFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt resolver not initialized")
		return
	}

	embedded := resolver.AllEmbedded()
	resp := PromptsListResponse{Prompts: make([]PromptResponse, len(embedded))}
	for i, p := range embedded {
		resp.Prompts[i] = PromptResponse{
			Key:         p.Key,
			Description: p.Description,
			Variables:   p.Variables,
			Hash:        p.Hash,
		}
	}
	sort.Slice(resp.Prompts, func(i, j int) bool { return resp.Prompts[i].Key < resp.Prompts[j].Key })

	writeJSON(w, http.StatusOK, resp)
}

func (e *ListPromptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all prompt keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PromptsListResponse
			if err := client.Get(cmd.Context(), "/api/prompts", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetPromptEndpoint handles GET /api/prompts/{key}.
type GetPromptEndpoint struct{}

func (e *GetPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/{key}", e.handler
}

func (e *GetPromptEndpoint) RequiresInit() bool { return false }

func (e *GetPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolver := svcctx.ResolverFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt resolver not initialized")
		return
	}

	key := r.PathValue("key")
	p, ok := resolver.GetEmbedded(key)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown prompt key: "+key)
		return
	}

	writeJSON(w, http.StatusOK, PromptResponse{
		Key:         p.Key,
		Text:        p.Text,
		Description: p.Description,
		Variables:   p.Variables,
		Hash:        p.Hash,
	})
}

func (e *GetPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a prompt's default text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PromptResponse
			if err := client.Get(cmd.Context(), "/api/prompts/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ListStoryPromptsEndpoint handles GET /api/stories/{id}/prompts.
type ListStoryPromptsEndpoint struct{}

func (e *ListStoryPromptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/stories/{id}/prompts", e.handler
}

func (e *ListStoryPromptsEndpoint) RequiresInit() bool { return true }

func (e *ListStoryPromptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolver := svcctx.ResolverFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt resolver not initialized")
		return
	}

	storyID := r.PathValue("id")
	resp := StoryPromptsListResponse{StoryID: storyID}
	for _, embedded := range resolver.AllEmbedded() {
		resolved, err := resolver.Resolve(r.Context(), embedded.Key, storyID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to resolve prompt "+embedded.Key+": "+err.Error())
			return
		}
		resp.Prompts = append(resp.Prompts, StoryPromptResponse{
			Key:        resolved.Key,
			Variables:  resolved.Variables,
			IsOverride: resolved.IsOverride,
			CID:        resolved.CID,
		})
	}
	sort.Slice(resp.Prompts, func(i, j int) bool { return resp.Prompts[i].Key < resp.Prompts[j].Key })

	writeJSON(w, http.StatusOK, resp)
}

func (e *ListStoryPromptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <story-id>",
		Short: "Show prompts as resolved for a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StoryPromptsListResponse
			if err := client.Get(cmd.Context(), "/api/stories/"+args[0]+"/prompts", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// SetStoryPromptEndpoint handles PUT /api/stories/{id}/prompts/{key}.
type SetStoryPromptEndpoint struct{}

func (e *SetStoryPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/stories/{id}/prompts/{key}", e.handler
}

func (e *SetStoryPromptEndpoint) RequiresInit() bool { return true }

func (e *SetStoryPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolver := svcctx.ResolverFrom(r.Context())
	store := svcctx.PromptStoreFrom(r.Context())
	if resolver == nil || store == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt services not initialized")
		return
	}

	storyID := r.PathValue("id")
	key := r.PathValue("key")
	if _, ok := resolver.GetEmbedded(key); !ok {
		writeError(w, http.StatusNotFound, "unknown prompt key: "+key)
		return
	}

	var req SetPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	if err := store.SetStoryOverride(r.Context(), storyID, key, req.Text, req.Note); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to set override: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, StoryPromptResponse{
		Key:        key,
		Text:       req.Text,
		IsOverride: true,
	})
}

func (e *SetStoryPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var textFile, note string
	cmd := &cobra.Command{
		Use:   "set <story-id> <key>",
		Short: "Set a per-story prompt override",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(textFile)
			if err != nil {
				return err
			}
			req := SetPromptRequest{Text: string(data), Note: note}
			client := api.NewClient(getServerURL())
			var resp StoryPromptResponse
			if err := client.Put(cmd.Context(), "/api/stories/"+args[0]+"/prompts/"+args[1], req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVarP(&textFile, "file", "f", "", "File containing the prompt text")
	cmd.Flags().StringVar(&note, "note", "", "Why this override exists")
	cmd.MarkFlagRequired("file")
	return cmd
}

// ClearStoryPromptEndpoint handles DELETE /api/stories/{id}/prompts/{key}.
type ClearStoryPromptEndpoint struct{}

func (e *ClearStoryPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/stories/{id}/prompts/{key}", e.handler
}

func (e *ClearStoryPromptEndpoint) RequiresInit() bool { return true }

func (e *ClearStoryPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.PromptStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt store not initialized")
		return
	}

	storyID := r.PathValue("id")
	key := r.PathValue("key")
	if err := store.ClearStoryOverride(r.Context(), storyID, key); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear override: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"cleared": key})
}

func (e *ClearStoryPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <story-id> <key>",
		Short: "Remove a per-story prompt override",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp map[string]string
			if err := client.Delete(cmd.Context(), "/api/stories/"+args[0]+"/prompts/"+args[1], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
