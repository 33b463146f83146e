package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/soulscribe/soulscribe/internal/api"
	"github.com/soulscribe/soulscribe/internal/config"
	"github.com/soulscribe/soulscribe/internal/providers"
	"github.com/soulscribe/soulscribe/internal/svcctx"
	"github.com/soulscribe/soulscribe/internal/tts"
)

// NarrateRequest is the request body for narrating a story. All fields are
// optional; zero values fall back to the configured defaults.
type NarrateRequest struct {
	Provider     string `json:"provider,omitempty"`
	Voice        string `json:"voice,omitempty"`
	Format       string `json:"format,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	Chapter      int    `json:"chapter,omitempty"` // 0 narrates all pending chapters
}

// NarratedChapter is one chapter's narration result.
type NarratedChapter struct {
	Chapter    int     `json:"chapter"`
	Format     string  `json:"format"`
	Bytes      int     `json:"bytes"`
	DurationMS int     `json:"duration_ms,omitempty"`
	Chunks     int     `json:"chunks"`
	CostUSD    float64 `json:"cost_usd,omitempty"`
}

// NarrateResponse summarizes a narration request.
type NarrateResponse struct {
	StoryID  string            `json:"story_id"`
	Provider string            `json:"provider"`
	Chapters []NarratedChapter `json:"chapters"`
}

// NarrateStoryEndpoint handles POST /api/stories/{id}/narrate.
type NarrateStoryEndpoint struct {
	Defaults config.DefaultsCfg
}

func (e *NarrateStoryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/stories/{id}/narrate", e.handler
}

func (e *NarrateStoryEndpoint) RequiresInit() bool { return true }

// handler narrates synchronously. Narration of a long story can take
// minutes; the CLI client uses a generous timeout for this reason.
func (e *NarrateStoryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	storyID := r.PathValue("id")
	if storyID == "" {
		writeError(w, http.StatusBadRequest, "story id is required")
		return
	}

	var req NarrateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	if req.Provider == "" {
		req.Provider = e.Defaults.TTSProvider
	}

	registry := svcctx.RegistryFrom(r.Context())
	store := svcctx.StoryStoreFrom(r.Context())
	if registry == nil || store == nil {
		writeError(w, http.StatusServiceUnavailable, "services not initialized")
		return
	}

	provider, err := registry.GetTTS(req.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, "tts provider: "+err.Error())
		return
	}

	narrator, err := tts.NewNarrator(tts.Config{
		Provider:     provider,
		Store:        store,
		Voice:        req.Voice,
		Format:       req.Format,
		Instructions: req.Instructions,
		Metrics:      svcctx.MetricsRecorderFrom(r.Context()),
		Logger:       svcctx.LoggerFrom(r.Context()),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build narrator: "+err.Error())
		return
	}

	var results []*tts.ChapterAudio
	if req.Chapter > 0 {
		ch, err := store.GetChapter(r.Context(), storyID, req.Chapter)
		if err != nil {
			writeError(w, http.StatusNotFound, "chapter not found: "+err.Error())
			return
		}
		audio, err := narrator.NarrateChapter(r.Context(), *ch)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "narration failed: "+err.Error())
			return
		}
		results = append(results, audio)
	} else {
		results, err = narrator.NarrateStory(r.Context(), storyID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "narration failed: "+err.Error())
			return
		}
	}

	resp := NarrateResponse{StoryID: storyID, Provider: provider.Name()}
	for _, audio := range results {
		resp.Chapters = append(resp.Chapters, NarratedChapter{
			Chapter:    audio.ChapterNumber,
			Format:     audio.Format,
			Bytes:      len(audio.Audio),
			DurationMS: audio.DurationMS,
			Chunks:     audio.ChunkCount,
			CostUSD:    audio.CostUSD,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *NarrateStoryEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req NarrateRequest
	cmd := &cobra.Command{
		Use:   "narrate <story-id>",
		Short: "Generate narration audio for a story's chapters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp NarrateResponse
			if err := client.Post(cmd.Context(), "/api/stories/"+args[0]+"/narrate", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&req.Provider, "provider", "", "TTS provider name")
	cmd.Flags().StringVar(&req.Voice, "voice", "", "Voice to narrate with")
	cmd.Flags().StringVar(&req.Format, "format", "", "Audio format (default mp3)")
	cmd.Flags().IntVar(&req.Chapter, "chapter", 0, "Narrate a single chapter (0 = all)")
	return cmd
}

// VoiceResponse represents a voice in API responses.
type VoiceResponse struct {
	VoiceID     string `json:"voice_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Provider    string `json:"provider"`
}

// ListVoicesResponse contains the list of voices.
type ListVoicesResponse struct {
	Voices []VoiceResponse `json:"voices"`
}

// ListVoicesEndpoint handles GET /api/voices.
type ListVoicesEndpoint struct{}

func (e *ListVoicesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/voices", e.handler
}

func (e *ListVoicesEndpoint) RequiresInit() bool { return false }

func (e *ListVoicesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	registry := svcctx.RegistryFrom(r.Context())
	if registry == nil {
		writeError(w, http.StatusServiceUnavailable, "provider registry not initialized")
		return
	}

	names := registry.ListTTS()
	if want := r.URL.Query().Get("provider"); want != "" {
		names = []string{want}
	}

	var resp ListVoicesResponse
	for _, name := range names {
		provider, err := registry.GetTTS(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, "tts provider: "+err.Error())
			return
		}
		lister, ok := provider.(providers.VoicesLister)
		if !ok {
			continue
		}
		voiceList, err := lister.ListVoices(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list voices: "+err.Error())
			return
		}
		for _, v := range voiceList {
			resp.Voices = append(resp.Voices, VoiceResponse{
				VoiceID:     v.VoiceID,
				Name:        v.Name,
				Description: v.Description,
				Provider:    name,
			})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ListVoicesEndpoint) Command(getServerURL func() string) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List available TTS voices",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/voices"
			if provider != "" {
				path += "?provider=" + provider
			}
			var resp ListVoicesResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Limit to one TTS provider")
	return cmd
}
