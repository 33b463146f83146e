package endpoints

import (
	"github.com/soulscribe/soulscribe/internal/api"
	"github.com/soulscribe/soulscribe/internal/config"
	"github.com/soulscribe/soulscribe/internal/storedb"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	StoreManager *storedb.DockerManager
	Defaults     config.DefaultsCfg
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{StoreManager: cfg.StoreManager},

		// Story endpoints
		&CreateStoryEndpoint{},
		&ListStoriesEndpoint{},
		&GetStoryEndpoint{},
		&DeleteStoryEndpoint{},
		&ListChaptersEndpoint{},
		&GetChapterEndpoint{},

		// Generation run endpoints
		&StartRunEndpoint{Defaults: cfg.Defaults},
		&RunStatusEndpoint{},
		&CancelRunEndpoint{},
		&ListRunsEndpoint{},

		// Narration endpoints
		&NarrateStoryEndpoint{Defaults: cfg.Defaults},
		&ListVoicesEndpoint{},

		// Metrics endpoints
		&MetricsSummaryEndpoint{},
		&MetricsCostEndpoint{},
		&MetricsStagesEndpoint{},

		// LLM call history endpoints
		&ListLLMCallsEndpoint{},
		&GetLLMCallEndpoint{},
		&LLMCallCountsEndpoint{},

		// Prompt endpoints
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
		&ListStoryPromptsEndpoint{},
		&SetStoryPromptEndpoint{},
		&ClearStoryPromptEndpoint{},
	}
}

// StoryCommands returns endpoints for story operations.
// This groups story-related commands under "stories" subcommand.
func StoryCommands() []api.Endpoint {
	return []api.Endpoint{
		&CreateStoryEndpoint{},
		&ListStoriesEndpoint{},
		&GetStoryEndpoint{},
		&DeleteStoryEndpoint{},
		&ListChaptersEndpoint{},
	}
}

// RunCommands returns endpoints for generation run operations.
// This groups run-related commands under "runs" subcommand.
func RunCommands() []api.Endpoint {
	return []api.Endpoint{
		&RunStatusEndpoint{},
		&CancelRunEndpoint{},
		&ListRunsEndpoint{},
	}
}

// MetricsCommands returns endpoints for metrics operations.
// This groups metrics-related commands under "metrics" subcommand.
func MetricsCommands() []api.Endpoint {
	return []api.Endpoint{
		&MetricsSummaryEndpoint{},
		&MetricsCostEndpoint{},
		&MetricsStagesEndpoint{},
	}
}

// LLMCallCommands returns endpoints for LLM call history operations.
// This groups llmcall-related commands under "llmcalls" subcommand.
func LLMCallCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListLLMCallsEndpoint{},
		&GetLLMCallEndpoint{},
		&LLMCallCountsEndpoint{},
	}
}

// PromptCommands returns endpoints for prompt operations.
// This groups prompt-related commands under "prompts" subcommand.
func PromptCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
		&ListStoryPromptsEndpoint{},
		&SetStoryPromptEndpoint{},
		&ClearStoryPromptEndpoint{},
	}
}
