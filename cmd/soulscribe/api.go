package main

import (
	"github.com/spf13/cobra"

	"github.com/soulscribe/soulscribe/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running SoulScribe server via HTTP.

These commands require a running server (soulscribe serve).
Use --server to specify a custom server URL.

Examples:
  soulscribe api health                   # Check server health
  soulscribe api stories list             # List all stories
  soulscribe api generate <story-id>      # Start a generation run
  soulscribe api runs status <run-id>     # Poll run progress`,
}

var storiesCmd = &cobra.Command{
	Use:   "stories",
	Short: "Story management commands",
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Generation run commands",
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Metrics and cost tracking commands",
}

var llmcallsCmd = &cobra.Command{
	Use:   "llmcalls",
	Short: "LLM call history commands",
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Prompt inspection and override commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	// Generation and narration at top level for convenience
	apiCmd.AddCommand((&endpoints.StartRunEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.NarrateStoryEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ListVoicesEndpoint{}).Command(getServerURL))

	// Stories as subcommand group
	storiesCmd.AddCommand((&endpoints.CreateStoryEndpoint{}).Command(getServerURL))
	storiesCmd.AddCommand((&endpoints.ListStoriesEndpoint{}).Command(getServerURL))
	storiesCmd.AddCommand((&endpoints.GetStoryEndpoint{}).Command(getServerURL))
	storiesCmd.AddCommand((&endpoints.DeleteStoryEndpoint{}).Command(getServerURL))
	storiesCmd.AddCommand((&endpoints.ListChaptersEndpoint{}).Command(getServerURL))
	storiesCmd.AddCommand((&endpoints.GetChapterEndpoint{}).Command(getServerURL))

	// Runs as subcommand group
	runsCmd.AddCommand((&endpoints.RunStatusEndpoint{}).Command(getServerURL))
	runsCmd.AddCommand((&endpoints.CancelRunEndpoint{}).Command(getServerURL))
	runsCmd.AddCommand((&endpoints.ListRunsEndpoint{}).Command(getServerURL))

	// Metrics as subcommand group
	metricsCmd.AddCommand((&endpoints.MetricsSummaryEndpoint{}).Command(getServerURL))
	metricsCmd.AddCommand((&endpoints.MetricsCostEndpoint{}).Command(getServerURL))
	metricsCmd.AddCommand((&endpoints.MetricsStagesEndpoint{}).Command(getServerURL))

	// LLM calls as subcommand group
	llmcallsCmd.AddCommand((&endpoints.ListLLMCallsEndpoint{}).Command(getServerURL))
	llmcallsCmd.AddCommand((&endpoints.GetLLMCallEndpoint{}).Command(getServerURL))
	llmcallsCmd.AddCommand((&endpoints.LLMCallCountsEndpoint{}).Command(getServerURL))

	// Prompts as subcommand group
	promptsCmd.AddCommand((&endpoints.ListPromptsEndpoint{}).Command(getServerURL))
	promptsCmd.AddCommand((&endpoints.GetPromptEndpoint{}).Command(getServerURL))
	promptsCmd.AddCommand((&endpoints.ListStoryPromptsEndpoint{}).Command(getServerURL))
	promptsCmd.AddCommand((&endpoints.SetStoryPromptEndpoint{}).Command(getServerURL))
	promptsCmd.AddCommand((&endpoints.ClearStoryPromptEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(storiesCmd)
	apiCmd.AddCommand(runsCmd)
	apiCmd.AddCommand(metricsCmd)
	apiCmd.AddCommand(llmcallsCmd)
	apiCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(apiCmd)
}
