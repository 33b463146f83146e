package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soulscribe/soulscribe/internal/api"
	"github.com/soulscribe/soulscribe/internal/config"
	"github.com/soulscribe/soulscribe/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "soulscribe",
	Short: "Story generation pipeline with dependency-aware chapter scheduling",
	Long: `SoulScribe generates multi-chapter stories from an outline using LLM
providers, with narration audio as an optional final step.

The pipeline includes:
  - Dependency-aware chapter scheduling with bounded concurrency
  - Quality review with retry-on-low-score and reviewer hints
  - Per-run cost and latency metrics
  - Text-to-speech narration of accepted chapters`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.soulscribe/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "soulscribe home directory (default: ~/.soulscribe)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write a default configuration file to the soulscribe home directory.

The generated file lists every supported provider with API keys referenced
from environment variables. Existing config files are never overwritten.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}

		if h.ConfigExists() {
			return fmt.Errorf("config already exists at %s", h.ConfigPath())
		}

		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		fmt.Printf("Wrote default config to %s\n", h.ConfigPath())
		return nil
	},
}
