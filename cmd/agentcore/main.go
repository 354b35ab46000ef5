// Package main provides the CLI entry point for agentcore, an agent
// execution core that drives LLM providers (Anthropic, OpenAI) through
// a bounded tool-use loop, coordinates multi-agent squads, and runs
// recursive sub-agent work off a durable queue.
//
// # Basic Usage
//
// Run a single turn:
//
//	agentcore run --agent researcher --prompt "summarize README.md"
//
// Run a squad:
//
//	agentcore squad run --config squad.yaml --goal "ship the release notes"
//
// Inspect sub-agent runs:
//
//	agentcore subagent list
//
// # Environment Variables
//
//   - AGENTCORE_CONFIG: path to the YAML configuration file
//   - ANTHROPIC_API_KEY / OPENAI_API_KEY: provider credentials
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentcore",
		Short: "agentcore - an LLM agent execution core",
		Long: `agentcore drives LLM providers through a bounded tool-use loop,
coordinates multi-agent squads behind a director, and runs recursive
sub-agent work off a durable queue.

Supported LLM providers: Anthropic (Claude), OpenAI (GPT)`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildRunCmd(),
		buildSquadCmd(),
		buildSubAgentCmd(),
		buildModelsCmd(),
		buildConfigCmd(),
	)

	return rootCmd
}

func defaultConfigPath() string {
	if v := os.Getenv("AGENTCORE_CONFIG"); v != "" {
		return v
	}
	return "agentcore.yaml"
}
