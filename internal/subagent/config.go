// Package subagent implements the Sub-Agent Coordinator: a durable,
// bounded FIFO queue of recursive child agent runs, backed by a file
// or in-memory store and driven through the Agent Turn Engine.
package subagent

import (
	"os"
	"strconv"
)

// Config bounds the coordinator's queue, depth, and retention
// behavior. Defaults mirror the teacher's small-typed-config-with-
// Default-constructor style (see internal/agent's DefaultToolExecConfig).
type Config struct {
	MaxDepth               int    `yaml:"max_depth"`
	MaxConcurrency         int    `yaml:"max_concurrency"`
	MaxActiveRunsPerParent int    `yaml:"max_active_runs_per_parent"`
	DefaultTimeoutMs       int    `yaml:"default_timeout_ms"`
	MaxTimeoutMs           int    `yaml:"max_timeout_ms"`
	MaxTaskChars           int    `yaml:"max_task_chars"`
	MaxRunOutputChars      int    `yaml:"max_run_output_chars"`
	FinishedRunRetentionMs int64  `yaml:"finished_run_retention_ms"`
	MaxListedRuns          int    `yaml:"max_listed_runs"`
	StoreMode              string `yaml:"store_mode"` // "file" | "memory"
}

// DefaultConfig returns the Sub-Agent Coordinator's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxDepth:               3,
		MaxConcurrency:         3,
		MaxActiveRunsPerParent: 12,
		DefaultTimeoutMs:       120_000,
		MaxTimeoutMs:           600_000,
		MaxTaskChars:           12_000,
		MaxRunOutputChars:      80_000,
		FinishedRunRetentionMs: 86_400_000,
		MaxListedRuns:          100,
		StoreMode:              "file",
	}
}

// LoadConfigFromEnv overlays SUBAGENT_* environment variables onto
// DefaultConfig(). Unset or unparsable variables keep the default.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.MaxDepth = envInt("SUBAGENT_MAX_DEPTH", cfg.MaxDepth)
	cfg.MaxConcurrency = envInt("SUBAGENT_MAX_CONCURRENCY", cfg.MaxConcurrency)
	cfg.MaxActiveRunsPerParent = envInt("SUBAGENT_MAX_ACTIVE_RUNS_PER_PARENT", cfg.MaxActiveRunsPerParent)
	cfg.DefaultTimeoutMs = envInt("SUBAGENT_DEFAULT_TIMEOUT_MS", cfg.DefaultTimeoutMs)
	cfg.MaxTimeoutMs = envInt("SUBAGENT_MAX_TIMEOUT_MS", cfg.MaxTimeoutMs)
	cfg.MaxTaskChars = envInt("SUBAGENT_MAX_TASK_CHARS", cfg.MaxTaskChars)
	cfg.MaxRunOutputChars = envInt("SUBAGENT_MAX_RUN_OUTPUT_CHARS", cfg.MaxRunOutputChars)
	cfg.FinishedRunRetentionMs = envInt64("SUBAGENT_FINISHED_RUN_RETENTION_MS", cfg.FinishedRunRetentionMs)
	cfg.MaxListedRuns = envInt("SUBAGENT_MAX_LISTED_RUNS", cfg.MaxListedRuns)
	if v := os.Getenv("SUBAGENT_STORE_MODE"); v != "" {
		cfg.StoreMode = v
	}
	return cfg
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
