// Package config loads and validates agentcore's YAML configuration
// file: provider credentials, tool execution limits, sub-agent
// coordinator bounds, and logging/observability settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/agentcore/runtime/internal/subagent"
)

// Config is the top-level configuration for an agentcore process.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	LLM           LLMConfig           `yaml:"llm"`
	Tools         ToolsConfig         `yaml:"tools"`
	SubAgent      subagent.Config     `yaml:"subagent"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
	Workspace     string              `yaml:"workspace"`
}

// ServerConfig configures the process's own health/metrics surface.
type ServerConfig struct {
	MetricsPort int `yaml:"metrics_port"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" | "text"
}

// ObservabilityConfig controls OpenTelemetry tracing export.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
	Insecure    bool    `yaml:"insecure"`
}

// Load reads the config file at path, resolving $include directives and
// $-expanding environment variables (see LoadRaw), then decodes,
// overlays env overrides, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}
	applyToolsDefaults(&cfg.Tools)

	defaultSub := subagent.DefaultConfig()
	if cfg.SubAgent.MaxDepth == 0 {
		cfg.SubAgent.MaxDepth = defaultSub.MaxDepth
	}
	if cfg.SubAgent.MaxConcurrency == 0 {
		cfg.SubAgent.MaxConcurrency = defaultSub.MaxConcurrency
	}
	if cfg.SubAgent.MaxActiveRunsPerParent == 0 {
		cfg.SubAgent.MaxActiveRunsPerParent = defaultSub.MaxActiveRunsPerParent
	}
	if cfg.SubAgent.DefaultTimeoutMs == 0 {
		cfg.SubAgent.DefaultTimeoutMs = defaultSub.DefaultTimeoutMs
	}
	if cfg.SubAgent.MaxTimeoutMs == 0 {
		cfg.SubAgent.MaxTimeoutMs = defaultSub.MaxTimeoutMs
	}
	if cfg.SubAgent.MaxTaskChars == 0 {
		cfg.SubAgent.MaxTaskChars = defaultSub.MaxTaskChars
	}
	if cfg.SubAgent.MaxRunOutputChars == 0 {
		cfg.SubAgent.MaxRunOutputChars = defaultSub.MaxRunOutputChars
	}
	if cfg.SubAgent.FinishedRunRetentionMs == 0 {
		cfg.SubAgent.FinishedRunRetentionMs = defaultSub.FinishedRunRetentionMs
	}
	if cfg.SubAgent.MaxListedRuns == 0 {
		cfg.SubAgent.MaxListedRuns = defaultSub.MaxListedRuns
	}
	if cfg.SubAgent.StoreMode == "" {
		cfg.SubAgent.StoreMode = defaultSub.StoreMode
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Workspace == "" {
		cfg.Workspace = "./agentcore-data"
	}
}

func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	if v := strings.TrimSpace(os.Getenv("AGENTCORE_METRICS_PORT")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("AGENTCORE_DEFAULT_PROVIDER")); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		setProviderKey(cfg, "anthropic", v)
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		setProviderKey(cfg, "openai", v)
	}
}

func setProviderKey(cfg *Config, provider, key string) {
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]LLMProviderConfig)
	}
	p := cfg.LLM.Providers[provider]
	p.APIKey = key
	cfg.LLM.Providers[provider] = p
}

// ConfigValidationError reports one or more invalid config values.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	var issues []string
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		issues = append(issues, fmt.Sprintf("server.metrics_port %d is out of range", cfg.Server.MetricsPort))
	}
	if !validLogLevel(cfg.Logging.Level) {
		issues = append(issues, fmt.Sprintf("logging.level %q is invalid", cfg.Logging.Level))
	}
	if cfg.SubAgent.MaxDepth < 1 {
		issues = append(issues, "subagent.max_depth must be at least 1")
	}
	if cfg.SubAgent.MaxConcurrency < 1 {
		issues = append(issues, "subagent.max_concurrency must be at least 1")
	}
	if cfg.SubAgent.StoreMode != "file" && cfg.SubAgent.StoreMode != "memory" {
		issues = append(issues, fmt.Sprintf("subagent.store_mode %q must be \"file\" or \"memory\"", cfg.SubAgent.StoreMode))
	}
	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

func validLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
