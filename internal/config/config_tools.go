package config

import "time"

// ToolsConfig controls runtime tool execution and approval behavior.
type ToolsConfig struct {
	Execution ToolExecutionConfig `yaml:"execution"`
	Approval  ApprovalConfig      `yaml:"approval"`
}

// ToolExecutionConfig bounds the Agent Turn Engine's tool-use loop.
type ToolExecutionConfig struct {
	MaxIterations int           `yaml:"max_iterations"`
	MaxToolCalls  int           `yaml:"max_tool_calls"`
	Timeout       time.Duration `yaml:"timeout"`
}

// ApprovalConfig controls which tools a run may use without per-call
// approval.
type ApprovalConfig struct {
	// Allowlist contains tool ids always allowed. Supports "*" (all) and
	// "mcp:*"-style wildcard prefixes.
	Allowlist []string `yaml:"allowlist"`

	// Denylist contains tool ids always denied, checked before Allowlist.
	Denylist []string `yaml:"denylist"`
}

func applyToolsDefaults(cfg *ToolsConfig) {
	if cfg.Execution.MaxIterations == 0 {
		cfg.Execution.MaxIterations = 24
	}
	if cfg.Execution.MaxToolCalls == 0 {
		cfg.Execution.MaxToolCalls = 100
	}
	if cfg.Execution.Timeout == 0 {
		cfg.Execution.Timeout = 5 * time.Minute
	}
	if cfg.Approval.Allowlist == nil {
		cfg.Approval.Allowlist = []string{"fs_read_file", "fs_write_file"}
	}
}
