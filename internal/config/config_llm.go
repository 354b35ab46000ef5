package config

// LLMConfig configures the providers the Provider Client may dial and
// the order the Agent Turn Engine falls back through when one fails.
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`

	// FallbackChain specifies provider IDs to try if the default provider
	// fails, tried in order until one succeeds. Example: ["openai",
	// "anthropic"].
	FallbackChain []string `yaml:"fallback_chain"`
}

// LLMProviderConfig is one provider's credentials and model defaults.
type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
}
