package main

import (
	"context"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/agent/providers"
	"github.com/agentcore/runtime/internal/config"
	"github.com/agentcore/runtime/internal/infra"
)

// buildProviders constructs one LLMProvider per configured credential,
// each wrapped in a circuit breaker so a provider outage is isolated
// instead of stalling every turn behind its retry loop.
func buildProviders(cfg *config.Config) map[string]agent.LLMProvider {
	out := make(map[string]agent.LLMProvider)
	for name, pc := range cfg.LLM.Providers {
		if pc.APIKey == "" {
			continue
		}
		var base agent.LLMProvider
		switch name {
		case "anthropic":
			base = providers.NewAnthropicProvider(pc.APIKey, nil)
		case "openai":
			base = providers.NewOpenAIProvider(pc.APIKey, nil)
		default:
			continue
		}
		out[name] = &circuitProvider{
			LLMProvider: base,
			breaker: infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
				Name:             "llm_provider:" + name,
				FailureThreshold: 5,
				SuccessThreshold: 2,
			}),
		}
	}
	return out
}

// circuitProvider trips a breaker around Chat so a failing provider
// stops accepting calls for a cooldown window instead of letting every
// turn pay its own retry latency against a provider that is down.
type circuitProvider struct {
	agent.LLMProvider
	breaker *infra.CircuitBreaker
}

func (p *circuitProvider) Chat(ctx context.Context, req *agent.ChatRequest) (*agent.ChatResponse, error) {
	return infra.ExecuteWithResult(p.breaker, ctx, func(ctx context.Context) (*agent.ChatResponse, error) {
		return p.LLMProvider.Chat(ctx, req)
	})
}
