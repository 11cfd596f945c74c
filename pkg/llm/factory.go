package llm

import (
	"context"

	"github.com/Gabiro3/blimp2/pkg/types"
	"github.com/rs/zerolog/log"
)

// NewFromConfig builds the configured provider chain: Gemini keys (rotated)
// then Anthropic, or the reverse when provider is "anthropic".
func NewFromConfig(ctx context.Context, cfg types.LLMConfig) (Client, error) {
	var gemini, claude Client

	if len(cfg.Gemini.APIKeys) > 0 {
		model := cfg.Model
		rc, err := NewRotatingClient("gemini", cfg.Gemini.APIKeys, func(ctx context.Context, key string) (Client, error) {
			return NewGeminiClient(ctx, key, model)
		})
		if err == nil {
			gemini = rc
		}
	}

	if cfg.Anthropic.APIKey != "" {
		ac, err := NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
		if err != nil {
			return nil, err
		}
		claude = ac
	}

	var chain []Client
	if cfg.Provider == types.LLMProviderAnthropic {
		chain = appendNonNil(chain, claude, gemini)
	} else {
		chain = appendNonNil(chain, gemini, claude)
	}

	switch len(chain) {
	case 0:
		return nil, &types.NotConfiguredError{Service: "llm"}
	case 1:
		return chain[0], nil
	}

	log.Info().Str("primary", cfg.Provider).Int("providers", len(chain)).Msg("llm fallback chain configured")
	return NewFallbackClient(chain...), nil
}

func appendNonNil(chain []Client, clients ...Client) []Client {
	for _, c := range clients {
		if c != nil {
			chain = append(chain, c)
		}
	}
	return chain
}
