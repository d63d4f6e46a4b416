package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/markdave123-py/docingest/internal/config"
	"github.com/markdave123-py/docingest/internal/core"
)

// MetadataTemperature keeps enrichment answers stable between runs.
const MetadataTemperature = 0.3

// NewProvider builds the configured provider wrapped in ResilientProvider.
func NewProvider(ctx context.Context, cfg *config.Config) (core.LLMProvider, error) {
	var base core.LLMProvider
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		g, err := NewGeminiLLM(ctx, cfg.GeminiAPIKey, cfg.GenModel, cfg.VisionModel, MetadataTemperature)
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize gemini: %w", err)
		}
		base = g
	case config.ProviderOpenAI, "":
		o, err := NewOpenAILLM(OpenAIOptions{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.GenModel,
			VisionModel: cfg.VisionModel,
			Temperature: MetadataTemperature,
		})
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize openai: %w", err)
		}
		base = o
	default:
		return nil, fmt.Errorf("%w: unknown LLM_PROVIDER %q", core.ErrConfiguration, cfg.LLMProvider)
	}

	return NewResilientProvider(base, ResilienceOptions{
		Timeout:       cfg.LLMTimeout,
		MaxAttempts:   cfg.LLMMaxAttempts,
		RatePerSecond: cfg.LLMRateLimit,
		Backoff:       500 * time.Millisecond,
	}), nil
}
