// Package extractor implements the engine's external collaborators: the
// document loader, the per-step extractors (LLM-backed via langchaingo,
// with a heuristic offline fallback), and the aggregator that folds step
// slots into the final job record.
package extractor

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/jobflow/internal/state"
	"github.com/fyrsmithlabs/jobflow/internal/steps"
)

// Provider names accepted by Config.Provider.
const (
	ProviderOpenAI    = "openai"
	ProviderHeuristic = "heuristic"
)

// Config selects and configures the extraction provider.
type Config struct {
	Provider  string  `koanf:"provider"`
	Model     string  `koanf:"model"`
	BaseURL   string  `koanf:"base_url"`
	APIKey    string  `koanf:"api_key"`
	MaxTokens int     `koanf:"max_tokens"`
	RateLimit float64 `koanf:"rate_limit"` // requests per second across all steps
}

// DefaultConfig returns the heuristic provider, which needs no credentials.
func DefaultConfig() Config {
	return Config{
		Provider:  ProviderHeuristic,
		Model:     "gpt-4o-mini",
		MaxTokens: 1024,
		RateLimit: 50.0 / 60.0,
	}
}

// NewExtractors builds one extractor per step for the configured provider.
func NewExtractors(cfg Config, logger *zap.Logger) (map[state.StepKey]steps.Extractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case ProviderHeuristic, "":
		out := make(map[state.StepKey]steps.Extractor, len(state.AllSteps()))
		for _, key := range state.AllSteps() {
			out[key] = NewHeuristicExtractor(key)
		}
		return out, nil
	case ProviderOpenAI:
		client, err := newLLMClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("create llm client: %w", err)
		}
		out := make(map[state.StepKey]steps.Extractor, len(state.AllSteps()))
		for _, key := range state.AllSteps() {
			out[key] = newLLMExtractor(key, client, cfg, logger)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", cfg.Provider)
	}
}
