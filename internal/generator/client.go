package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GenerationParams are the sampling parameters for a text generation call.
// Pointers distinguish 0/0.0 from "not set".
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// UsageInfo carries token accounting returned by a provider.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIClient is the provider-level text generation interface. Implementations
// wrap a concrete API (OpenAI-compatible or Ollama) and report per-request
// prometheus metrics. Errors wrap models.ErrGenerationFailed.
type AIClient interface {
	GenerateText(ctx context.Context, sessionID, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error)
}

// ClientConfig holds the provider settings needed to construct an AIClient.
type ClientConfig struct {
	Provider string // openai or ollama
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// NewAIClient constructs the AIClient selected by cfg.Provider.
func NewAIClient(cfg ClientConfig, logger *zap.Logger) (AIClient, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		return newOpenAIClient(cfg, logger)
	case "ollama":
		return newOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown AI provider: %q", cfg.Provider)
	}
}

func float32Val(f64 *float64) float32 {
	if f64 == nil {
		return 1.0
	}
	return float32(*f64)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
