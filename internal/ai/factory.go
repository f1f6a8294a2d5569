package ai

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DeepSeek exposes an OpenAI-compatible API; only the base URL differs.
const deepSeekDefaultBaseURL = "https://api.deepseek.com"

// FactoryConfig holds the provider-selection settings.
type FactoryConfig struct {
	Provider string // openai, deepseek, ollama or dummy
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	// Counter is optional; used for local usage estimates.
	Counter *TokenCounter
}

// NewClient builds the configured Client implementation.
func NewClient(cfg FactoryConfig, logger *zap.Logger) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		logger.Info("Using AI client: OpenAI-compatible",
			zap.String("model", cfg.Model), zap.String("baseURL", cfg.BaseURL))
		return newOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout, logger), nil
	case "deepseek":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = deepSeekDefaultBaseURL
		}
		logger.Info("Using AI client: DeepSeek",
			zap.String("model", cfg.Model), zap.String("baseURL", baseURL))
		return newOpenAIClient(cfg.APIKey, baseURL, cfg.Model, cfg.Timeout, logger), nil
	case "ollama":
		logger.Info("Using AI client: Ollama", zap.String("model", cfg.Model))
		return newOllamaClient(cfg.BaseURL, cfg.Model, cfg.Timeout, cfg.Counter, logger)
	case "dummy":
		logger.Info("Using AI client: deterministic dummy (offline mode)")
		return newDummyClient(logger), nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %q", cfg.Provider)
	}
}
