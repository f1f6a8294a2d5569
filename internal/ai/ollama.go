package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ollamaClient implements Client against a local Ollama server.
type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	counter *TokenCounter
	logger  *zap.Logger
}

func newOllamaClient(baseURL, model string, timeout time.Duration, counter *TokenCounter, logger *zap.Logger) (Client, error) {
	httpClient := &http.Client{Timeout: timeout}

	// api.NewClient wants the URL without the /v1 suffix.
	ollamaBaseURL := strings.TrimSuffix(baseURL, "/v1")
	ollamaBaseURL = strings.TrimSuffix(ollamaBaseURL, "/")
	if ollamaBaseURL == "" {
		ollamaBaseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(ollamaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Ollama base URL %q: %w", ollamaBaseURL, err)
	}

	logger.Info("Ollama client created",
		zap.String("baseURL", ollamaBaseURL),
		zap.String("model", model),
		zap.Duration("timeout", timeout))

	return &ollamaClient{
		client:  api.NewClient(parsedURL, httpClient),
		model:   model,
		timeout: timeout,
		counter: counter,
		logger:  logger.Named("OllamaClient"),
	}, nil
}

// GenerateText sends a non-streaming chat request to Ollama.
func (c *ollamaClient) GenerateText(ctx context.Context, call CallSite, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{} // local model, cost stays 0
	callLbl := string(call)

	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error", "call": callLbl}).Inc()
		return "", usageInfo, fmt.Errorf("%w: empty system prompt", ErrGenerationFailed)
	}

	messages := []api.Message{
		{Role: "system", Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, api.Message{Role: "user", Content: userInput})
	}

	options := map[string]interface{}{}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()

	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r // keep the last (complete) response
		return nil
	})

	duration := time.Since(startTime)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("Ollama API timeout",
				zap.Duration("timeout", c.timeout), zap.Duration("duration", duration), zap.Error(err))
		} else {
			c.logger.Warn("Ollama API error", zap.Duration("duration", duration), zap.Error(err))
		}
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error", "call": callLbl}).Inc()
		return "", usageInfo, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if resp.Message.Content == "" {
		c.logger.Warn("Ollama API returned empty response", zap.Duration("duration", duration))
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error", "call": callLbl}).Inc()
		return "", usageInfo, fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success", "call": callLbl}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model, "call": callLbl}).Observe(duration.Seconds())

	generatedText := resp.Message.Content

	usageInfo.PromptTokens = resp.Metrics.PromptEvalCount
	usageInfo.CompletionTokens = resp.Metrics.EvalCount
	if usageInfo.PromptTokens == 0 && c.counter != nil {
		// Older Ollama versions do not report counts; estimate locally.
		usageInfo.PromptTokens = c.counter.Count(systemPrompt) + c.counter.Count(userInput)
		usageInfo.CompletionTokens = c.counter.Count(generatedText)
	}
	usageInfo.TotalTokens = usageInfo.PromptTokens + usageInfo.CompletionTokens

	if usageInfo.TotalTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": c.model, "call": callLbl}).Observe(float64(usageInfo.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model, "call": callLbl}).Observe(float64(usageInfo.CompletionTokens))
	}

	return generatedText, usageInfo, nil
}
