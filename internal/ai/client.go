// Package ai wraps the generative-model collaborator behind a narrow,
// provider-swappable interface. The engine only ever sees Client; concrete
// OpenAI-compatible and Ollama implementations live here, together with a
// deterministic dummy used for offline play and tests.
package ai

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rough per-token prices used for the estimated-cost metric.
const (
	pricePerMillionInputTokensUSD  = 0.1
	pricePerMillionOutputTokensUSD = 0.4
)

// ErrGenerationFailed is returned for any provider-side failure.
var ErrGenerationFailed = errors.New("AI text generation failed")

// CallSite labels the engine call sites for metrics and the dummy client.
type CallSite string

const (
	CallClassify CallSite = "classify"
	CallNPC      CallSite = "npc_react"
	CallNarrate  CallSite = "narrate"
	CallReply    CallSite = "light_reply"
)

// GenerationParams are optional sampling parameters. Pointers distinguish
// "not set" from zero.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// UsageInfo reports token usage and estimated cost of one call.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	EstimatedCostUSD float64
}

// Client is the generative-model collaborator. Implementations must respect
// ctx cancellation and deadlines; the engine applies per-call timeouts and
// retries around it.
type Client interface {
	// GenerateText sends a system prompt plus optional user input and
	// returns the raw completion text. The call-site contract (exact label,
	// JSON shape) is checked by the caller, not here.
	GenerateText(ctx context.Context, call CallSite, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error)
}

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuroquest_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "status", "call"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neuroquest_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model", "call"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neuroquest_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model", "call"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neuroquest_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"model", "call"},
	)
	aiEstimatedCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuroquest_ai_estimated_cost_usd_total",
			Help: "Estimated total cost of AI requests in USD.",
		},
		[]string{"model", "call"},
	)
)

// calculateCost estimates the request cost from token counts.
func calculateCost(promptTokens, completionTokens int) float64 {
	inputCost := float64(promptTokens) * pricePerMillionInputTokensUSD / 1_000_000.0
	outputCost := float64(completionTokens) * pricePerMillionOutputTokensUSD / 1_000_000.0
	return inputCost + outputCost
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
