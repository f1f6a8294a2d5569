package ai

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// dummyClient is a deterministic, offline Client. It returns canned,
// contract-conforming responses per call site, which makes the engine
// playable without a model and keeps end-to-end tests reproducible.
type dummyClient struct {
	logger *zap.Logger
}

func newDummyClient(logger *zap.Logger) Client {
	return &dummyClient{logger: logger.Named("DummyClient")}
}

// GenerateText fabricates a response appropriate for the call site.
func (c *dummyClient) GenerateText(ctx context.Context, call CallSite, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error) {
	if err := ctx.Err(); err != nil {
		return "", UsageInfo{}, err
	}

	input := strings.TrimSpace(userInput)
	var out any

	switch call {
	case CallClassify:
		label := "game_action"
		// Questions are treated as lore talk, not game actions.
		if strings.HasSuffix(input, "?") || strings.HasPrefix(strings.ToLower(input), "what") ||
			strings.HasPrefix(strings.ToLower(input), "who") || strings.HasPrefix(strings.ToLower(input), "where") {
			label = "non_game"
		}
		out = map[string]any{
			"label":    label,
			"action":   strings.ToLower(input),
			"items":    []string{},
			"location": "",
		}
	case CallNPC:
		out = map[string]any{
			"reaction": "They pause, sizing you up, and say nothing.",
			"delta":    map[string]any{},
		}
	case CallNarrate:
		narration := "The moment passes; the world shifts, just a little."
		if input != "" {
			narration = "You " + strings.TrimSuffix(strings.ToLower(input), ".") + ". The world shifts, just a little."
		}
		out = map[string]any{
			"narration":    narration,
			"player_delta": map[string]any{},
		}
	default:
		// Light reply path answers in plain prose.
		return "The innkeeper shrugs: that tale is not mine to tell.", UsageInfo{}, nil
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return "", UsageInfo{}, err
	}
	c.logger.Debug("dummy response", zap.String("call", string(call)), zap.ByteString("body", raw))
	return string(raw), UsageInfo{}, nil
}
