package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stanipov/NeuroQuest/internal/ai"
	"github.com/stanipov/NeuroQuest/internal/models"
)

// collaboratorConfig bounds every generative call: a hard per-call timeout
// and a retry budget for timed-out or contract-violating responses.
type collaboratorConfig struct {
	Timeout time.Duration
	Retries int
}

func (c collaboratorConfig) withDefaults() collaboratorConfig {
	if c.Timeout <= 0 {
		c.Timeout = 45 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	return c
}

// generateParsed calls the collaborator and runs the call site's contract
// check over the response. A timeout or a contract violation consumes one
// attempt; after the retry budget is spent the last error is returned and
// the caller degrades per its documented behavior.
func generateParsed(
	ctx context.Context,
	client ai.Client,
	call ai.CallSite,
	cfg collaboratorConfig,
	systemPrompt, userInput string,
	parse func(raw string) error,
	logger *zap.Logger,
) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		raw, _, err := client.GenerateText(callCtx, call, systemPrompt, userInput, ai.GenerationParams{})
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				lastErr = fmt.Errorf("%w: %s", models.ErrCollaboratorTimeout, call)
			} else {
				lastErr = err
			}
			logger.Warn("Collaborator call failed",
				zap.String("call", string(call)), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		if err := parse(raw); err != nil {
			lastErr = fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
			logger.Warn("Collaborator response violates contract",
				zap.String("call", string(call)), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		return nil
	}
	return lastErr
}

// decodeJSONObject extracts the first JSON object from a completion and
// decodes it. Models habitually wrap JSON in markdown fences or prose;
// anything without a decodable object is a contract violation.
func decodeJSONObject(raw string, v any) error {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), v); err != nil {
		return fmt.Errorf("undecodable JSON object: %v", err)
	}
	return nil
}
