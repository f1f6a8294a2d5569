package engine

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/stanipov/NeuroQuest/internal/ai"
	"github.com/stanipov/NeuroQuest/internal/models"
	"github.com/stanipov/NeuroQuest/internal/prompts"
)

// maxInputRunes caps raw player input before it reaches any collaborator.
const maxInputRunes = 500

// exitWords are recognized locally at classification time; exit bypasses
// validation and every collaborator call.
var exitWords = map[string]struct{}{
	"exit": {},
	"quit": {},
	"q":    {},
}

// Classifier labels raw player input as invalid, non-game, game-action or
// exit. Unusable input is rejected locally; the semantic non-game vs
// game-action split is delegated to the collaborator under a strict output
// contract.
type Classifier struct {
	client ai.Client
	world  *models.WorldRuleSet
	cfg    collaboratorConfig
	logger *zap.Logger
}

// NewClassifier creates an action classifier.
func NewClassifier(client ai.Client, world *models.WorldRuleSet, cfg collaboratorConfig, logger *zap.Logger) *Classifier {
	return &Classifier{
		client: client,
		world:  world,
		cfg:    cfg,
		logger: logger.Named("Classifier"),
	}
}

// classifyPayload is the collaborator's required response shape.
type classifyPayload struct {
	Label    string   `json:"label"`
	Action   string   `json:"action"`
	Items    []string `json:"items"`
	Location string   `json:"location"`
}

// Classify labels one line of player input. It never returns an error:
// every failure mode degrades to INVALID with a user-facing hint, and the
// orchestrator loops back to input.
func (c *Classifier) Classify(ctx context.Context, input string, player *models.CharacterState, window models.MemoryWindow) models.ActionClassification {
	trimmed := strings.TrimSpace(input)

	if trimmed == "" {
		return models.ActionClassification{
			Label: models.LabelInvalid,
			Hint:  "Silence moves nothing. Say what you do.",
		}
	}
	if utf8.RuneCountInString(trimmed) > maxInputRunes {
		return models.ActionClassification{
			Label: models.LabelInvalid,
			Hint:  fmt.Sprintf("That is too long a tale. Keep it under %d characters.", maxInputRunes),
		}
	}
	if _, ok := exitWords[strings.ToLower(trimmed)]; ok {
		return models.ActionClassification{Label: models.LabelExit}
	}

	systemPrompt := prompts.Classify(c.world, player, window)

	var payload classifyPayload
	err := generateParsed(ctx, c.client, ai.CallClassify, c.cfg, systemPrompt, trimmed, func(raw string) error {
		payload = classifyPayload{}
		if err := decodeJSONObject(raw, &payload); err != nil {
			return err
		}
		switch payload.Label {
		case string(models.LabelNonGame):
			return nil
		case string(models.LabelGameAction):
			if strings.TrimSpace(payload.Action) == "" {
				return fmt.Errorf("game_action without a normalized action")
			}
			return nil
		default:
			// The contract allows exactly two labels; anything else is a
			// malformed response and costs the collaborator a retry.
			return fmt.Errorf("unexpected label %q", payload.Label)
		}
	}, c.logger)

	if err != nil {
		c.logger.Warn("Classification degraded to invalid", zap.Error(err))
		return models.ActionClassification{
			Label: models.LabelInvalid,
			Hint:  "The words escape the narrator. Please rephrase what you do.",
		}
	}

	if payload.Label == string(models.LabelNonGame) {
		return models.ActionClassification{Label: models.LabelNonGame, Normalized: trimmed}
	}
	return models.ActionClassification{
		Label:           models.LabelGameAction,
		Normalized:      strings.ToLower(strings.TrimSpace(payload.Action)),
		ReferencedItems: payload.Items,
		TargetLocation:  payload.Location,
	}
}
