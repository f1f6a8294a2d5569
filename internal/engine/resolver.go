package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/stanipov/NeuroQuest/internal/ai"
	"github.com/stanipov/NeuroQuest/internal/models"
	"github.com/stanipov/NeuroQuest/internal/prompts"
	"github.com/stanipov/NeuroQuest/internal/state"
)

// Resolver synthesizes the validated action and the NPC reactions into one
// narrated outcome, applies the resulting deltas through the state store
// and evaluates the win/lose conditions against the updated state.
type Resolver struct {
	client     ai.Client
	store      *state.Store
	world      *models.WorldRuleSet
	conditions []models.WinLoseCondition
	cfg        collaboratorConfig
	logger     *zap.Logger
}

// NewResolver creates an outcome resolver.
func NewResolver(client ai.Client, store *state.Store, world *models.WorldRuleSet, conditions []models.WinLoseCondition, cfg collaboratorConfig, logger *zap.Logger) *Resolver {
	return &Resolver{
		client:     client,
		store:      store,
		world:      world,
		conditions: conditions,
		cfg:        cfg,
		logger:     logger.Named("Resolver"),
	}
}

// narratePayload is the collaborator's required response shape.
type narratePayload struct {
	Narration   string       `json:"narration"`
	PlayerDelta models.Delta `json:"player_delta"`
}

// Resolve runs the outcome step of one accepted game action. Only
// StateCorruptionError aborts; invalid sub-deltas are logged and skipped.
func (r *Resolver) Resolve(ctx context.Context, action string, reactions []NPCReaction, window models.MemoryWindow, flags map[string]bool) (*models.TurnResult, error) {
	player, err := r.store.Get(models.PlayerID)
	if err != nil {
		return nil, err
	}

	fragments := make([]string, 0, len(reactions))
	for _, re := range reactions {
		if re.Failed || re.Narration == "" {
			continue
		}
		fragments = append(fragments, fmt.Sprintf("%s: %s", re.Name, re.Narration))
	}

	systemPrompt := prompts.Narrate(r.world, player, action, fragments, window)

	var payload narratePayload
	genErr := generateParsed(ctx, r.client, ai.CallNarrate, r.cfg, systemPrompt, "", func(raw string) error {
		payload = narratePayload{}
		if err := decodeJSONObject(raw, &payload); err != nil {
			return err
		}
		if strings.TrimSpace(payload.Narration) == "" {
			return fmt.Errorf("empty narration")
		}
		return nil
	}, r.logger)

	if genErr != nil {
		// Degraded outcome: the turn still resolves, with the NPC
		// fragments as narration and no player delta.
		r.logger.Warn("Narration degraded", zap.Error(genErr))
		payload = narratePayload{Narration: degradedNarration(action, fragments)}
	}

	result := &models.TurnResult{
		Narration:    strings.TrimSpace(payload.Narration),
		Termination:  models.TerminationNone,
		TurnAdvanced: true,
	}

	// NPC deltas first, then the player's, all through the single store
	// path. NPC completion order does not matter: each delta touches only
	// its own character.
	for _, re := range reactions {
		if re.Failed || re.Delta.IsZero() {
			continue
		}
		if err := r.applyDelta(re.Delta, result); err != nil {
			return nil, err
		}
	}

	playerDelta := payload.PlayerDelta
	playerDelta.CharacterID = models.PlayerID
	if !playerDelta.IsZero() {
		if err := r.applyDelta(playerDelta, result); err != nil {
			return nil, err
		}
	}

	result.Termination = r.evaluateConditions(flags)
	return result, nil
}

// applyDelta pushes one delta through the store. InvalidDelta is a resolver
// bug upstream: log, keep the applied part, carry on. StateCorruption is
// fatal and propagates.
func (r *Resolver) applyDelta(delta models.Delta, result *models.TurnResult) error {
	err := r.store.ApplyDelta(delta)
	if err != nil {
		var corrupt *models.StateCorruptionError
		if errors.As(err, &corrupt) {
			return corrupt
		}
		r.logger.Warn("Dropped invalid sub-delta", zap.String("characterID", delta.CharacterID), zap.Error(err))
	}
	result.AppliedDeltas = append(result.AppliedDeltas, delta)
	return nil
}

// evaluateConditions checks the win conditions first (in declared order),
// then the lose conditions, then the built-in lose on the player hitting
// the lower physical bound. First match wins: when a turn satisfies both a
// win and a lose predicate, the player has won.
func (r *Resolver) evaluateConditions(flags map[string]bool) models.Termination {
	for _, cond := range r.conditions {
		if cond.Tag == models.TagWin && r.holds(cond, flags) {
			r.logger.Info("Win condition met", zap.String("description", cond.Description))
			return models.TerminationWin
		}
	}
	for _, cond := range r.conditions {
		if cond.Tag == models.TagLose && r.holds(cond, flags) {
			r.logger.Info("Lose condition met", zap.String("description", cond.Description))
			return models.TerminationLose
		}
	}

	if player, err := r.store.Get(models.PlayerID); err == nil && player.Physical <= models.HealthMin {
		r.logger.Info("Player physical health reached the terminal bound")
		return models.TerminationLose
	}
	return models.TerminationNone
}

func (r *Resolver) holds(cond models.WinLoseCondition, flags map[string]bool) bool {
	characterID := cond.CharacterID
	if characterID == "" {
		characterID = models.PlayerID
	}

	if cond.Kind == models.CondFlag {
		return flags[cond.Flag]
	}

	c, err := r.store.Get(characterID)
	if err != nil {
		r.logger.Warn("Condition references unknown character", zap.String("characterID", characterID))
		return false
	}

	switch cond.Kind {
	case models.CondHealthMin:
		return c.Physical <= models.HealthMin
	case models.CondHealthMax:
		return c.Physical >= models.HealthMax
	case models.CondHasItem:
		return c.HasItem(cond.ItemID)
	case models.CondLostItem:
		return !c.HasItem(cond.ItemID)
	case models.CondAtLocation:
		return c.LocationID == cond.LocationID
	default:
		return false
	}
}

func degradedNarration(action string, fragments []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You %s.", strings.TrimSuffix(action, "."))
	for _, f := range fragments {
		b.WriteString(" ")
		b.WriteString(f)
	}
	return b.String()
}
