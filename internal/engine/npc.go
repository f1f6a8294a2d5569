package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stanipov/NeuroQuest/internal/ai"
	"github.com/stanipov/NeuroQuest/internal/models"
	"github.com/stanipov/NeuroQuest/internal/prompts"
)

// NPCReaction is one NPC's answer to the player's action: a narration
// fragment plus an optional delta to that NPC's own state. A failed
// collaborator call (after retry) degrades to "no reaction".
type NPCReaction struct {
	NPCID     string
	Name      string
	Narration string
	Delta     models.Delta
	Failed    bool
}

// NPCReasoner asks each NPC in scope how it reacts to the player's action.
// NPCs are independent: calls fan out concurrently and results are merged
// in ascending NPC-id order, so output never depends on completion order.
type NPCReasoner struct {
	client ai.Client
	world  *models.WorldRuleSet
	cfg    collaboratorConfig
	logger *zap.Logger
}

// NewNPCReasoner creates an NPC reasoner.
func NewNPCReasoner(client ai.Client, world *models.WorldRuleSet, cfg collaboratorConfig, logger *zap.Logger) *NPCReasoner {
	return &NPCReasoner{
		client: client,
		world:  world,
		cfg:    cfg,
		logger: logger.Named("NPCReasoner"),
	}
}

// npcPayload is the collaborator's required response shape per NPC.
type npcPayload struct {
	Reaction string       `json:"reaction"`
	Delta    models.Delta `json:"delta"`
}

// React collects reactions from the given NPCs (already sorted by ID by the
// state store). One NPC's failure never blocks the others.
func (r *NPCReasoner) React(ctx context.Context, npcs []models.CharacterState, action string, window models.MemoryWindow) []NPCReaction {
	if len(npcs) == 0 {
		return nil
	}

	reactions := make([]NPCReaction, len(npcs))

	g, groupCtx := errgroup.WithContext(ctx)
	for i := range npcs {
		g.Go(func() error {
			reactions[i] = r.reactOne(groupCtx, &npcs[i], action, window)
			return nil // failures degrade per NPC, they never cancel the group
		})
	}
	_ = g.Wait()

	return reactions
}

func (r *NPCReasoner) reactOne(ctx context.Context, npc *models.CharacterState, action string, window models.MemoryWindow) NPCReaction {
	reaction := NPCReaction{NPCID: npc.ID, Name: npc.Name}

	systemPrompt := prompts.NPCReact(r.world, npc, action, window)

	var payload npcPayload
	err := generateParsed(ctx, r.client, ai.CallNPC, r.cfg, systemPrompt, "", func(raw string) error {
		payload = npcPayload{}
		if err := decodeJSONObject(raw, &payload); err != nil {
			return err
		}
		if strings.TrimSpace(payload.Reaction) == "" {
			return fmt.Errorf("empty reaction")
		}
		return nil
	}, r.logger)

	if err != nil {
		r.logger.Warn("NPC degraded to no reaction", zap.String("npcID", npc.ID), zap.Error(err))
		reaction.Failed = true
		return reaction
	}

	reaction.Narration = strings.TrimSpace(payload.Reaction)
	reaction.Delta = payload.Delta
	// The NPC only ever changes its own state; whatever the model put in
	// character_id is overridden.
	reaction.Delta.CharacterID = npc.ID
	return reaction
}
