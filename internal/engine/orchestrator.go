package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stanipov/NeuroQuest/internal/ai"
	"github.com/stanipov/NeuroQuest/internal/memory"
	"github.com/stanipov/NeuroQuest/internal/models"
	"github.com/stanipov/NeuroQuest/internal/prompts"
	"github.com/stanipov/NeuroQuest/internal/state"
)

// State is the orchestrator's position in the turn state machine.
type State string

const (
	StateAwaitingInput State = "awaiting_input"
	StateClassifying   State = "classifying"
	StateLightReply    State = "light_reply"
	StateValidating    State = "validating"
	StateNPCReasoning  State = "npc_reasoning"
	StateResolving     State = "resolving"
	StateMemoryUpdate  State = "memory_update"
	StateEnd           State = "end"
)

// ErrSessionEnded is returned by RunTurn after the session reached END.
var ErrSessionEnded = errors.New("game session has ended")

// Config bounds the orchestrator's collaborator calls.
type Config struct {
	CollaboratorTimeout time.Duration
	CollaboratorRetries int
}

// Orchestrator ties classifier, validator, NPC reasoner, resolver, state
// store and memory into one game loop. One turn is processed end-to-end at
// a time: turn n+1 never starts before turn n's state mutation and memory
// append complete.
type Orchestrator struct {
	sessionID  string
	turnIndex  int
	st         State
	flags      map[string]bool
	client     ai.Client
	classifier *Classifier
	validator  *Validator
	npcs       *NPCReasoner
	resolver   *Resolver
	store      *state.Store
	memory     *memory.Manager
	world      *models.WorldRuleSet
	cfg        collaboratorConfig
	logger     *zap.Logger
}

// NewOrchestrator wires the engine components around the injected
// collaborators and owned state.
func NewOrchestrator(
	client ai.Client,
	store *state.Store,
	mem *memory.Manager,
	world *models.WorldRuleSet,
	conditions []models.WinLoseCondition,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	collabCfg := collaboratorConfig{
		Timeout: cfg.CollaboratorTimeout,
		Retries: cfg.CollaboratorRetries,
	}.withDefaults()

	return &Orchestrator{
		sessionID:  uuid.NewString(),
		st:         StateAwaitingInput,
		flags:      make(map[string]bool),
		client:     client,
		classifier: NewClassifier(client, world, collabCfg, logger),
		validator:  NewValidator(world),
		npcs:       NewNPCReasoner(client, world, collabCfg, logger),
		resolver:   NewResolver(client, store, world, conditions, collabCfg, logger),
		store:      store,
		memory:     mem,
		world:      world,
		cfg:        collabCfg,
		logger:     logger.Named("Orchestrator"),
	}
}

// SessionID returns the session identifier.
func (o *Orchestrator) SessionID() string { return o.sessionID }

// State returns the current state-machine position.
func (o *Orchestrator) State() State { return o.st }

// TurnIndex returns the number of completed game-action turns.
func (o *Orchestrator) TurnIndex() int { return o.turnIndex }

// SetFlag sets a session flag used by flag-kind win/lose conditions.
func (o *Orchestrator) SetFlag(name string, value bool) { o.flags[name] = value }

// RunTurn processes one piece of player input through the full pipeline and
// returns its TurnResult. Only StateCorruption (and a spent session)
// surface as errors; every other failure is folded into the result.
func (o *Orchestrator) RunTurn(ctx context.Context, input string) (*models.TurnResult, error) {
	if o.st == StateEnd {
		return nil, ErrSessionEnded
	}

	player, err := o.store.Get(models.PlayerID)
	if err != nil {
		return nil, err
	}
	window := o.memory.Window(input)

	o.st = StateClassifying
	cls := o.classifier.Classify(ctx, input, player, window)

	switch cls.Label {
	case models.LabelExit:
		// Exit is honored immediately; any outstanding collaborator work
		// is abandoned with the turn context, not awaited.
		o.st = StateEnd
		return &models.TurnResult{
			Narration:   "The story closes its covers. Farewell.",
			Termination: models.TerminationExit,
		}, nil

	case models.LabelInvalid:
		o.st = StateAwaitingInput
		return &models.TurnResult{
			Narration:   cls.Hint,
			Termination: models.TerminationNone,
			NeedsRetry:  true,
		}, nil

	case models.LabelNonGame:
		return o.lightReply(ctx, cls, window)

	default:
		return o.gameAction(ctx, cls, player, window)
	}
}

// lightReply answers out-of-game talk without touching character state.
func (o *Orchestrator) lightReply(ctx context.Context, cls models.ActionClassification, window models.MemoryWindow) (*models.TurnResult, error) {
	o.st = StateLightReply

	systemPrompt := prompts.LightReply(o.world, window)

	var reply string
	err := generateParsed(ctx, o.client, ai.CallReply, o.cfg, systemPrompt, cls.Normalized, func(raw string) error {
		if strings.TrimSpace(raw) == "" {
			return fmt.Errorf("empty reply")
		}
		reply = strings.TrimSpace(raw)
		return nil
	}, o.logger)
	if err != nil {
		o.logger.Warn("Light reply degraded", zap.Error(err))
		reply = "The narrator considers the question, then lets the story speak for itself."
	}

	o.st = StateMemoryUpdate
	if err := o.memory.Append(models.MemoryEvent{
		TurnIndex: o.turnIndex,
		Actor:     "narrator",
		Summary:   summarize(fmt.Sprintf("asked: %s — %s", cls.Normalized, reply)),
		Raw:       reply,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		o.logger.Error("Failed to append memory event", zap.Error(err))
	}

	o.st = StateAwaitingInput
	return &models.TurnResult{
		Narration:   reply,
		Termination: models.TerminationNone,
	}, nil
}

// gameAction runs the validate → NPC → resolve → memory pipeline.
func (o *Orchestrator) gameAction(ctx context.Context, cls models.ActionClassification, player *models.CharacterState, window models.MemoryWindow) (*models.TurnResult, error) {
	o.st = StateValidating

	if err := o.validator.Validate(cls, player); err != nil {
		var rejected *models.ActionRejectedError
		if !errors.As(err, &rejected) {
			return nil, err
		}

		narration := rejectionNarration(rejected)

		// The rejection is remembered (same turn index, no state change)
		// so the model knows an identical retry already failed.
		o.st = StateMemoryUpdate
		if appendErr := o.memory.Append(models.MemoryEvent{
			TurnIndex: o.turnIndex,
			Actor:     "narrator",
			Summary:   summarize(fmt.Sprintf("the attempt to %s failed: %s", cls.Normalized, rejected.Detail)),
			Raw:       narration,
			CreatedAt: time.Now().UTC(),
		}); appendErr != nil {
			o.logger.Error("Failed to append memory event", zap.Error(appendErr))
		}

		o.st = StateAwaitingInput
		return &models.TurnResult{
			Narration:   narration,
			Termination: models.TerminationNone,
		}, nil
	}

	o.st = StateNPCReasoning
	npcsHere := o.store.AtLocation(player.LocationID)
	reactions := o.npcs.React(ctx, npcsHere, cls.Normalized, window)

	o.st = StateResolving
	result, err := o.resolver.Resolve(ctx, cls.Normalized, reactions, window, o.flags)
	if err != nil {
		// StateCorruption: the session aborts with a diagnostic instead of
		// silently continuing on untrusted state.
		o.st = StateEnd
		return nil, err
	}

	o.st = StateMemoryUpdate
	if err := o.memory.Append(models.MemoryEvent{
		TurnIndex: o.turnIndex,
		Actor:     "player",
		Summary:   summarize(fmt.Sprintf("%s — %s", cls.Normalized, result.Narration)),
		Raw:       result.Narration,
		Deltas:    result.AppliedDeltas,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		o.logger.Error("Failed to append memory event", zap.Error(err))
	}
	o.turnIndex++

	if result.Termination == models.TerminationWin || result.Termination == models.TerminationLose {
		o.st = StateEnd
	} else {
		o.st = StateAwaitingInput
	}
	return result, nil
}

// Snapshot exports the full session state. Valid only between turns, which
// is the only time RunTurn is not executing.
func (o *Orchestrator) Snapshot() models.Snapshot {
	return models.Snapshot{
		SessionID:  o.sessionID,
		TurnIndex:  o.turnIndex,
		Characters: o.store.All(),
		Events:     o.memory.Events(),
		Flags:      copyFlags(o.flags),
		SavedAt:    time.Now().UTC(),
	}
}

// RestoreSnapshot resumes a saved session at its turn boundary.
func (o *Orchestrator) RestoreSnapshot(snap models.Snapshot) error {
	if o.st != StateAwaitingInput {
		return fmt.Errorf("cannot restore mid-turn (state %s)", o.st)
	}
	o.sessionID = snap.SessionID
	o.turnIndex = snap.TurnIndex
	o.flags = copyFlags(snap.Flags)
	if o.flags == nil {
		o.flags = make(map[string]bool)
	}
	o.store.Restore(snap.Characters)
	o.memory.Restore(snap.Events)
	return nil
}

func copyFlags(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// rejectionNarration keeps rule failures diegetic: the world refuses, the
// engine does not lecture.
func rejectionNarration(err *models.ActionRejectedError) string {
	switch err.Reason {
	case models.ReasonAnachronism:
		return fmt.Sprintf("The thought slips away like a half-remembered dream: %s.", err.Detail)
	case models.ReasonCapabilityMissing:
		return fmt.Sprintf("The will is there, but %s.", err.Detail)
	case models.ReasonLocationMismatch:
		return fmt.Sprintf("The road refuses: %s.", err.Detail)
	case models.ReasonInventoryMissing:
		return fmt.Sprintf("Hands search and find nothing: %s.", err.Detail)
	default:
		return "The world does not bend that way."
	}
}

const maxSummaryRunes = 200

// summarize caps a summary line; full text lives in the event's Raw field.
func summarize(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= maxSummaryRunes {
		return string(runes)
	}
	return string(runes[:maxSummaryRunes-1]) + "…"
}
