package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stanipov/NeuroQuest/internal/ai"
	"github.com/stanipov/NeuroQuest/internal/ai/mocks"
	"github.com/stanipov/NeuroQuest/internal/memory"
	"github.com/stanipov/NeuroQuest/internal/models"
	"github.com/stanipov/NeuroQuest/internal/state"
)

func newTestOrchestrator(client ai.Client, st *state.Store, mem *memory.Manager, conditions []models.WinLoseCondition) *Orchestrator {
	return NewOrchestrator(client, st, mem, testWorld(), conditions, Config{
		CollaboratorTimeout: time.Second,
		CollaboratorRetries: 1,
	}, zap.NewNop())
}

func classifyGameAction(action string, items []string) string {
	payload := `{"label":"game_action","action":"` + action + `","items":[`
	for i, item := range items {
		if i > 0 {
			payload += ","
		}
		payload += `"` + item + `"`
	}
	return payload + `],"location":""}`
}

func TestOrchestrator_RunTurn(t *testing.T) {
	ctx := context.Background()

	t.Run("exit ends the session without consulting any collaborator", func(t *testing.T) {
		client := new(mocks.Client)
		o := newTestOrchestrator(client, testStore(), testMemory(), nil)

		result, err := o.RunTurn(ctx, "exit")

		require.NoError(t, err)
		assert.Equal(t, models.TerminationExit, result.Termination)
		assert.Equal(t, StateEnd, o.State())
		client.AssertNotCalled(t, "GenerateText",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

		_, err = o.RunTurn(ctx, "look around")
		assert.ErrorIs(t, err, ErrSessionEnded)
	})

	t.Run("invalid input loops back without costing a turn", func(t *testing.T) {
		client := new(mocks.Client)
		o := newTestOrchestrator(client, testStore(), testMemory(), nil)

		result, err := o.RunTurn(ctx, "   ")

		require.NoError(t, err)
		assert.True(t, result.NeedsRetry)
		assert.False(t, result.TurnAdvanced)
		assert.NotEmpty(t, result.Narration)
		assert.Equal(t, StateAwaitingInput, o.State())
		assert.Equal(t, 0, o.TurnIndex())
	})

	t.Run("non-game input gets a light reply and no state change", func(t *testing.T) {
		st := testStore()
		mem := testMemory()
		client := new(mocks.Client)
		client.On("GenerateText", mock.Anything, ai.CallClassify, mock.Anything, mock.Anything, mock.Anything).
			Return(`{"label":"non_game"}`, ai.UsageInfo{}, nil)
		client.On("GenerateText", mock.Anything, ai.CallReply, mock.Anything, mock.Anything, mock.Anything).
			Return("You asked what the rules are; the narrator smiles and keeps the pages closed.", ai.UsageInfo{}, nil)
		o := newTestOrchestrator(client, st, mem, nil)
		before := st.All()

		result, err := o.RunTurn(ctx, "what are the rules of this game?")

		require.NoError(t, err)
		assert.False(t, result.TurnAdvanced)
		assert.Equal(t, models.TerminationNone, result.Termination)
		assert.NotEmpty(t, result.Narration)
		assert.Equal(t, 0, o.TurnIndex(), "a reply does not cost a turn")
		assert.Equal(t, before, st.All(), "character state untouched")
		assert.Equal(t, 1, mem.Len(), "the exchange is remembered")
	})

	t.Run("rejected action narrates diegetically and does not advance the turn", func(t *testing.T) {
		st := testStore()
		mem := testMemory()
		client := new(mocks.Client)
		client.On("GenerateText", mock.Anything, ai.CallClassify, mock.Anything, mock.Anything, mock.Anything).
			Return(classifyGameAction("attack the guard with a laser gun", []string{"laser gun"}), ai.UsageInfo{}, nil)
		o := newTestOrchestrator(client, st, mem, nil)
		before := st.All()

		result, err := o.RunTurn(ctx, "attack the guard with a laser gun")

		require.NoError(t, err)
		assert.False(t, result.TurnAdvanced)
		assert.Equal(t, models.TerminationNone, result.Termination)
		assert.NotEmpty(t, result.Narration)
		assert.NotContains(t, result.Narration, "rejected", "the world refuses, the engine does not lecture")

		assert.Equal(t, 0, o.TurnIndex())
		assert.Equal(t, before, st.All(), "rejection leaves state bit-identical")
		assert.Equal(t, 1, mem.Len(), "the failed attempt is remembered")
		assert.Equal(t, StateAwaitingInput, o.State())

		// Only classification ran; NPCs and narrator were never consulted.
		client.AssertNotCalled(t, "GenerateText",
			mock.Anything, ai.CallNPC, mock.Anything, mock.Anything, mock.Anything)
		client.AssertNotCalled(t, "GenerateText",
			mock.Anything, ai.CallNarrate, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("accepted action runs the full pipeline and advances the turn", func(t *testing.T) {
		st := testStore()
		mem := testMemory()
		client := new(mocks.Client)
		client.On("GenerateText", mock.Anything, ai.CallClassify, mock.Anything, mock.Anything, mock.Anything).
			Return(classifyGameAction("attack the guard with the sword", []string{"sword"}), ai.UsageInfo{}, nil)
		client.On("GenerateText", mock.Anything, ai.CallNPC, mock.Anything, mock.Anything, mock.Anything).
			Return(`{"reaction":"Wilem draws his blade and meets the swing.","delta":{"physical":-3}}`, ai.UsageInfo{}, nil)
		client.On("GenerateText", mock.Anything, ai.CallNarrate, mock.Anything, mock.Anything, mock.Anything).
			Return(`{"narration":"Steel rings; you take a cut across the knuckles.","player_delta":{"physical":-2}}`, ai.UsageInfo{}, nil)
		o := newTestOrchestrator(client, st, mem, nil)

		result, err := o.RunTurn(ctx, "attack the guard with my sword")

		require.NoError(t, err)
		assert.True(t, result.TurnAdvanced)
		assert.Equal(t, models.TerminationNone, result.Termination)
		assert.Equal(t, "Steel rings; you take a cut across the knuckles.", result.Narration)
		require.Len(t, result.AppliedDeltas, 2, "guard delta then player delta")

		assert.Equal(t, 1, o.TurnIndex())
		assert.Equal(t, StateAwaitingInput, o.State())
		assert.Equal(t, 1, mem.Len())

		guard, err := st.Get("guard")
		require.NoError(t, err)
		assert.Equal(t, 15, guard.Physical)
		player, err := st.Get(models.PlayerID)
		require.NoError(t, err)
		assert.Equal(t, 13, player.Physical)
	})

	t.Run("a lose outcome ends the session", func(t *testing.T) {
		st := state.NewStore([]models.CharacterState{{
			ID: models.PlayerID, Name: "Aldric", LocationID: "square",
			Physical: 2, Mental: 10, Inventory: map[string]models.Item{},
		}}, zap.NewNop())
		client := new(mocks.Client)
		client.On("GenerateText", mock.Anything, ai.CallClassify, mock.Anything, mock.Anything, mock.Anything).
			Return(classifyGameAction("leap from the well", nil), ai.UsageInfo{}, nil)
		client.On("GenerateText", mock.Anything, ai.CallNarrate, mock.Anything, mock.Anything, mock.Anything).
			Return(`{"narration":"The fall is short and the landing is not.","player_delta":{"physical":-5}}`, ai.UsageInfo{}, nil)
		o := newTestOrchestrator(client, st, testMemory(), nil)

		result, err := o.RunTurn(ctx, "leap from the well")

		require.NoError(t, err)
		assert.Equal(t, models.TerminationLose, result.Termination)
		assert.Equal(t, StateEnd, o.State())

		_, err = o.RunTurn(ctx, "get up")
		assert.ErrorIs(t, err, ErrSessionEnded)
	})

	t.Run("a win outcome ends the session", func(t *testing.T) {
		conditions := []models.WinLoseCondition{
			{Tag: models.TagWin, Kind: models.CondAtLocation, LocationID: "square", Description: "reach the square"},
		}
		client := new(mocks.Client)
		client.On("GenerateText", mock.Anything, ai.CallClassify, mock.Anything, mock.Anything, mock.Anything).
			Return(`{"label":"game_action","action":"walk to the market square","items":[],"location":"square"}`, ai.UsageInfo{}, nil)
		client.On("GenerateText", mock.Anything, ai.CallNPC, mock.Anything, mock.Anything, mock.Anything).
			Return(`{"reaction":"Wilem nods as you pass.","delta":{}}`, ai.UsageInfo{}, nil)
		client.On("GenerateText", mock.Anything, ai.CallNarrate, mock.Anything, mock.Anything, mock.Anything).
			Return(`{"narration":"You step out into the bustle of the square.","player_delta":{"move_to":"square"}}`, ai.UsageInfo{}, nil)
		st := testStore()
		o := newTestOrchestrator(client, st, testMemory(), conditions)

		result, err := o.RunTurn(ctx, "walk to the market square")

		require.NoError(t, err)
		assert.Equal(t, models.TerminationWin, result.Termination)
		assert.Equal(t, StateEnd, o.State())
	})
}

func TestOrchestrator_SnapshotRestore(t *testing.T) {
	ctx := context.Background()

	client := new(mocks.Client)
	client.On("GenerateText", mock.Anything, ai.CallClassify, mock.Anything, mock.Anything, mock.Anything).
		Return(classifyGameAction("attack the guard with the sword", []string{"sword"}), ai.UsageInfo{}, nil)
	client.On("GenerateText", mock.Anything, ai.CallNPC, mock.Anything, mock.Anything, mock.Anything).
		Return(`{"reaction":"Wilem blocks the blow.","delta":{"physical":-1}}`, ai.UsageInfo{}, nil)
	client.On("GenerateText", mock.Anything, ai.CallNarrate, mock.Anything, mock.Anything, mock.Anything).
		Return(`{"narration":"The exchange leaves you both breathing hard.","player_delta":{"physical":-1}}`, ai.UsageInfo{}, nil)

	st := testStore()
	mem := testMemory()
	o := newTestOrchestrator(client, st, mem, nil)
	o.SetFlag("guard_provoked", true)

	_, err := o.RunTurn(ctx, "attack the guard with my sword")
	require.NoError(t, err)

	snap := o.Snapshot()
	assert.Equal(t, o.SessionID(), snap.SessionID)
	assert.Equal(t, 1, snap.TurnIndex)
	assert.Len(t, snap.Characters, 2)
	assert.True(t, snap.Flags["guard_provoked"])

	// A fresh orchestrator resumes the saved session at the turn boundary.
	restored := newTestOrchestrator(new(mocks.Client), testStore(), testMemory(), nil)
	require.NoError(t, restored.RestoreSnapshot(snap))

	assert.Equal(t, snap.SessionID, restored.SessionID())
	assert.Equal(t, 1, restored.TurnIndex())

	player, err := restored.store.Get(models.PlayerID)
	require.NoError(t, err)
	assert.Equal(t, 14, player.Physical)
	assert.Equal(t, 1, restored.memory.Len())

	t.Run("restore is refused mid-session-end", func(t *testing.T) {
		ended := newTestOrchestrator(new(mocks.Client), testStore(), testMemory(), nil)
		_, err := ended.RunTurn(ctx, "exit")
		require.NoError(t, err)
		assert.Error(t, ended.RestoreSnapshot(snap))
	})
}
