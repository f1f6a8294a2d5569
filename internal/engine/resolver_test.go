package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stanipov/NeuroQuest/internal/ai"
	"github.com/stanipov/NeuroQuest/internal/ai/mocks"
	"github.com/stanipov/NeuroQuest/internal/models"
	"github.com/stanipov/NeuroQuest/internal/state"
)

func newTestResolver(client ai.Client, st *state.Store, conditions []models.WinLoseCondition) *Resolver {
	return NewResolver(client, st, testWorld(), conditions, testCollabConfig(), zap.NewNop())
}

func narrateResponse(t *testing.T, narration string, delta models.Delta) string {
	t.Helper()
	raw, err := json.Marshal(narratePayload{Narration: narration, PlayerDelta: delta})
	require.NoError(t, err)
	return string(raw)
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	window := models.MemoryWindow{}
	flags := map[string]bool{}

	t.Run("narration and player delta are applied", func(t *testing.T) {
		st := testStore()
		client := new(mocks.Client)
		client.On("GenerateText", mock.Anything, ai.CallNarrate, mock.Anything, mock.Anything, mock.Anything).
			Return(narrateResponse(t, "The guard parries; the blade nicks your arm.",
				models.Delta{Physical: -2}), ai.UsageInfo{}, nil)
		r := newTestResolver(client, st, nil)

		result, err := r.Resolve(ctx, "attack the guard with the sword", nil, window, flags)

		require.NoError(t, err)
		assert.Equal(t, "The guard parries; the blade nicks your arm.", result.Narration)
		assert.Equal(t, models.TerminationNone, result.Termination)
		assert.True(t, result.TurnAdvanced)

		player, err := st.Get(models.PlayerID)
		require.NoError(t, err)
		assert.Equal(t, 13, player.Physical)
	})

	t.Run("NPC deltas apply before the player delta", func(t *testing.T) {
		st := testStore()
		client := new(mocks.Client)
		client.On("GenerateText", mock.Anything, ai.CallNarrate, mock.Anything, mock.Anything, mock.Anything).
			Return(narrateResponse(t, "Steel rings against steel.", models.Delta{}), ai.UsageInfo{}, nil)
		r := newTestResolver(client, st, nil)

		reactions := []NPCReaction{{
			NPCID: "guard", Name: "Guard Wilem",
			Narration: "Wilem staggers back.",
			Delta:     models.Delta{CharacterID: "guard", Physical: -4},
		}}

		result, err := r.Resolve(ctx, "strike at the guard", reactions, window, flags)

		require.NoError(t, err)
		require.Len(t, result.AppliedDeltas, 1)
		guard, err := st.Get("guard")
		require.NoError(t, err)
		assert.Equal(t, 14, guard.Physical)
	})

	t.Run("degraded narration still resolves the turn", func(t *testing.T) {
		st := testStore()
		client := new(mocks.Client)
		client.On("GenerateText", mock.Anything, ai.CallNarrate, mock.Anything, mock.Anything, mock.Anything).
			Return("", ai.UsageInfo{}, errors.New("upstream down"))
		r := newTestResolver(client, st, nil)

		reactions := []NPCReaction{{
			NPCID: "guard", Name: "Guard Wilem", Narration: "Wilem raises an eyebrow.",
		}}

		result, err := r.Resolve(ctx, "bow theatrically", reactions, window, flags)

		require.NoError(t, err)
		assert.Contains(t, result.Narration, "bow theatrically")
		assert.Contains(t, result.Narration, "Wilem raises an eyebrow.")
		assert.True(t, result.TurnAdvanced)
		assert.Equal(t, models.TerminationNone, result.Termination)

		// No player delta when narration degrades.
		player, err := st.Get(models.PlayerID)
		require.NoError(t, err)
		assert.Equal(t, 15, player.Physical)
	})

	t.Run("invalid sub-delta is dropped, the rest applies", func(t *testing.T) {
		st := testStore()
		client := new(mocks.Client)
		client.On("GenerateText", mock.Anything, ai.CallNarrate, mock.Anything, mock.Anything, mock.Anything).
			Return(narrateResponse(t, "You pocket the coin and drop nothing of note.",
				models.Delta{Physical: -1, RemoveItems: []string{"crown jewels"}}), ai.UsageInfo{}, nil)
		r := newTestResolver(client, st, nil)

		result, err := r.Resolve(ctx, "search the table", nil, window, flags)

		require.NoError(t, err)
		assert.True(t, result.TurnAdvanced)

		player, err := st.Get(models.PlayerID)
		require.NoError(t, err)
		assert.Equal(t, 14, player.Physical, "valid part of the delta still applies")
	})

	t.Run("player health clamps at the bound and triggers the built-in lose", func(t *testing.T) {
		st := state.NewStore([]models.CharacterState{{
			ID: models.PlayerID, Name: "Aldric", LocationID: "tavern",
			Physical: models.HealthMin + 1, Mental: 10,
			Inventory: map[string]models.Item{},
		}}, zap.NewNop())

		client := new(mocks.Client)
		client.On("GenerateText", mock.Anything, ai.CallNarrate, mock.Anything, mock.Anything, mock.Anything).
			Return(narrateResponse(t, "The blow lands hard and the world goes dark.",
				models.Delta{Physical: -2}), ai.UsageInfo{}, nil)
		r := newTestResolver(client, st, nil)

		result, err := r.Resolve(ctx, "charge the guard", nil, window, flags)

		require.NoError(t, err)
		assert.Equal(t, models.TerminationLose, result.Termination)

		player, err := st.Get(models.PlayerID)
		require.NoError(t, err)
		assert.Equal(t, models.HealthMin, player.Physical, "health clamps, it does not underflow")
	})

	t.Run("win beats lose when one turn satisfies both", func(t *testing.T) {
		st := state.NewStore([]models.CharacterState{{
			ID: models.PlayerID, Name: "Aldric", LocationID: "tavern",
			Physical: models.HealthMin + 1, Mental: 10,
			Inventory: map[string]models.Item{"amulet": {ID: "amulet"}},
		}}, zap.NewNop())

		conditions := []models.WinLoseCondition{
			{Tag: models.TagWin, Kind: models.CondHasItem, ItemID: "amulet", Description: "carry the amulet"},
			{Tag: models.TagLose, Kind: models.CondHealthMin, Description: "fall in battle"},
		}

		client := new(mocks.Client)
		client.On("GenerateText", mock.Anything, ai.CallNarrate, mock.Anything, mock.Anything, mock.Anything).
			Return(narrateResponse(t, "You clutch the amulet as you fall.",
				models.Delta{Physical: -2}), ai.UsageInfo{}, nil)
		r := newTestResolver(client, st, conditions)

		result, err := r.Resolve(ctx, "grab the amulet from the altar", nil, window, flags)

		require.NoError(t, err)
		assert.Equal(t, models.TerminationWin, result.Termination)
	})

	t.Run("flag conditions read session flags", func(t *testing.T) {
		st := testStore()
		conditions := []models.WinLoseCondition{
			{Tag: models.TagWin, Kind: models.CondFlag, Flag: "dragon_slain"},
		}
		client := new(mocks.Client)
		client.On("GenerateText", mock.Anything, ai.CallNarrate, mock.Anything, mock.Anything, mock.Anything).
			Return(narrateResponse(t, "The town cheers.", models.Delta{}), ai.UsageInfo{}, nil)
		r := newTestResolver(client, st, conditions)

		result, err := r.Resolve(ctx, "raise the banner", nil, window, map[string]bool{"dragon_slain": true})

		require.NoError(t, err)
		assert.Equal(t, models.TerminationWin, result.Termination)
	})
}
