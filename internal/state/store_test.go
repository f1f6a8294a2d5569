package state_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stanipov/NeuroQuest/internal/models"
	"github.com/stanipov/NeuroQuest/internal/state"
)

func newTestStore(t *testing.T) *state.Store {
	t.Helper()
	return state.NewStore([]models.CharacterState{
		{
			ID:         models.PlayerID,
			Name:       "Aron",
			LocationID: "tavern",
			Physical:   10,
			Mental:     10,
			Inventory: map[string]models.Item{
				"sword": {ID: "sword", Description: "a plain shortsword"},
			},
		},
		{
			ID:         "npc_guard",
			Name:       "Guard",
			LocationID: "tavern",
			Physical:   12,
			Mental:     8,
			Inventory:  map[string]models.Item{"halberd": {ID: "halberd"}},
		},
	}, zap.NewNop())
}

func TestApplyDeltaClampsHealth(t *testing.T) {
	tests := []struct {
		name         string
		delta        models.Delta
		wantPhysical int
		wantMental   int
	}{
		{"huge damage clamps to min", models.Delta{CharacterID: models.PlayerID, Physical: -1000}, models.HealthMin, 10},
		{"huge heal clamps to max", models.Delta{CharacterID: models.PlayerID, Physical: 1000}, models.HealthMax, 10},
		{"mental clamps independently", models.Delta{CharacterID: models.PlayerID, Mental: -999}, 10, models.HealthMin},
		{"small delta applies exactly", models.Delta{CharacterID: models.PlayerID, Physical: -3, Mental: 2}, 7, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			require.NoError(t, store.ApplyDelta(tt.delta))

			c, err := store.Get(models.PlayerID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPhysical, c.Physical)
			assert.Equal(t, tt.wantMental, c.Mental)
		})
	}
}

func TestApplyDeltaInventory(t *testing.T) {
	t.Run("add and remove", func(t *testing.T) {
		store := newTestStore(t)
		err := store.ApplyDelta(models.Delta{
			CharacterID: models.PlayerID,
			AddItems:    []models.Item{{ID: "torch"}},
			RemoveItems: []string{"sword"},
		})
		require.NoError(t, err)

		c, err := store.Get(models.PlayerID)
		require.NoError(t, err)
		assert.True(t, c.HasItem("torch"))
		assert.False(t, c.HasItem("sword"))
	})

	t.Run("removing absent item is skipped, not fatal", func(t *testing.T) {
		store := newTestStore(t)
		err := store.ApplyDelta(models.Delta{
			CharacterID: models.PlayerID,
			Physical:    -1,
			RemoveItems: []string{"crown"},
		})

		var invalid *models.InvalidDeltaError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "remove_items", invalid.Field)

		// The valid health sub-delta still applied.
		c, getErr := store.Get(models.PlayerID)
		require.NoError(t, getErr)
		assert.Equal(t, 9, c.Physical)
	})

	t.Run("duplicate add is skipped", func(t *testing.T) {
		store := newTestStore(t)
		err := store.ApplyDelta(models.Delta{
			CharacterID: models.PlayerID,
			AddItems:    []models.Item{{ID: "sword", Description: "another sword"}},
		})

		var invalid *models.InvalidDeltaError
		require.ErrorAs(t, err, &invalid)

		c, getErr := store.Get(models.PlayerID)
		require.NoError(t, getErr)
		assert.Equal(t, "a plain shortsword", c.Inventory["sword"].Description)
	})
}

func TestApplyDeltaUnknownCharacter(t *testing.T) {
	store := newTestStore(t)
	err := store.ApplyDelta(models.Delta{CharacterID: "npc_ghost", Physical: -5})

	var invalid *models.InvalidDeltaError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "character_id", invalid.Field)
}

func TestGetReturnsCopy(t *testing.T) {
	store := newTestStore(t)
	c, err := store.Get(models.PlayerID)
	require.NoError(t, err)

	c.Physical = 0
	delete(c.Inventory, "sword")

	fresh, err := store.Get(models.PlayerID)
	require.NoError(t, err)
	assert.Equal(t, 10, fresh.Physical)
	assert.True(t, fresh.HasItem("sword"))
}

func TestGetUnknownCharacter(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get("nobody")
	assert.True(t, errors.Is(err, models.ErrUnknownCharacter))
}

func TestAtLocation(t *testing.T) {
	store := newTestStore(t)
	npcs := store.AtLocation("tavern")
	require.Len(t, npcs, 1)
	assert.Equal(t, "npc_guard", npcs[0].ID)

	assert.Empty(t, store.AtLocation("forest"))
}

func TestMoveLocation(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.ApplyDelta(models.Delta{CharacterID: models.PlayerID, MoveTo: "forest"}))

	c, err := store.Get(models.PlayerID)
	require.NoError(t, err)
	assert.Equal(t, "forest", c.LocationID)
}
