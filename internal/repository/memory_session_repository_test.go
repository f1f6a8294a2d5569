package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanipov/NeuroQuest/internal/models"
)

func sampleSnapshot(sessionID string, turnIndex int) models.Snapshot {
	return models.Snapshot{
		SessionID: sessionID,
		TurnIndex: turnIndex,
		Characters: []models.CharacterState{{
			ID: models.PlayerID, Name: "Aldric", LocationID: "tavern",
			Physical: 15, Mental: 12,
			Inventory: map[string]models.Item{"sword": {ID: "sword"}},
		}},
		Events: []models.MemoryEvent{{
			TurnIndex: 0, Actor: "narrator", Summary: "rain on the roof", Raw: "Rain drums on the tavern roof.",
		}},
		Flags:   map[string]bool{"guard_provoked": true},
		SavedAt: time.Now().UTC(),
	}
}

func TestMemorySessionRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("save and load round-trip", func(t *testing.T) {
		repo := NewMemorySessionRepository()
		snap := sampleSnapshot("s-1", 3)
		require.NoError(t, repo.Save(ctx, snap))

		got, err := repo.Load(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, 3, got.TurnIndex)
		assert.True(t, got.Flags["guard_provoked"])
		require.Len(t, got.Characters, 1)
		assert.Equal(t, 15, got.Characters[0].Physical)
	})

	t.Run("load is isolated from later caller mutation", func(t *testing.T) {
		repo := NewMemorySessionRepository()
		snap := sampleSnapshot("s-1", 1)
		require.NoError(t, repo.Save(ctx, snap))

		// Mutating the saved value must not reach the stored copy.
		snap.Characters[0].Physical = 1

		got, err := repo.Load(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, 15, got.Characters[0].Physical)
	})

	t.Run("save overwrites the same session", func(t *testing.T) {
		repo := NewMemorySessionRepository()
		require.NoError(t, repo.Save(ctx, sampleSnapshot("s-1", 1)))
		require.NoError(t, repo.Save(ctx, sampleSnapshot("s-1", 2)))

		got, err := repo.Load(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, 2, got.TurnIndex)

		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, 2, list[0].TurnIndex)
	})

	t.Run("unknown session", func(t *testing.T) {
		repo := NewMemorySessionRepository()
		_, err := repo.Load(ctx, "nope")
		assert.ErrorIs(t, err, models.ErrSessionNotFound)
	})

	t.Run("delete removes the session", func(t *testing.T) {
		repo := NewMemorySessionRepository()
		require.NoError(t, repo.Save(ctx, sampleSnapshot("s-1", 1)))
		require.NoError(t, repo.Delete(ctx, "s-1"))

		_, err := repo.Load(ctx, "s-1")
		assert.ErrorIs(t, err, models.ErrSessionNotFound)

		list, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("list is sorted by session id", func(t *testing.T) {
		repo := NewMemorySessionRepository()
		require.NoError(t, repo.Save(ctx, sampleSnapshot("s-b", 1)))
		require.NoError(t, repo.Save(ctx, sampleSnapshot("s-a", 4)))

		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "s-a", list[0].SessionID)
		assert.Equal(t, "s-b", list[1].SessionID)
	})
}
