package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/stanipov/NeuroQuest/internal/memory"
	"github.com/stanipov/NeuroQuest/internal/models"
	"github.com/stanipov/NeuroQuest/internal/state"
)

func testWorld() *models.WorldRuleSet {
	return &models.WorldRuleSet{
		Setting:       "a small market town on the edge of a kingdom",
		Era:           "medieval",
		ForbiddenTech: []string{"laser", "gun", "phone"},
		Locations: []models.Location{
			{ID: "tavern", Name: "The Drowned Rat", Adjacent: []string{"square"}},
			{ID: "square", Name: "Market Square", Adjacent: []string{"tavern", "gate"}},
			{ID: "gate", Name: "Town Gate", Adjacent: []string{"square"}},
		},
		Rules: []string{"steel and faith decide disputes"},
	}
}

func testCharacters() []models.CharacterState {
	return []models.CharacterState{
		{
			ID:         models.PlayerID,
			Name:       "Aldric",
			LocationID: "tavern",
			Physical:   15,
			Mental:     12,
			Inventory:  map[string]models.Item{"sword": {ID: "sword"}},
		},
		{
			ID:         "guard",
			Name:       "Guard Wilem",
			LocationID: "tavern",
			Physical:   18,
			Mental:     10,
			Inventory:  map[string]models.Item{},
		},
	}
}

func testStore() *state.Store {
	return state.NewStore(testCharacters(), zap.NewNop())
}

func testMemory() *memory.Manager {
	return memory.NewManager(memory.Config{
		WindowSize:    10,
		RecallCount:   3,
		MinSimilarity: 0.2,
		TokenBudget:   3000,
	}, nil, zap.NewNop())
}

func testCollabConfig() collaboratorConfig {
	return collaboratorConfig{Timeout: time.Second, Retries: 1}
}
