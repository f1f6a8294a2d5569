// Package lore loads the read-only input bundle produced by the
// lore-generation collaborator: world rules, the initial character set,
// the win/lose conditions and the opening narration.
package lore

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/stanipov/NeuroQuest/internal/models"
)

// Bundle is the lore collaborator's output, injected once at game start and
// read-only to the engine afterwards.
type Bundle struct {
	World      models.WorldRuleSet       `json:"world"`
	Characters []models.CharacterState   `json:"characters"`
	Conditions []models.WinLoseCondition `json:"conditions"`
	// Opening is the scene-setting narration that seeds the memory log as
	// turn zero.
	Opening string `json:"opening"`
}

// Load reads and validates a lore bundle from a JSON file.
func Load(path string) (*Bundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lore bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("failed to parse lore bundle %q: %w", path, err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lore bundle %q: %w", path, err)
	}
	return &b, nil
}

// Validate checks the bundle's referential integrity before the engine
// trusts it: a player must exist, every character must stand on a known
// location, and conditions may only reference known characters.
func (b *Bundle) Validate() error {
	if len(b.World.Locations) == 0 {
		return fmt.Errorf("world has no locations")
	}

	known := make(map[string]struct{}, len(b.Characters))
	var playerFound bool
	for i := range b.Characters {
		c := &b.Characters[i]
		if c.ID == "" {
			return fmt.Errorf("character %d has no id", i)
		}
		if _, dup := known[c.ID]; dup {
			return fmt.Errorf("duplicate character id %q", c.ID)
		}
		known[c.ID] = struct{}{}
		if c.ID == models.PlayerID {
			playerFound = true
		}
		if b.World.Location(c.LocationID) == nil {
			return fmt.Errorf("character %q stands on unknown location %q", c.ID, c.LocationID)
		}
	}
	if !playerFound {
		return fmt.Errorf("bundle has no %q character", models.PlayerID)
	}

	for i, cond := range b.Conditions {
		if cond.Tag != models.TagWin && cond.Tag != models.TagLose {
			return fmt.Errorf("condition %d has unknown tag %q", i, cond.Tag)
		}
		if cond.CharacterID != "" {
			if _, ok := known[cond.CharacterID]; !ok {
				return fmt.Errorf("condition %d references unknown character %q", i, cond.CharacterID)
			}
		}
		if cond.Kind == models.CondAtLocation && b.World.Location(cond.LocationID) == nil {
			return fmt.Errorf("condition %d references unknown location %q", i, cond.LocationID)
		}
	}

	return nil
}

// OpeningEvent turns the opening narration into the first memory event.
func (b *Bundle) OpeningEvent() models.MemoryEvent {
	return models.MemoryEvent{
		TurnIndex: 0,
		Actor:     "narrator",
		Summary:   b.Opening,
		Raw:       b.Opening,
	}
}
