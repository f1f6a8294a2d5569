// Package state implements the character state store: the sole owner and
// sole mutation path of all CharacterState instances in a session.
package state

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/stanipov/NeuroQuest/internal/models"
)

// Store owns every CharacterState of a session. Reads return deep copies;
// ApplyDelta is the only mutation path. The store is not safe for
// concurrent writers — the engine guarantees a single active turn mutates
// it (see the orchestrator).
type Store struct {
	characters map[string]*models.CharacterState
	logger     *zap.Logger
}

// NewStore builds a store from the initial character set produced by the
// lore collaborator. Health values are clamped into bounds on load.
func NewStore(initial []models.CharacterState, logger *zap.Logger) *Store {
	s := &Store{
		characters: make(map[string]*models.CharacterState, len(initial)),
		logger:     logger.Named("StateStore"),
	}
	for i := range initial {
		c := initial[i].Clone()
		c.Physical = clamp(c.Physical)
		c.Mental = clamp(c.Mental)
		if c.Inventory == nil {
			c.Inventory = make(map[string]models.Item)
		}
		s.characters[c.ID] = c
	}
	return s
}

func clamp(v int) int {
	if v < models.HealthMin {
		return models.HealthMin
	}
	if v > models.HealthMax {
		return models.HealthMax
	}
	return v
}

// Get returns a copy of the character's state.
func (s *Store) Get(id string) (*models.CharacterState, error) {
	c, ok := s.characters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownCharacter, id)
	}
	return c.Clone(), nil
}

// All returns copies of every character, ordered by ID.
func (s *Store) All() []models.CharacterState {
	out := make([]models.CharacterState, 0, len(s.characters))
	for _, c := range s.characters {
		out = append(out, *c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AtLocation returns copies of the NPCs at the given location, ordered by
// ID. The player is excluded.
func (s *Store) AtLocation(locationID string) []models.CharacterState {
	var out []models.CharacterState
	for _, c := range s.characters {
		if c.ID == models.PlayerID || c.LocationID != locationID {
			continue
		}
		out = append(out, *c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ApplyDelta applies a structured state change. Health adjustments are
// clamped to [HealthMin, HealthMax] no matter the delta magnitude. Invalid
// sub-deltas (absent item removal, duplicate item add) are skipped and
// reported via a joined InvalidDeltaError; valid sub-deltas still apply —
// such failures are resolver bugs, never user-facing. A delta for an
// unknown character applies nothing.
func (s *Store) ApplyDelta(delta models.Delta) error {
	c, ok := s.characters[delta.CharacterID]
	if !ok {
		err := &models.InvalidDeltaError{
			CharacterID: delta.CharacterID,
			Field:       "character_id",
			Detail:      "character does not exist",
		}
		s.logger.Warn("Dropping delta for unknown character", zap.String("characterID", delta.CharacterID))
		return err
	}

	var errs []error

	c.Physical = clamp(c.Physical + delta.Physical)
	c.Mental = clamp(c.Mental + delta.Mental)

	for _, item := range delta.AddItems {
		if item.ID == "" {
			errs = append(errs, &models.InvalidDeltaError{
				CharacterID: c.ID, Field: "add_items", Detail: "item without id",
			})
			continue
		}
		if _, exists := c.Inventory[item.ID]; exists {
			// Inventory items are unique per character.
			errs = append(errs, &models.InvalidDeltaError{
				CharacterID: c.ID, Field: "add_items",
				Detail: fmt.Sprintf("item %q already in inventory", item.ID),
			})
			continue
		}
		c.Inventory[item.ID] = item
	}

	for _, itemID := range delta.RemoveItems {
		if _, exists := c.Inventory[itemID]; !exists {
			errs = append(errs, &models.InvalidDeltaError{
				CharacterID: c.ID, Field: "remove_items",
				Detail: fmt.Sprintf("item %q not in inventory", itemID),
			})
			continue
		}
		delete(c.Inventory, itemID)
	}

	if delta.MoveTo != "" {
		c.LocationID = delta.MoveTo
	}

	if err := s.verify(c); err != nil {
		return err
	}

	if len(errs) > 0 {
		for _, e := range errs {
			s.logger.Warn("Skipped invalid sub-delta", zap.String("characterID", c.ID), zap.Error(e))
		}
		return errors.Join(errs...)
	}
	return nil
}

// verify checks post-mutation invariants. A violation here means clamping
// failed and the session state can no longer be trusted.
func (s *Store) verify(c *models.CharacterState) error {
	if c.Physical < models.HealthMin || c.Physical > models.HealthMax ||
		c.Mental < models.HealthMin || c.Mental > models.HealthMax {
		return &models.StateCorruptionError{
			CharacterID: c.ID,
			Detail: fmt.Sprintf("health out of bounds: physical=%d mental=%d",
				c.Physical, c.Mental),
		}
	}
	return nil
}

// Restore replaces the store contents from a snapshot. Only valid at a turn
// boundary; the orchestrator enforces that.
func (s *Store) Restore(characters []models.CharacterState) {
	s.characters = make(map[string]*models.CharacterState, len(characters))
	for i := range characters {
		c := characters[i].Clone()
		if c.Inventory == nil {
			c.Inventory = make(map[string]models.Item)
		}
		s.characters[c.ID] = c
	}
}
