package models

import (
	"time"
)

// PlayerID is the reserved character ID of the human player.
const PlayerID = "player"

// Health bounds for physical and mental scalars. Every CharacterState keeps
// both values inside [HealthMin, HealthMax]; the store clamps on mutation.
const (
	HealthMin = 0
	HealthMax = 20
)

// Item is a single inventory entry. Items are unique per character by ID.
type Item struct {
	ID          string `json:"id" db:"id"`
	Description string `json:"description,omitempty" db:"description"`
}

// CharacterState holds the mutable state of the player or an NPC.
// Instances are owned exclusively by the state store; callers receive copies.
type CharacterState struct {
	ID         string          `json:"id" db:"id"`
	Name       string          `json:"name" db:"name"`
	LocationID string          `json:"location_id" db:"location_id"`
	Inventory  map[string]Item `json:"inventory" db:"inventory"`
	Physical   int             `json:"physical" db:"physical"`
	Mental     int             `json:"mental" db:"mental"`
	Traits     []string        `json:"traits,omitempty" db:"traits"`
}

// HasItem reports whether the character carries the item.
func (c *CharacterState) HasItem(itemID string) bool {
	_, ok := c.Inventory[itemID]
	return ok
}

// Clone returns a deep copy. The store hands out clones so that callers can
// never mutate owned state behind its back.
func (c *CharacterState) Clone() *CharacterState {
	cp := *c
	cp.Inventory = make(map[string]Item, len(c.Inventory))
	for id, item := range c.Inventory {
		cp.Inventory[id] = item
	}
	cp.Traits = append([]string(nil), c.Traits...)
	return &cp
}

// Delta is a structured, atomic description of a state change for one
// character. Zero-valued fields mean "no change". Produced by the outcome
// resolver and NPC reasoners, consumed only by the state store.
type Delta struct {
	CharacterID string   `json:"character_id"`
	Physical    int      `json:"physical,omitempty"`
	Mental      int      `json:"mental,omitempty"`
	AddItems    []Item   `json:"add_items,omitempty"`
	RemoveItems []string `json:"remove_items,omitempty"`
	MoveTo      string   `json:"move_to,omitempty"`
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d.Physical == 0 && d.Mental == 0 &&
		len(d.AddItems) == 0 && len(d.RemoveItems) == 0 && d.MoveTo == ""
}

// Location is a node of the world map.
type Location struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Adjacent []string `json:"adjacent,omitempty"`
}

// WorldRuleSet is the immutable snapshot of setting constraints produced by
// the lore generator. The engine never mutates it mid-game.
type WorldRuleSet struct {
	Setting       string     `json:"setting"`
	Era           string     `json:"era"`
	AllowedTech   []string   `json:"allowed_tech,omitempty"`
	ForbiddenTech []string   `json:"forbidden_tech,omitempty"`
	Capabilities  []string   `json:"capabilities,omitempty"`
	Locations     []Location `json:"locations"`
	Rules         []string   `json:"rules,omitempty"`
}

// Location returns the location with the given ID, or nil.
func (w *WorldRuleSet) Location(id string) *Location {
	for i := range w.Locations {
		if w.Locations[i].ID == id {
			return &w.Locations[i]
		}
	}
	return nil
}

// ConditionTag marks a win/lose condition's polarity.
type ConditionTag string

const (
	TagWin  ConditionTag = "win"
	TagLose ConditionTag = "lose"
)

// ConditionKind enumerates the predicate shapes the resolver can evaluate.
type ConditionKind string

const (
	CondHealthMin  ConditionKind = "health_min"  // physical health at lower bound
	CondHealthMax  ConditionKind = "health_max"  // physical health at upper bound
	CondHasItem    ConditionKind = "has_item"    // character carries ItemID
	CondLostItem   ConditionKind = "lost_item"   // character no longer carries ItemID
	CondAtLocation ConditionKind = "at_location" // character is at LocationID
	CondFlag       ConditionKind = "flag"        // session flag set
)

// WinLoseCondition is one predicate over character state and session flags.
// Conditions are evaluated each turn in declared order; win conditions are
// evaluated before lose conditions.
type WinLoseCondition struct {
	Tag         ConditionTag  `json:"tag"`
	Kind        ConditionKind `json:"kind"`
	CharacterID string        `json:"character_id,omitempty"`
	ItemID      string        `json:"item_id,omitempty"`
	LocationID  string        `json:"location_id,omitempty"`
	Flag        string        `json:"flag,omitempty"`
	Description string        `json:"description,omitempty"`
}

// MemoryEvent is one immutable entry of the append-only narrative log.
type MemoryEvent struct {
	TurnIndex int       `json:"turn_index" db:"turn_index"`
	Actor     string    `json:"actor" db:"actor"`
	Summary   string    `json:"summary" db:"summary"`
	Raw       string    `json:"raw" db:"raw"`
	Deltas    []Delta   `json:"deltas,omitempty" db:"deltas"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MemoryWindow is the derived, bounded context view for one turn: the most
// recent events in chronological order followed by recalled older events.
// The ordering matters — it is how the generative collaborator weights
// recency against relevance.
type MemoryWindow struct {
	Recent   []MemoryEvent `json:"recent"`
	Recalled []MemoryEvent `json:"recalled,omitempty"`
}

// Size returns the total number of events in the window.
func (w MemoryWindow) Size() int { return len(w.Recent) + len(w.Recalled) }

// ActionLabel is the classifier's verdict for one piece of player input.
type ActionLabel string

const (
	LabelInvalid    ActionLabel = "invalid"
	LabelNonGame    ActionLabel = "non_game"
	LabelGameAction ActionLabel = "game_action"
	// LabelExit is recognized locally at classification time and bypasses
	// validation entirely.
	LabelExit ActionLabel = "exit"
)

// ActionClassification is produced fresh each turn and never persisted
// beyond it.
type ActionClassification struct {
	Label           ActionLabel `json:"label"`
	Normalized      string      `json:"action,omitempty"`
	ReferencedItems []string    `json:"items,omitempty"`
	TargetLocation  string      `json:"location,omitempty"`
	// Hint is a user-facing nudge set when Label == LabelInvalid.
	Hint string `json:"-"`
}

// Termination describes how (whether) a turn ended the game.
type Termination string

const (
	TerminationNone Termination = "none"
	TerminationWin  Termination = "win"
	TerminationLose Termination = "lose"
	TerminationExit Termination = "exit"
)

// TurnResult aggregates the outcome of a single orchestrator iteration.
// It is consumed by the presentation collaborator and folded into a
// MemoryEvent before being discarded.
type TurnResult struct {
	Narration     string      `json:"narration"`
	AppliedDeltas []Delta     `json:"applied_deltas,omitempty"`
	Termination   Termination `json:"termination"`
	// NeedsRetry tells the UI the input was invalid and should be re-asked.
	NeedsRetry bool `json:"needs_retry,omitempty"`
	// TurnAdvanced is false for invalid input, non-game replies and
	// rejected actions: those do not cost the player a turn.
	TurnAdvanced bool `json:"turn_advanced,omitempty"`
}

// Snapshot is the full serializable session state handed to the persistence
// collaborator. Taken and restored only at turn boundaries, never mid-turn.
type Snapshot struct {
	SessionID  string           `json:"session_id" db:"session_id"`
	TurnIndex  int              `json:"turn_index" db:"turn_index"`
	Characters []CharacterState `json:"characters" db:"characters"`
	Events     []MemoryEvent    `json:"events" db:"events"`
	Flags      map[string]bool  `json:"flags,omitempty" db:"flags"`
	SavedAt    time.Time        `json:"saved_at" db:"saved_at"`
}
