// Package prompts builds the system prompts for every generative call site.
// Each builder pins the exact output contract the engine will enforce on the
// response.
package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stanipov/NeuroQuest/internal/models"
)

// FormatWindow renders a memory window for inclusion in a prompt. Recent
// events come first in chronological order; recalled events are tagged so
// the model can weight recency against relevance.
func FormatWindow(w models.MemoryWindow) string {
	if w.Size() == 0 {
		return "(the story has just begun)"
	}
	var b strings.Builder
	for _, ev := range w.Recent {
		fmt.Fprintf(&b, "[turn %d] %s: %s\n", ev.TurnIndex, ev.Actor, ev.Summary)
	}
	for _, ev := range w.Recalled {
		fmt.Fprintf(&b, "[recalled, turn %d] %s: %s\n", ev.TurnIndex, ev.Actor, ev.Summary)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatInventory(c *models.CharacterState) string {
	if len(c.Inventory) == 0 {
		return "(empty)"
	}
	items := make([]string, 0, len(c.Inventory))
	for _, item := range c.Inventory {
		items = append(items, item.ID)
	}
	sort.Strings(items)
	return strings.Join(items, ", ")
}

func formatWorld(w *models.WorldRuleSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Setting: %s\nEra: %s\n", w.Setting, w.Era)
	if len(w.Rules) > 0 {
		b.WriteString("World rules:\n")
		for _, r := range w.Rules {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Classify builds the action-classification prompt. The contract: a single
// JSON object {"label","action","items","location"}, label being exactly
// "non_game" or "game_action".
func Classify(world *models.WorldRuleSet, player *models.CharacterState, window models.MemoryWindow) string {
	return fmt.Sprintf(`You classify one line of player input for a text role-playing game.

%s

Player inventory: %s
Player location: %s

Story so far:
%s

Decide whether the input is an in-game action (the player character doing
something in the world) or out-of-game talk (questions about lore, rules,
small talk). Resolve pronouns against the story context.

Respond with ONE JSON object and nothing else:
{"label": "game_action" or "non_game",
 "action": normalized action in second person, lowercase, empty if non_game,
 "items": list of item names the action uses,
 "location": target location id if the action moves the player, else ""}`,
		formatWorld(world), formatInventory(player), player.LocationID, FormatWindow(window))
}

// NPCReact builds the per-NPC reaction prompt. Contract:
// {"reaction": string, "delta": {"physical","mental","add_items","remove_items","move_to"}}.
func NPCReact(world *models.WorldRuleSet, npc *models.CharacterState, action string, window models.MemoryWindow) string {
	return fmt.Sprintf(`You are %s, a character in this story.
Your traits: %s.
Your inventory: %s.

You live in this world:
%s

Story so far:
%s

The player acts: %q

Respond as %s would. Rules:
- stay consistent with the world rules and your traits
- use only items from your inventory
- report any change to your own state in the delta

Respond with ONE JSON object and nothing else:
{"reaction": 1-2 sentences of what you do or say,
 "delta": {"physical": signed int, "mental": signed int,
           "add_items": [{"id","description"}], "remove_items": [ids],
           "move_to": location id or ""}}`,
		npc.Name, strings.Join(npc.Traits, ", "), formatInventory(npc),
		formatWorld(world), FormatWindow(window), action, npc.Name)
}

// Narrate builds the outcome-narration prompt. Contract:
// {"narration": string, "player_delta": delta object}.
func Narrate(world *models.WorldRuleSet, player *models.CharacterState, action string, reactions []string, window models.MemoryWindow) string {
	reactionBlock := "(no NPC reactions)"
	if len(reactions) > 0 {
		reactionBlock = strings.Join(reactions, "\n")
	}
	return fmt.Sprintf(`You are the narrator of a text role-playing game. Narrate events in the
third person limited perspective. The language should be straightforward
and to the point. Write 5 sentences maximum.

%s

Player state: physical %d, mental %d, location %s, inventory: %s

Story so far:
%s

The player acts: %q

NPC reactions this turn:
%s

Narrate the outcome without contradicting established facts, then report
the resulting change to the player's state.

Respond with ONE JSON object and nothing else:
{"narration": the outcome text,
 "player_delta": {"physical": signed int, "mental": signed int,
                  "add_items": [{"id","description"}], "remove_items": [ids],
                  "move_to": location id or ""}}`,
		formatWorld(world), player.Physical, player.Mental, player.LocationID,
		formatInventory(player), FormatWindow(window), action, reactionBlock)
}

// LightReply builds the non-game reply prompt. Plain prose, no contract
// beyond length.
func LightReply(world *models.WorldRuleSet, window models.MemoryWindow) string {
	return fmt.Sprintf(`You are the narrator of a text role-playing game. The player asked
something outside the game action (lore, rules, clarification). Answer
in character with the setting, concise, 5 sentences maximum. Do not
advance the story or change any state.

%s

Story so far:
%s`, formatWorld(world), FormatWindow(window))
}
