package engine

import (
	"fmt"
	"strings"

	"github.com/stanipov/NeuroQuest/internal/models"
)

// capabilityTriggers maps world capability classes to the action words that
// require them. An action hitting a trigger of a capability the world does
// not permit (and the actor does not carry as a trait) is rejected.
var capabilityTriggers = map[string][]string{
	"magic":  {"cast ", "spell", "enchant", "conjure"},
	"flight": {"fly ", "fly.", "soar"},
}

// Validator checks a normalized game action against the immutable world
// rule set and the actor's current state. It is a pure policy: same inputs,
// same verdict, no collaborator involved.
type Validator struct {
	world *models.WorldRuleSet
}

// NewValidator creates a world-rule validator.
func NewValidator(world *models.WorldRuleSet) *Validator {
	return &Validator{world: world}
}

// Validate returns nil for an acceptable action or an ActionRejectedError
// with a closed-taxonomy reason. Checks run in a fixed order so the first
// violated rule names the rejection.
func (v *Validator) Validate(cls models.ActionClassification, actor *models.CharacterState) error {
	action := strings.ToLower(cls.Normalized)

	// Anachronism: forbidden technology named in the action or its items.
	for _, term := range v.world.ForbiddenTech {
		lt := strings.ToLower(term)
		if strings.Contains(action, lt) {
			return &models.ActionRejectedError{
				Reason: models.ReasonAnachronism,
				Detail: fmt.Sprintf("%q does not exist in this %s world", term, v.world.Era),
			}
		}
		for _, item := range cls.ReferencedItems {
			if strings.Contains(strings.ToLower(item), lt) {
				return &models.ActionRejectedError{
					Reason: models.ReasonAnachronism,
					Detail: fmt.Sprintf("%q does not exist in this %s world", item, v.world.Era),
				}
			}
		}
	}

	// Capability: actions needing powers this world or actor lacks.
	for capability, triggers := range capabilityTriggers {
		if v.worldAllows(capability) || hasTrait(actor, capability) {
			continue
		}
		for _, trigger := range triggers {
			if strings.Contains(action, trigger) {
				return &models.ActionRejectedError{
					Reason: models.ReasonCapabilityMissing,
					Detail: fmt.Sprintf("no power of %s answers the call here", capability),
				}
			}
		}
	}

	// Inventory: every item the action uses must be carried.
	for _, item := range cls.ReferencedItems {
		if !actor.HasItem(item) {
			return &models.ActionRejectedError{
				Reason: models.ReasonInventoryMissing,
				Detail: fmt.Sprintf("there is no %q among the belongings", item),
			}
		}
	}

	// Location: a move target must be a known, adjacent place.
	if cls.TargetLocation != "" && cls.TargetLocation != actor.LocationID {
		target := v.world.Location(cls.TargetLocation)
		if target == nil {
			return &models.ActionRejectedError{
				Reason: models.ReasonLocationMismatch,
				Detail: fmt.Sprintf("no road leads to %q", cls.TargetLocation),
			}
		}
		current := v.world.Location(actor.LocationID)
		if current != nil && !contains(current.Adjacent, cls.TargetLocation) {
			return &models.ActionRejectedError{
				Reason: models.ReasonLocationMismatch,
				Detail: fmt.Sprintf("%s is too far from %s to reach in one stride",
					target.Name, current.Name),
			}
		}
	}

	return nil
}

func (v *Validator) worldAllows(capability string) bool {
	return contains(v.world.Capabilities, capability)
}

func hasTrait(actor *models.CharacterState, trait string) bool {
	return contains(actor.Traits, trait)
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if strings.EqualFold(s, want) {
			return true
		}
	}
	return false
}
