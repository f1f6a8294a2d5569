package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInputInvalid marks empty or unusable player input. User-facing:
	// the orchestrator loops back to AWAITING_INPUT with a hint.
	ErrInputInvalid = errors.New("player input is invalid")

	// ErrCollaboratorTimeout marks a generative-collaborator call that did
	// not complete in time. Retried once, then the component degrades.
	ErrCollaboratorTimeout = errors.New("collaborator call timed out")

	// ErrMalformedResponse marks a collaborator response that violates the
	// call-site contract. Retried once, then the component degrades.
	ErrMalformedResponse = errors.New("collaborator response violates contract")

	// ErrUnknownCharacter is returned by the state store for a character ID
	// it does not own.
	ErrUnknownCharacter = errors.New("unknown character")

	// ErrSessionNotFound is returned by session repositories when no
	// snapshot exists for the requested session ID.
	ErrSessionNotFound = errors.New("session not found")
)

// RejectionReason is the closed taxonomy of world-rule rejection causes.
type RejectionReason string

const (
	ReasonAnachronism       RejectionReason = "anachronism"
	ReasonCapabilityMissing RejectionReason = "capability-missing"
	ReasonLocationMismatch  RejectionReason = "location-mismatch"
	ReasonInventoryMissing  RejectionReason = "inventory-missing"
)

// ActionRejectedError is returned by the world-rule validator when a game
// action conflicts with the world. It carries a closed reason code plus a
// diegetic detail used for narration. No state changes on rejection.
type ActionRejectedError struct {
	Reason RejectionReason
	Detail string
}

func (e *ActionRejectedError) Error() string {
	return fmt.Sprintf("action rejected (%s): %s", e.Reason, e.Detail)
}

// InvalidDeltaError marks a delta that references a nonexistent character or
// removes an absent item. This is a bug in the upstream resolver, not a
// user-facing error: callers log it and skip the offending sub-delta.
type InvalidDeltaError struct {
	CharacterID string
	Field       string
	Detail      string
}

func (e *InvalidDeltaError) Error() string {
	return fmt.Sprintf("invalid delta for %q (%s): %s", e.CharacterID, e.Field, e.Detail)
}

// StateCorruptionError marks an invariant violation inside owned state
// (health outside bounds after clamping, duplicate inventory entries).
// Fatal: the session aborts with a diagnostic instead of continuing.
type StateCorruptionError struct {
	CharacterID string
	Detail      string
}

func (e *StateCorruptionError) Error() string {
	return fmt.Sprintf("state corruption on %q: %s", e.CharacterID, e.Detail)
}
