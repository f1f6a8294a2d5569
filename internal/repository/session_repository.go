// Package repository implements the persistence collaborator: storage for
// full game-session snapshots, taken and restored at turn boundaries only.
package repository

import (
	"context"

	"github.com/stanipov/NeuroQuest/internal/models"
)

// SessionInfo is a save-slot listing entry.
type SessionInfo struct {
	SessionID string `json:"session_id" db:"session_id"`
	TurnIndex int    `json:"turn_index" db:"turn_index"`
}

// SessionRepository stores and retrieves session snapshots. Load returns
// models.ErrSessionNotFound for an unknown session ID.
type SessionRepository interface {
	Save(ctx context.Context, snap models.Snapshot) error
	Load(ctx context.Context, sessionID string) (*models.Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]SessionInfo, error)
}
