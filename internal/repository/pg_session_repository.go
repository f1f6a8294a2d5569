package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/stanipov/NeuroQuest/internal/models"
)

// Compile-time check.
var _ SessionRepository = (*pgSessionRepository)(nil)

const (
	upsertSessionQuery = `
        INSERT INTO game_sessions (session_id, turn_index, snapshot, saved_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (session_id) DO UPDATE SET
            turn_index = EXCLUDED.turn_index,
            snapshot   = EXCLUDED.snapshot,
            saved_at   = EXCLUDED.saved_at
    `
	getSessionQuery    = `SELECT snapshot FROM game_sessions WHERE session_id = $1`
	deleteSessionQuery = `DELETE FROM game_sessions WHERE session_id = $1`
	listSessionsQuery  = `SELECT session_id, turn_index FROM game_sessions ORDER BY saved_at DESC`
)

// pgSessionRepository stores snapshots as jsonb rows in PostgreSQL.
type pgSessionRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgSessionRepository creates a PostgreSQL-backed SessionRepository.
// The game_sessions table is created by the embedded migrations.
func NewPgSessionRepository(pool *pgxpool.Pool, logger *zap.Logger) SessionRepository {
	return &pgSessionRepository{
		pool:   pool,
		logger: logger.Named("PgSessionRepo"),
	}
}

func (r *pgSessionRepository) Save(ctx context.Context, snap models.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	if _, err := r.pool.Exec(ctx, upsertSessionQuery,
		snap.SessionID, snap.TurnIndex, raw, snap.SavedAt); err != nil {
		return fmt.Errorf("failed to save session %s: %w", snap.SessionID, err)
	}

	r.logger.Debug("Session saved",
		zap.String("sessionID", snap.SessionID), zap.Int("turnIndex", snap.TurnIndex))
	return nil
}

func (r *pgSessionRepository) Load(ctx context.Context, sessionID string) (*models.Snapshot, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, getSessionQuery, sessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("corrupted snapshot for session %s: %w", sessionID, err)
	}
	return &snap, nil
}

func (r *pgSessionRepository) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.pool.Exec(ctx, deleteSessionQuery, sessionID); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

func (r *pgSessionRepository) List(ctx context.Context) ([]SessionInfo, error) {
	var out []SessionInfo
	if err := pgxscan.Select(ctx, r.pool, &out, listSessionsQuery); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return out, nil
}
