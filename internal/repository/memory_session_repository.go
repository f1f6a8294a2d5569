package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/stanipov/NeuroQuest/internal/models"
)

// Compile-time check.
var _ SessionRepository = (*memorySessionRepository)(nil)

// memorySessionRepository keeps snapshots in process memory. Default store
// for quick games and tests; nothing survives a restart.
type memorySessionRepository struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	turns     map[string]int
}

// NewMemorySessionRepository creates an in-memory SessionRepository.
func NewMemorySessionRepository() SessionRepository {
	return &memorySessionRepository{
		snapshots: make(map[string][]byte),
		turns:     make(map[string]int),
	}
}

// Save stores a deep copy of the snapshot. Serializing through JSON keeps
// the stored bytes independent of the caller's live state.
func (r *memorySessionRepository) Save(ctx context.Context, snap models.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[snap.SessionID] = raw
	r.turns[snap.SessionID] = snap.TurnIndex
	return nil
}

func (r *memorySessionRepository) Load(ctx context.Context, sessionID string) (*models.Snapshot, error) {
	r.mu.RLock()
	raw, ok := r.snapshots[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *memorySessionRepository) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.snapshots, sessionID)
	delete(r.turns, sessionID)
	return nil
}

func (r *memorySessionRepository) List(ctx context.Context) ([]SessionInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionInfo, 0, len(r.turns))
	for id, turn := range r.turns {
		out = append(out, SessionInfo{SessionID: id, TurnIndex: turn})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}
