package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/stanipov/NeuroQuest/internal/models"
	"github.com/stanipov/NeuroQuest/internal/repository"
)

// SessionRepository is a testify mock of repository.SessionRepository.
type SessionRepository struct {
	mock.Mock
}

func (m *SessionRepository) Save(ctx context.Context, snap models.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *SessionRepository) Load(ctx context.Context, sessionID string) (*models.Snapshot, error) {
	args := m.Called(ctx, sessionID)
	snap, _ := args.Get(0).(*models.Snapshot)
	return snap, args.Error(1)
}

func (m *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *SessionRepository) List(ctx context.Context) ([]repository.SessionInfo, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]repository.SessionInfo)
	return list, args.Error(1)
}
