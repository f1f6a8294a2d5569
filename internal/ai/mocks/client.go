package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/stanipov/NeuroQuest/internal/ai"
)

// Client is a testify mock of ai.Client.
type Client struct {
	mock.Mock
}

func (m *Client) GenerateText(ctx context.Context, call ai.CallSite, systemPrompt, userInput string, params ai.GenerationParams) (string, ai.UsageInfo, error) {
	args := m.Called(ctx, call, systemPrompt, userInput, params)
	usage, _ := args.Get(1).(ai.UsageInfo)
	return args.String(0), usage, args.Error(2)
}
