package cortex

import (
	"context"

	"github.com/stretchr/testify/mock"

	"cortexrelay/models"
)

// MockCortexClient is a mock implementation of clients.CortexClient
type MockCortexClient struct {
	mock.Mock
}

func (m *MockCortexClient) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatResponse), args.Error(1)
}
