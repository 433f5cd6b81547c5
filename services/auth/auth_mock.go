package auth

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockTokenSource is a mock implementation of clients.TokenSource
type MockTokenSource struct {
	mock.Mock
}

func (m *MockTokenSource) Token(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockTokenSource) TokenType() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockTokenSource) ForceRefresh() {
	m.Called()
}
