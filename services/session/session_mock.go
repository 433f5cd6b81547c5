package session

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"cortexrelay/models"
)

// MockSessionManager is a mock implementation of services.SessionManager
type MockSessionManager struct {
	mock.Mock
}

func (m *MockSessionManager) GetSession(ctx context.Context) (*sqlx.DB, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqlx.DB), args.Error(1)
}

func (m *MockSessionManager) RunQuery(ctx context.Context, query string) (*models.QueryResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueryResult), args.Error(1)
}

func (m *MockSessionManager) Close() error {
	args := m.Called()
	return args.Error(0)
}
