package services

import (
	"context"

	"github.com/jmoiron/sqlx"

	"cortexrelay/models"
)

// SessionManager maintains one reusable Snowflake SQL session for the
// process lifetime, refreshing it when stale.
type SessionManager interface {
	// GetSession returns a valid session, reopening a stale one if needed.
	GetSession(ctx context.Context) (*sqlx.DB, error)
	// RunQuery executes agent-generated SQL and returns all rows as strings.
	RunQuery(ctx context.Context, query string) (*models.QueryResult, error)
	// Close releases the underlying session.
	Close() error
}
