package session

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/snowflakedb/gosnowflake"

	"cortexrelay/clients"
	"cortexrelay/models"
)

const defaultMaxAge = 4 * time.Hour

// Options configures the Snowflake session manager.
type Options struct {
	Account   string
	User      string
	Host      string
	Role      string
	Warehouse string
	Database  string
	Schema    string

	// Exactly one of PrivateKey (keypair auth) or Tokens (SPCS OAuth)
	// must be set.
	PrivateKey *rsa.PrivateKey
	Tokens     clients.TokenSource

	// MaxAge is how long a session is reused before being reopened.
	// Defaults to 4 hours.
	MaxAge time.Duration
}

// SnowflakeSessionManager keeps one sqlx session over the gosnowflake driver
// for the process lifetime, reopening it once it grows stale. All access is
// mutex-guarded; this process is the only writer.
type SnowflakeSessionManager struct {
	opts Options

	mu       sync.Mutex
	db       *sqlx.DB
	openedAt time.Time

	// Injectable for tests.
	now  func() time.Time
	open func(ctx context.Context) (*sqlx.DB, error)
}

// NewSnowflakeSessionManager creates a session manager; the first session is
// opened lazily on the first GetSession call.
func NewSnowflakeSessionManager(opts Options) *SnowflakeSessionManager {
	if opts.MaxAge == 0 {
		opts.MaxAge = defaultMaxAge
	}
	m := &SnowflakeSessionManager{
		opts: opts,
		now:  time.Now,
	}
	m.open = m.openSession
	log.Printf("📋 Snowflake session manager initialized with a max age of %s", opts.MaxAge)
	return m
}

// GetSession returns a valid session, creating a new one if the old one is stale
func (m *SnowflakeSessionManager) GetSession(ctx context.Context) (*sqlx.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stale := m.db == nil || m.now().Sub(m.openedAt) > m.opts.MaxAge
	if !stale {
		return m.db, nil
	}

	log.Printf("📋 Current Snowflake session is stale or non-existent - refreshing...")
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			log.Printf("⚠️ Failed to close stale Snowflake session: %v", err)
		}
	}

	db, err := m.open(ctx)
	if err != nil {
		m.db = nil
		return nil, fmt.Errorf("failed to open snowflake session: %w", err)
	}

	m.db = db
	m.openedAt = m.now()
	log.Printf("✅ New Snowflake session established")
	return m.db, nil
}

// RunQuery executes agent-generated SQL and returns every row as strings
func (m *SnowflakeSessionManager) RunQuery(ctx context.Context, query string) (*models.QueryResult, error) {
	db, err := m.GetSession(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	result := &models.QueryResult{Columns: columns}
	for rows.Next() {
		raw, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		row := make([]string, len(raw))
		for i, value := range raw {
			row[i] = formatValue(value)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read result rows: %w", err)
	}

	return result, nil
}

// Close releases the underlying session
func (m *SnowflakeSessionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

func (m *SnowflakeSessionManager) openSession(ctx context.Context) (*sqlx.DB, error) {
	cfg := &gosnowflake.Config{
		Account:   m.opts.Account,
		User:      m.opts.User,
		Host:      m.opts.Host,
		Role:      m.opts.Role,
		Warehouse: m.opts.Warehouse,
		Database:  m.opts.Database,
		Schema:    m.opts.Schema,
	}

	switch {
	case m.opts.PrivateKey != nil:
		cfg.Authenticator = gosnowflake.AuthTypeJwt
		cfg.PrivateKey = m.opts.PrivateKey
	case m.opts.Tokens != nil:
		token, err := m.opts.Tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		cfg.Authenticator = gosnowflake.AuthTypeOAuth
		cfg.Token = token
	default:
		return nil, fmt.Errorf("session manager has no credentials configured")
	}

	dsn, err := gosnowflake.DSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build snowflake DSN: %w", err)
	}

	db, err := sqlx.Open("snowflake", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", v)
	}
}
