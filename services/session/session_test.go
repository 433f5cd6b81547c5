package session

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConnector backs a real *sql.DB with canned rows so RunQuery can be
// exercised without a Snowflake connection.
type fakeConnector struct {
	columns []string
	rows    [][]driver.Value
}

func (c *fakeConnector) Connect(context.Context) (driver.Conn, error) { return &fakeConn{c: c}, nil }
func (c *fakeConnector) Driver() driver.Driver                        { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) { return nil, errors.New("use the connector") }

type fakeConn struct {
	c *fakeConnector
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (c *fakeConn) Close() error                        { return nil }
func (c *fakeConn) Begin() (driver.Tx, error)           { return nil, errors.New("not supported") }

func (c *fakeConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	return &fakeRows{columns: c.c.columns, rows: c.c.rows}, nil
}

type fakeRows struct {
	columns []string
	rows    [][]driver.Value
	idx     int
}

func (r *fakeRows) Columns() []string { return r.columns }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func fakeDB(columns []string, rows [][]driver.Value) *sqlx.DB {
	return sqlx.NewDb(sql.OpenDB(&fakeConnector{columns: columns, rows: rows}), "snowflake")
}

// sessionTestFixture is a manager with an injected clock and session opener
type sessionTestFixture struct {
	manager   *SnowflakeSessionManager
	openCount int
	clock     time.Time
}

func setupSessionTest(t *testing.T, db *sqlx.DB) *sessionTestFixture {
	fixture := &sessionTestFixture{
		clock: time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC),
	}

	fixture.manager = NewSnowflakeSessionManager(Options{
		Account:   "myaccount",
		User:      "DEMO_USER",
		Warehouse: "COMPUTE_WH",
		Database:  "SALES",
		Schema:    "PUBLIC",
		MaxAge:    4 * time.Hour,
	})
	fixture.manager.now = func() time.Time { return fixture.clock }
	fixture.manager.open = func(ctx context.Context) (*sqlx.DB, error) {
		fixture.openCount++
		if db == nil {
			return nil, errors.New("connection refused")
		}
		return db, nil
	}

	t.Cleanup(func() {
		_ = fixture.manager.Close()
	})
	return fixture
}

func TestGetSession(t *testing.T) {
	t.Run("opens_lazily_and_reuses_within_max_age", func(t *testing.T) {
		fixture := setupSessionTest(t, fakeDB([]string{"ID"}, nil))

		first, err := fixture.manager.GetSession(context.Background())
		require.NoError(t, err)

		fixture.clock = fixture.clock.Add(3 * time.Hour)
		second, err := fixture.manager.GetSession(context.Background())
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, fixture.openCount)
	})

	t.Run("reopens_a_stale_session", func(t *testing.T) {
		fixture := setupSessionTest(t, fakeDB([]string{"ID"}, nil))

		_, err := fixture.manager.GetSession(context.Background())
		require.NoError(t, err)

		fixture.clock = fixture.clock.Add(4*time.Hour + time.Minute)
		_, err = fixture.manager.GetSession(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 2, fixture.openCount)
	})

	t.Run("open_failure_is_not_cached", func(t *testing.T) {
		fixture := setupSessionTest(t, nil)

		_, err := fixture.manager.GetSession(context.Background())
		require.Error(t, err)
		_, err = fixture.manager.GetSession(context.Background())
		require.Error(t, err)

		assert.Equal(t, 2, fixture.openCount)
	})
}

func TestRunQuery(t *testing.T) {
	t.Run("returns_all_rows_as_strings", func(t *testing.T) {
		db := fakeDB(
			[]string{"REGION", "REVENUE", "UPDATED_AT"},
			[][]driver.Value{
				{"EMEA", int64(1200), time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)},
				{"APAC", int64(900), nil},
			},
		)
		fixture := setupSessionTest(t, db)

		result, err := fixture.manager.RunQuery(context.Background(), "SELECT region, revenue, updated_at FROM sales")
		require.NoError(t, err)

		assert.Equal(t, []string{"REGION", "REVENUE", "UPDATED_AT"}, result.Columns)
		require.Len(t, result.Rows, 2)
		assert.Equal(t, []string{"EMEA", "1200", "2026-08-01 10:30:00"}, result.Rows[0])
		assert.Equal(t, []string{"APAC", "900", ""}, result.Rows[1])
		assert.False(t, result.Empty())
	})

	t.Run("empty_result_keeps_columns", func(t *testing.T) {
		fixture := setupSessionTest(t, fakeDB([]string{"REGION"}, nil))

		result, err := fixture.manager.RunQuery(context.Background(), "SELECT region FROM sales WHERE 1=0")
		require.NoError(t, err)

		assert.Equal(t, []string{"REGION"}, result.Columns)
		assert.True(t, result.Empty())
	})

	t.Run("session_failure_propagates", func(t *testing.T) {
		fixture := setupSessionTest(t, nil)

		_, err := fixture.manager.RunQuery(context.Background(), "SELECT 1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open snowflake session")
	})
}

func TestClose(t *testing.T) {
	t.Run("close_without_a_session_is_a_noop", func(t *testing.T) {
		manager := NewSnowflakeSessionManager(Options{})
		assert.NoError(t, manager.Close())
	})

	t.Run("close_forces_a_reopen_on_next_use", func(t *testing.T) {
		fixture := setupSessionTest(t, fakeDB([]string{"ID"}, nil))

		_, err := fixture.manager.GetSession(context.Background())
		require.NoError(t, err)
		require.NoError(t, fixture.manager.Close())

		_, err = fixture.manager.GetSession(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, fixture.openCount)
	})
}

func TestOpenSessionCredentials(t *testing.T) {
	t.Run("fails_without_any_credentials", func(t *testing.T) {
		manager := NewSnowflakeSessionManager(Options{
			Account:   "myaccount",
			User:      "DEMO_USER",
			Warehouse: "COMPUTE_WH",
			Database:  "SALES",
			Schema:    "PUBLIC",
		})

		_, err := manager.openSession(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no credentials configured")
	})
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", formatValue(nil))
	assert.Equal(t, "hello", formatValue([]byte("hello")))
	assert.Equal(t, "42", formatValue(int64(42)))
	assert.Equal(t, "3.14", formatValue(3.14))
	assert.Equal(t, "2026-08-24 09:00:00", formatValue(time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)))
}
