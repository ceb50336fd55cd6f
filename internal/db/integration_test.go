//go:build integration

package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/sqlexplorer/internal/db"
	"github.com/vvka-141/sqlexplorer/internal/retry"
	testhelpers "github.com/vvka-141/sqlexplorer/internal/testing"
	"github.com/vvka-141/sqlexplorer/internal/testinfra"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

func dial(t *testing.T, creds *sqlexplorer.Credentials) sqlexplorer.Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dialer, err := db.NewDialer(ctx, creds, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dialer.Close() })

	s, err := dialer.Dial(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Ping(ctx))
	return s
}

func TestPostgres_QueryNormalizesCells(t *testing.T) {
	s := dial(t, testhelpers.RequirePostgres(t))

	rs, err := s.Query(context.Background(),
		`SELECT $1::int AS id, 12.50::numeric(5,2) AS price, $2::text AS name,
		        NULL::text AS missing, 'a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11'::uuid AS ref,
		        true AS flag, '2024-01-31 12:00:00+00'::timestamptz AS at`,
		[]any{int64(7), "widget"})
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())

	assert.Equal(t, []string{"id", "price", "name", "missing", "ref", "flag", "at"}, rs.ColumnNames())
	assert.Equal(t, int64(7), rs.Value(0, 0))
	price, ok := rs.Value(0, 1).(decimal.Decimal)
	require.True(t, ok, "numeric should be decimal.Decimal, got %T", rs.Value(0, 1))
	assert.True(t, price.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "widget", rs.Value(0, 2))
	assert.Nil(t, rs.Value(0, 3))
	assert.Equal(t, "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11", rs.Value(0, 4))
	assert.Equal(t, true, rs.Value(0, 5))
	at, ok := rs.Value(0, 6).(time.Time)
	require.True(t, ok)
	assert.True(t, at.Equal(time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)))
}

func TestPostgres_ErrorsClassify(t *testing.T) {
	s := dial(t, testhelpers.RequirePostgres(t))
	classifier := retry.ForDriver(sqlexplorer.DriverPostgres)

	_, err := s.Query(context.Background(), "SELECT * FROM no_such_table", nil)
	require.Error(t, err)
	assert.Equal(t, sqlexplorer.KindPermanentExecution, classifier.Classify(err))

	_, err = s.Query(context.Background(), "SELEC 1", nil)
	require.Error(t, err)
	assert.Equal(t, sqlexplorer.KindPermanentExecution, classifier.Classify(err))
}

func TestPostgres_WrongPasswordIsConfigurationError(t *testing.T) {
	creds := testhelpers.RequirePostgres(t)
	creds.Password = "wrong-password"

	dialer, err := db.NewDialer(context.Background(), creds, nil)
	require.NoError(t, err)
	defer dialer.Close()

	_, err = dialer.Dial(context.Background())
	require.Error(t, err)
	assert.Equal(t, sqlexplorer.KindConfiguration, retry.ForDriver(sqlexplorer.DriverPostgres).Classify(err))
}

func TestPostgres_TLS(t *testing.T) {
	testhelpers.SkipIfShort(t)
	ctx := context.Background()

	bundle, err := testinfra.GenerateServerTLS([]string{"localhost", "127.0.0.1"})
	require.NoError(t, err)
	paths, err := bundle.WriteToDir(t.TempDir())
	require.NoError(t, err)

	container, err := testinfra.StartTLSPostgres(ctx, paths)
	if err != nil {
		t.Skipf("Docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	s := dial(t, container.Credentials)
	rs, err := s.Query(ctx, "SELECT ssl FROM pg_stat_ssl WHERE pid = pg_backend_pid()", nil)
	require.NoError(t, err)
	assert.Equal(t, true, rs.Value(0, 0))
}

func TestSQLServer_QueryNormalizesCells(t *testing.T) {
	s := dial(t, testhelpers.RequireSQLServer(t))

	rs, err := s.Query(context.Background(),
		`SELECT CAST(@p1 AS INT) AS id, CAST(12.50 AS DECIMAL(5,2)) AS price, CAST(@p2 AS NVARCHAR(20)) AS name,
		        CAST(NULL AS NVARCHAR(10)) AS missing,
		        CAST('A0EEBC99-9C0B-4EF8-BB6D-6BB9BD380A11' AS UNIQUEIDENTIFIER) AS ref,
		        CAST(1 AS BIT) AS flag, CAST(12.3456 AS MONEY) AS amount`,
		[]any{int64(7), "widget"})
	require.NoError(t, err)

	assert.Equal(t, int64(7), rs.Value(0, 0))
	price, ok := rs.Value(0, 1).(decimal.Decimal)
	require.True(t, ok, "DECIMAL should be decimal.Decimal, got %T", rs.Value(0, 1))
	assert.True(t, price.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "widget", rs.Value(0, 2))
	assert.Nil(t, rs.Value(0, 3))
	assert.Equal(t, "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11", rs.Value(0, 4))
	assert.Equal(t, true, rs.Value(0, 5))
	_, ok = rs.Value(0, 6).(decimal.Decimal)
	assert.True(t, ok, "MONEY should be decimal.Decimal, got %T", rs.Value(0, 6))
}

func TestSQLServer_ErrorsClassify(t *testing.T) {
	s := dial(t, testhelpers.RequireSQLServer(t))
	classifier := retry.ForDriver(sqlexplorer.DriverSQLServer)

	_, err := s.Query(context.Background(), "SELECT * FROM dbo.NoSuchTable", nil)
	require.Error(t, err)
	assert.Equal(t, sqlexplorer.KindPermanentExecution, classifier.Classify(err))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = s.Query(ctx, "WAITFOR DELAY '00:00:05'", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) ||
		classifier.Classify(err) == sqlexplorer.KindTransientExecution, "got %v", err)
}
