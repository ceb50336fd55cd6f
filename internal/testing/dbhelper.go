package testing

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/vvka-141/sqlexplorer/internal/cache"
	"github.com/vvka-141/sqlexplorer/internal/db"
	"github.com/vvka-141/sqlexplorer/internal/pool"
	"github.com/vvka-141/sqlexplorer/internal/query"
	"github.com/vvka-141/sqlexplorer/internal/testinfra"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// Environment variables that point integration tests at an existing server
// instead of starting a container.
const (
	PostgresEnvVar  = "SQLEXPLORER_TEST_POSTGRES"
	SQLServerEnvVar = "SQLEXPLORER_TEST_SQLSERVER"
)

type sharedDatabase struct {
	once  sync.Once
	creds *sqlexplorer.Credentials
	err   error
}

var (
	postgresDB  sharedDatabase
	sqlServerDB sharedDatabase
)

func (s *sharedDatabase) get(envVar string, start func(context.Context) (*testinfra.Database, error)) (*sqlexplorer.Credentials, error) {
	s.once.Do(func() {
		if connString := os.Getenv(envVar); connString != "" {
			s.creds, s.err = db.ParseConnectionString(connString)
			if s.err == nil && s.creds.Password == "" {
				s.creds.Password = os.Getenv("DB_PASSWORD")
			}
			return
		}
		container, err := start(context.Background())
		if err != nil {
			s.err = err
			return
		}
		s.creds = container.Credentials
	})
	if s.err != nil {
		return nil, s.err
	}
	c := *s.creds
	return &c, nil
}

// SkipIfShort skips the test if running in short mode (-short flag).
func SkipIfShort(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequirePostgres returns credentials for a PostgreSQL test server.
// Priority: SQLEXPLORER_TEST_POSTGRES connection string > shared testcontainer > skip test.
func RequirePostgres(t *testing.T) *sqlexplorer.Credentials {
	t.Helper()

	SkipIfShort(t)
	creds, err := postgresDB.get(PostgresEnvVar, testinfra.StartPostgres)
	if err != nil {
		t.Skipf("%s not set and Docker unavailable: %v", PostgresEnvVar, err)
	}
	return creds
}

// RequireSQLServer returns credentials for a SQL Server test instance.
// Priority: SQLEXPLORER_TEST_SQLSERVER connection string > shared testcontainer > skip test.
func RequireSQLServer(t *testing.T) *sqlexplorer.Credentials {
	t.Helper()

	SkipIfShort(t)
	creds, err := sqlServerDB.get(SQLServerEnvVar, testinfra.StartSQLServer)
	if err != nil {
		t.Skipf("%s not set and Docker unavailable: %v", SQLServerEnvVar, err)
	}
	return creds
}

// NewTestService wires a real dialer, a small pool and an in-memory cache for
// creds. The service is closed when the test ends.
func NewTestService(t *testing.T, creds *sqlexplorer.Credentials, opts ...query.Option) *query.Service {
	t.Helper()

	ctx := context.Background()
	dialer, err := db.NewDialer(ctx, creds, nil)
	if err != nil {
		t.Fatalf("NewDialer: %v", err)
	}

	cfg := sqlexplorer.DefaultPoolConfig()
	cfg.MaxSize = 3
	cfg.AcquireTimeout = 30 * time.Second
	p, err := pool.New(cfg, dialer)
	if err != nil {
		t.Fatalf("pool.New: %v", err)
	}

	policy := sqlexplorer.DefaultRetryPolicy()
	policy.BaseBackoff = 50 * time.Millisecond
	opts = append([]query.Option{query.WithDriver(creds.Driver), query.WithRetryPolicy(policy)}, opts...)
	svc, err := query.New(p, cache.NewLRU(64, time.Minute), opts...)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := svc.Close(ctx); err != nil {
			t.Logf("closing test service: %v", err)
		}
	})
	return svc
}

// MustExec runs a statement that is expected to succeed, bypassing the cache.
func MustExec(t *testing.T, svc *query.Service, statement string, args ...any) *sqlexplorer.ResultSet {
	t.Helper()

	rs, err := svc.Run(context.Background(), sqlexplorer.QueryRequest{
		Statement:    statement,
		Params:       args,
		ForceRefresh: true,
	})
	if err != nil {
		t.Fatalf("exec %q: %v", statement, err)
	}
	return rs
}
