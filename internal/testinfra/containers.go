package testinfra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	tcmssql "github.com/testcontainers/testcontainers-go/modules/mssql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

const (
	PostgresImage    = "postgres:17"
	PostgresUser     = "postgres"
	PostgresPassword = "postgres"
	PostgresDB       = "sqlexplorer"

	SQLServerImage    = "mcr.microsoft.com/mssql/server:2022-CU14-ubuntu-22.04"
	SQLServerUser     = "sa"
	SQLServerPassword = "Sqlexpl0rer!Test"
	SQLServerDB       = "master"

	containerCertDir  = "/tmp/testcontainers-go/postgres"
	sslEntrypointPath = "/usr/local/bin/docker-entrypoint-ssl.bash"
)

// Database is a running container and the credentials that reach it from the host.
type Database struct {
	testcontainers.Container
	Credentials *sqlexplorer.Credentials
}

func postgresReady() testcontainers.CustomizeRequestOption {
	return testcontainers.WithWaitStrategy(
		wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	)
}

// StartPostgres runs a plain PostgreSQL server.
func StartPostgres(ctx context.Context) (*Database, error) {
	ctr, err := postgres.Run(ctx,
		PostgresImage,
		postgres.WithUsername(PostgresUser),
		postgres.WithPassword(PostgresPassword),
		postgres.WithDatabase(PostgresDB),
		postgresReady(),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}
	return withCredentials(ctx, ctr, "5432/tcp", &sqlexplorer.Credentials{
		Driver:   sqlexplorer.DriverPostgres,
		Database: PostgresDB,
		Username: PostgresUser,
		Password: PostgresPassword,
	})
}

// StartTLSPostgres runs PostgreSQL with ssl = on using the given certificates.
// The returned credentials request an encrypted connection.
func StartTLSPostgres(ctx context.Context, paths *TLSPaths) (*Database, error) {
	confPath, err := writeSSLConfig(filepath.Dir(paths.CACert))
	if err != nil {
		return nil, err
	}

	ctr, err := postgres.Run(ctx,
		PostgresImage,
		postgres.WithUsername(PostgresUser),
		postgres.WithPassword(PostgresPassword),
		postgres.WithDatabase(PostgresDB),
		postgres.WithSSLCert(paths.CACert, paths.ServerCert, paths.ServerKey),
		postgres.WithConfigFile(confPath),
		// WithSSLCert sets entrypoint to "sh" which fails on Debian (dash doesn't support pipefail).
		testcontainers.WithEntrypoint("bash", sslEntrypointPath),
		postgresReady(),
	)
	if err != nil {
		return nil, fmt.Errorf("start TLS postgres: %w", err)
	}
	return withCredentials(ctx, ctr, "5432/tcp", &sqlexplorer.Credentials{
		Driver:                 sqlexplorer.DriverPostgres,
		Database:               PostgresDB,
		Username:               PostgresUser,
		Password:               PostgresPassword,
		Encrypt:                true,
		TrustServerCertificate: true,
	})
}

// StartSQLServer runs SQL Server on Linux. The image is large and slow to
// start; callers should share one instance per test binary.
func StartSQLServer(ctx context.Context) (*Database, error) {
	ctr, err := tcmssql.Run(ctx,
		SQLServerImage,
		tcmssql.WithAcceptEULA(),
		tcmssql.WithPassword(SQLServerPassword),
	)
	if err != nil {
		return nil, fmt.Errorf("start sql server: %w", err)
	}
	return withCredentials(ctx, ctr, "1433/tcp", &sqlexplorer.Credentials{
		Driver:                 sqlexplorer.DriverSQLServer,
		Database:               SQLServerDB,
		Username:               SQLServerUser,
		Password:               SQLServerPassword,
		TrustServerCertificate: true,
	})
}

func withCredentials(ctx context.Context, ctr testcontainers.Container, port nat.Port, creds *sqlexplorer.Credentials) (*Database, error) {
	host, err := ctr.Host(ctx)
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("container host: %w", err)
	}
	mapped, err := ctr.MappedPort(ctx, port)
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("container port %s: %w", port, err)
	}
	creds.Server = host
	creds.Port = mapped.Int()
	creds.AppName = "sqlexplorer-tests"
	creds.ConnectTimeout = 30 * time.Second
	return &Database{Container: ctr, Credentials: creds}, nil
}

func writeSSLConfig(dir string) (string, error) {
	conf := fmt.Sprintf(`listen_addresses = '*'
ssl = on
ssl_cert_file = '%s/server.cert'
ssl_key_file = '%s/server.key'
ssl_ca_file = '%s/ca_cert.pem'
`, containerCertDir, containerCertDir, containerCertDir)

	path := filepath.Join(dir, "postgresql.conf")
	if err := os.WriteFile(path, []byte(conf), 0o644); err != nil {
		return "", fmt.Errorf("write postgresql.conf: %w", err)
	}
	return path, nil
}
