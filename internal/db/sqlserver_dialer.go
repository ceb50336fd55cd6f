package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/vvka-141/sqlexplorer/internal/logging"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// SQLServerDialer opens SQL Server sessions through go-mssqldb.
//
// A single *sql.DB holds the driver connector; it keeps no idle connections,
// so each Dial is a fresh physical connection owned by the caller's pool.
type SQLServerDialer struct {
	db     *sql.DB
	creds  *sqlexplorer.Credentials
	logger sqlexplorer.Logger
}

// NewSQLServerDialer builds a dialer for creds. tokens is required for
// Entra ID auth and ignored for SQL logins.
func NewSQLServerDialer(creds *sqlexplorer.Credentials, tokens TokenProvider, logger sqlexplorer.Logger) (*SQLServerDialer, error) {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	dsn := BuildSQLServerDSN(creds)

	var connector driver.Connector
	var err error
	switch creds.AuthMethod {
	case sqlexplorer.AuthMethodSQL:
		connector, err = mssql.NewConnector(dsn)
	case sqlexplorer.AuthMethodAzureEntraID:
		if tokens == nil {
			return nil, fmt.Errorf("azure auth requires a token provider: %w", sqlexplorer.ErrConfiguration)
		}
		connector, err = mssql.NewAccessTokenConnector(dsn, azureTokenFunc(tokens, logger))
	default:
		return nil, fmt.Errorf("%s is not available for SQL Server: %w", creds.AuthMethod, sqlexplorer.ErrUnsupportedAuthMode)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid SQL Server connection settings: %v: %w", err, sqlexplorer.ErrConfiguration)
	}

	return newSQLServerDialerFromDB(sql.OpenDB(connector), creds, logger), nil
}

func newSQLServerDialerFromDB(db *sql.DB, creds *sqlexplorer.Credentials, logger sqlexplorer.Logger) *SQLServerDialer {
	db.SetMaxIdleConns(0)
	return &SQLServerDialer{db: db, creds: creds, logger: logger}
}

// azureTokenFunc adapts a TokenProvider to the callback go-mssqldb invokes on every new connection.
func azureTokenFunc(tokens TokenProvider, logger sqlexplorer.Logger) func() (string, error) {
	return func() (string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		token, expiresOn, err := tokens.GetToken(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to acquire token from %s: %w", tokens, err)
		}
		if time.Until(expiresOn) < tokenExpiryWarning {
			logger.Info("Warning: %s token expires in %v", tokens, time.Until(expiresOn).Round(time.Second))
		}
		return token, nil
	}
}

func (d *SQLServerDialer) Dial(ctx context.Context) (sqlexplorer.Session, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, wrapConnectionError(err, d.creds)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, wrapConnectionError(err, d.creds)
	}
	d.logger.Verbose("Opened SQL Server session to %s", d.creds.Address())
	return newSQLSession(conn), nil
}

func (d *SQLServerDialer) Close() error {
	return d.db.Close()
}
