package credentials

import (
	"context"
	"fmt"
	"os"

	"github.com/vvka-141/sqlexplorer/internal/db"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// ConnectionStringProvider parses a URI or ADO.NET connection string.
// A password absent from the string is taken from DB_PASSWORD.
type ConnectionStringProvider struct {
	connStr string
	getenv  func(string) string
}

func NewConnectionStringProvider(connStr string) *ConnectionStringProvider {
	return &ConnectionStringProvider{connStr: connStr, getenv: os.Getenv}
}

func (p *ConnectionStringProvider) Credentials(context.Context) (*sqlexplorer.Credentials, error) {
	if p.connStr == "" {
		return nil, ErrNoCredentials
	}
	creds, err := db.ParseConnectionString(p.connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %v: %w", err, sqlexplorer.ErrConfiguration)
	}
	if creds.Password == "" && creds.AuthMethod == sqlexplorer.AuthMethodSQL {
		creds.Password = p.getenv(EnvPrefix + "_PASSWORD")
	}
	return creds, nil
}

func (p *ConnectionStringProvider) String() string { return "connection-string" }
