package db

import (
	"context"
	"time"
)

// TokenProvider acquires short-lived cloud tokens that stand in for a password.
type TokenProvider interface {
	// GetToken returns the token and its expiry.
	GetToken(ctx context.Context) (token string, expiresOn time.Time, err error)

	// String describes the provider for logging. Must not include secrets.
	String() string
}

const (
	// AzureSQLScope is the Entra ID resource scope for Azure SQL Database and Managed Instance.
	AzureSQLScope = "https://database.windows.net/.default"

	// AzurePostgreSQLScope is the Entra ID resource scope for Azure Database for PostgreSQL.
	AzurePostgreSQLScope = "https://ossrdbms-aad.database.windows.net/.default"
)

// tokenExpiryWarning is how close to expiry a freshly issued token must be before it is logged.
const tokenExpiryWarning = 5 * time.Minute
