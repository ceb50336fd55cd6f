package db

import (
	"context"
	"fmt"

	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// NewDialer picks the driver and authentication flow for creds.
// Invalid credentials fail with ErrConfiguration before any network I/O.
func NewDialer(ctx context.Context, creds *sqlexplorer.Credentials, logger sqlexplorer.Logger) (sqlexplorer.Dialer, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	tokens, err := newTokenProvider(creds)
	if err != nil {
		return nil, err
	}

	switch creds.Driver {
	case sqlexplorer.DriverSQLServer:
		d, err := NewSQLServerDialer(creds, tokens, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	case sqlexplorer.DriverPostgres:
		d, err := NewPostgresDialer(ctx, creds, tokens, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, fmt.Errorf("%q: %w", creds.Driver, sqlexplorer.ErrUnsupportedDriver)
}

// newTokenProvider returns nil for auth methods that do not use tokens.
// Explicit tenant, client and secret select a service principal; otherwise
// Azure falls back to the DefaultAzureCredential chain.
func newTokenProvider(creds *sqlexplorer.Credentials) (TokenProvider, error) {
	switch creds.AuthMethod {
	case sqlexplorer.AuthMethodAzureEntraID:
		scope := AzureSQLScope
		if creds.Driver == sqlexplorer.DriverPostgres {
			scope = AzurePostgreSQLScope
		}
		if creds.AzureTenantID != "" && creds.AzureClientID != "" && creds.AzureClientSecret != "" {
			p, err := NewAzureServicePrincipalProvider(creds.AzureTenantID, creds.AzureClientID, creds.AzureClientSecret, scope)
			if err != nil {
				return nil, fmt.Errorf("failed to create Azure Service Principal provider: %w", err)
			}
			return p, nil
		}
		p, err := NewAzureDefaultCredentialProvider(scope)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Default Credential provider: %w", err)
		}
		return p, nil

	case sqlexplorer.AuthMethodAWSIAM:
		p, err := NewAWSIAMTokenProvider(creds.Address(), creds.AWSRegion, creds.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS IAM token provider: %v: %w", err, sqlexplorer.ErrConfiguration)
		}
		return p, nil
	}
	return nil, nil
}
