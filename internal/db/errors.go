package db

import (
	"fmt"
	"strings"

	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// wrapConnectionError adds actionable guidance to a failed dial. The
// original error stays in the chain so classifiers can still inspect it.
func wrapConnectionError(err error, creds *sqlexplorer.Credentials) error {
	errStr := strings.ToLower(err.Error())
	addr := creds.Address()
	product := "SQL Server"
	if creds.Driver == sqlexplorer.DriverPostgres {
		product = "PostgreSQL"
	}

	switch {
	case strings.Contains(errStr, "login failed") || strings.Contains(errStr, "28000") ||
		strings.Contains(errStr, "password authentication failed"):
		return fmt.Errorf(`authentication failed for user "%s" on %s

Possible causes:
  - Wrong username or password (check DB_USERNAME / DB_PASSWORD or secrets.toml)
  - The login has no access to database "%s"
  - %s logins are disabled on the server

Original error: %w`, creds.Username, addr, creds.Database, authLabel(creds), err)

	case strings.Contains(errStr, "cannot open database") || strings.Contains(errStr, "does not exist"):
		return fmt.Errorf(`database "%s" is not available on %s

Possible causes:
  - Database name is misspelled
  - The database is offline or still being restored
  - The login has no user mapped in that database

Original error: %w`, creds.Database, addr, err)

	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		return fmt.Errorf(`connection refused to %s

Possible causes:
  - %s is not running or not listening on TCP
  - Wrong server or port
  - Firewall blocking the connection

Original error: %w`, addr, product, err)

	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "no host"):
		return fmt.Errorf(`cannot resolve host "%s"

Possible causes:
  - Server name is misspelled
  - DNS is not configured or reachable
  - Network connection issue

Original error: %w`, creds.Server, err)

	case strings.Contains(errStr, "hyt00") || strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return fmt.Errorf(`connection timed out to %s

Possible causes:
  - Server is overloaded or paused (serverless tiers resume on first connect)
  - Network latency or packet loss
  - Firewall silently dropping packets
  - Client IP not allowed by the server firewall rules

Original error: %w`, addr, err)

	case strings.Contains(errStr, "tls") || strings.Contains(errStr, "ssl") || strings.Contains(errStr, "certificate"):
		return fmt.Errorf(`TLS negotiation with %s failed

Possible causes:
  - Server requires encryption but --encrypt is off
  - Self-signed certificate (try --trust-server-certificate)
  - Server name does not match the certificate

Original error: %w`, addr, err)

	case strings.Contains(errStr, "too many connections"):
		return fmt.Errorf(`too many connections to %s

Possible causes:
  - Connection limit reached on the server
  - Other clients holding sessions open
  - pool.max_size set higher than the server allows

Original error: %w`, addr, err)

	default:
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
}

func authLabel(creds *sqlexplorer.Credentials) string {
	if creds.AuthMethod == sqlexplorer.AuthMethodSQL {
		return "SQL authentication"
	}
	return creds.AuthMethod.String()
}
