// Package credentials resolves database connection parameters from
// command-line flags, DB_* environment variables, a secrets.toml file,
// AWS Secrets Manager and sqlexplorer.yaml.
//
// Providers are layered with Chain: each field takes its value from the
// highest-precedence provider that sets it, so a password kept in the
// environment can complete a server and database given on the command line.
package credentials
