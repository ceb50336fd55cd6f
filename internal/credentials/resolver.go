package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/vvka-141/sqlexplorer/internal/config"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// Flags are connection parameters given on the command line.
// There is deliberately no password flag: use DB_PASSWORD, secrets.toml
// or a connection string.
type Flags struct {
	Connection             string
	Driver                 string
	Server                 string
	Port                   int
	Database               string
	Username               string
	Auth                   string
	Encrypt                bool
	TrustServerCertificate bool
}

// IsEmpty reports whether no granular connection flags were given.
// Database is excluded because it may override the database of a connection string.
func (f *Flags) IsEmpty() bool {
	return f == nil || (f.Server == "" && f.Port == 0 && f.Username == "" && f.Driver == "" && f.Auth == "")
}

func (f *Flags) credentials() (*sqlexplorer.Credentials, error) {
	if f == nil {
		return nil, nil
	}
	creds := &sqlexplorer.Credentials{
		Server:                 f.Server,
		Port:                   f.Port,
		Database:               f.Database,
		Username:               f.Username,
		Encrypt:                f.Encrypt,
		TrustServerCertificate: f.TrustServerCertificate,
	}
	if f.Driver != "" {
		d, err := sqlexplorer.ParseDriver(f.Driver)
		if err != nil {
			return nil, fmt.Errorf("--driver: %v: %w", err, sqlexplorer.ErrConfiguration)
		}
		creds.Driver = d
	}
	auth, err := sqlexplorer.ParseAuthMethod(f.Auth)
	if err != nil {
		return nil, fmt.Errorf("--auth: %v: %w", err, sqlexplorer.ErrConfiguration)
	}
	creds.AuthMethod = auth
	if *creds == (sqlexplorer.Credentials{}) {
		return nil, nil
	}
	return creds, nil
}

// ErrConflictingFlags is returned when --connection is combined with granular flags.
var ErrConflictingFlags = errors.New(
	"cannot specify both --connection and granular flags (--server, --port, --username, --driver, --auth)\n" +
		"Choose one approach:\n" +
		"  1. Connection string: --connection \"Server=tcp:host,1433;Initial Catalog=db;User ID=user\"\n" +
		"  2. Granular flags: --server host --port 1433 --username user --database db\n" +
		"  3. Environment variables: export DB_SERVER=host DB_DATABASE=db DB_USERNAME=user DB_PASSWORD=...")

// Resolve builds the provider chain in precedence order:
//
//  1. --connection, or granular flags (never both)
//  2. DB_* environment variables
//  3. the [sql] table of secrets.toml
//  4. AWS Secrets Manager, when connection.aws_secret_id is configured
//  5. the connection section of sqlexplorer.yaml
//
// cfg may be nil when no config file was found.
func Resolve(ctx context.Context, flags *Flags, cfg *config.Config, logger sqlexplorer.Logger) (*Chain, error) {
	if flags == nil {
		flags = &Flags{}
	}
	if flags.Connection != "" && !flags.IsEmpty() {
		return nil, fmt.Errorf("%w: %w", ErrConflictingFlags, sqlexplorer.ErrConfiguration)
	}

	var providers []sqlexplorer.CredentialProvider
	if flags.Connection != "" {
		providers = append(providers, NewConnectionStringProvider(flags.Connection))
		if flags.Database != "" {
			// --database overrides the catalog named in the connection string
			providers = append([]sqlexplorer.CredentialProvider{
				NewStatic("flags", &sqlexplorer.Credentials{Database: flags.Database}),
			}, providers...)
		}
	} else {
		fc, err := flags.credentials()
		if err != nil {
			return nil, err
		}
		providers = append(providers, NewStatic("flags", fc))
	}

	providers = append(providers, NewEnvProvider())

	secretsPath := DefaultSecretsFile
	if cfg != nil && cfg.SecretsFilePath() != "" {
		secretsPath = cfg.SecretsFilePath()
	}
	providers = append(providers, NewSecretsFileProvider(secretsPath))

	if cfg != nil {
		if cfg.Connection.AWSSecretID != "" {
			aws, err := NewAWSSecretsProvider(ctx, cfg.Connection.AWSRegion, cfg.Connection.AWSSecretID, logger)
			if err != nil {
				return nil, err
			}
			providers = append(providers, aws)
		}
		fileCreds, err := cfg.Credentials()
		if err != nil {
			return nil, fmt.Errorf("%s: %v: %w", config.ConfigFileName, err, sqlexplorer.ErrConfiguration)
		}
		providers = append(providers, NewStatic(config.ConfigFileName, fileCreds))
	}

	return NewChain(providers...), nil
}
