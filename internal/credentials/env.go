package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// EnvPrefix is prepended to every variable read by EnvProvider.
const EnvPrefix = "DB"

// envSpec maps DB_* variables. Every field is optional. split_words keeps
// envconfig from falling back to unprefixed names such as PORT.
type envSpec struct {
	Driver                 string        `split_words:"true"`
	Server                 string        `split_words:"true"`
	Port                   int           `split_words:"true"`
	Database               string        `split_words:"true"`
	Username               string        `split_words:"true"`
	Password               string        `split_words:"true"`
	Auth                   string        `split_words:"true"`
	Encrypt                bool          `split_words:"true"`
	TrustServerCertificate bool          `split_words:"true"`
	ConnectTimeout         time.Duration `split_words:"true"`
	AWSRegion              string        `split_words:"true"`
	GoogleInstance         string        `split_words:"true"`
}

// EnvProvider reads DB_SERVER, DB_DATABASE, DB_USERNAME, DB_PASSWORD and
// friends. Azure service principal settings come from the Azure SDK's own
// AZURE_TENANT_ID, AZURE_CLIENT_ID and AZURE_CLIENT_SECRET.
type EnvProvider struct {
	prefix string
}

func NewEnvProvider() *EnvProvider {
	return &EnvProvider{prefix: EnvPrefix}
}

func (p *EnvProvider) Credentials(context.Context) (*sqlexplorer.Credentials, error) {
	var spec envSpec
	if err := envconfig.Process(p.prefix, &spec); err != nil {
		return nil, fmt.Errorf("reading %s_* environment: %v: %w", p.prefix, err, sqlexplorer.ErrConfiguration)
	}

	var azure struct {
		TenantID     string `split_words:"true"`
		ClientID     string `split_words:"true"`
		ClientSecret string `split_words:"true"`
	}
	if err := envconfig.Process("AZURE", &azure); err != nil {
		return nil, fmt.Errorf("reading AZURE_* environment: %v: %w", err, sqlexplorer.ErrConfiguration)
	}

	if spec == (envSpec{}) && azure.TenantID == "" && azure.ClientID == "" {
		return nil, ErrNoCredentials
	}

	creds := &sqlexplorer.Credentials{
		Server:                 spec.Server,
		Port:                   spec.Port,
		Database:               spec.Database,
		Username:               spec.Username,
		Password:               spec.Password,
		Encrypt:                spec.Encrypt,
		TrustServerCertificate: spec.TrustServerCertificate,
		ConnectTimeout:         spec.ConnectTimeout,
		AWSRegion:              spec.AWSRegion,
		GoogleInstance:         spec.GoogleInstance,
		AzureTenantID:          azure.TenantID,
		AzureClientID:          azure.ClientID,
		AzureClientSecret:      azure.ClientSecret,
	}
	if spec.Driver != "" {
		d, err := sqlexplorer.ParseDriver(spec.Driver)
		if err != nil {
			return nil, fmt.Errorf("%s_DRIVER: %v: %w", p.prefix, err, sqlexplorer.ErrConfiguration)
		}
		creds.Driver = d
	}
	auth, err := sqlexplorer.ParseAuthMethod(spec.Auth)
	if err != nil {
		return nil, fmt.Errorf("%s_AUTH: %v: %w", p.prefix, err, sqlexplorer.ErrConfiguration)
	}
	creds.AuthMethod = auth
	return creds, nil
}

func (p *EnvProvider) String() string { return "env(" + p.prefix + "_*)" }
