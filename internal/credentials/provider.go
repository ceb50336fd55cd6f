package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// ErrNoCredentials means a provider has nothing to offer, e.g. no DB_*
// variables are set or the secrets file is absent. Chain skips such providers.
var ErrNoCredentials = errors.New("no credentials available")

// Static returns fixed, possibly partial, credentials.
type Static struct {
	creds *sqlexplorer.Credentials
	name  string
}

// NewStatic wraps creds. name is used in log lines.
func NewStatic(name string, creds *sqlexplorer.Credentials) *Static {
	return &Static{creds: creds, name: name}
}

func (s *Static) Credentials(context.Context) (*sqlexplorer.Credentials, error) {
	if s.creds == nil {
		return nil, ErrNoCredentials
	}
	c := *s.creds
	return &c, nil
}

func (s *Static) String() string { return s.name }

// Chain layers providers in precedence order. Each field takes the first
// non-empty value offered, and the walk stops as soon as the merged
// credentials validate. Providers reporting ErrNoCredentials are skipped;
// any other error stops the chain.
type Chain struct {
	providers []sqlexplorer.CredentialProvider
}

func NewChain(providers ...sqlexplorer.CredentialProvider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Credentials(ctx context.Context) (*sqlexplorer.Credentials, error) {
	merged := &sqlexplorer.Credentials{}
	found := false

	for _, p := range c.providers {
		creds, err := p.Credentials(ctx)
		if errors.Is(err, ErrNoCredentials) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		found = true
		mergeInto(merged, creds)
		if withDefaults(merged).Validate() == nil {
			return withDefaults(merged), nil
		}
	}

	if !found {
		return nil, fmt.Errorf("%w (tried %s): %w", ErrNoCredentials, c, sqlexplorer.ErrConfiguration)
	}
	out := withDefaults(merged)
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Chain) String() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.String()
	}
	return "chain(" + strings.Join(names, ", ") + ")"
}

// mergeInto fills empty fields of dst from src. Boolean TLS flags are
// sticky: once any layer enables them they stay enabled.
func mergeInto(dst, src *sqlexplorer.Credentials) {
	if src == nil {
		return
	}
	setString(&dst.Server, src.Server)
	setString(&dst.Database, src.Database)
	setString(&dst.Username, src.Username)
	setString(&dst.Password, src.Password)
	setString(&dst.AppName, src.AppName)
	setString(&dst.AzureTenantID, src.AzureTenantID)
	setString(&dst.AzureClientID, src.AzureClientID)
	setString(&dst.AzureClientSecret, src.AzureClientSecret)
	setString(&dst.AWSRegion, src.AWSRegion)
	setString(&dst.GoogleInstance, src.GoogleInstance)
	if dst.Driver == "" {
		dst.Driver = src.Driver
	}
	if dst.Port == 0 {
		dst.Port = src.Port
	}
	if dst.AuthMethod == sqlexplorer.AuthMethodSQL {
		dst.AuthMethod = src.AuthMethod
	}
	if dst.ConnectTimeout == 0 {
		dst.ConnectTimeout = src.ConnectTimeout
	}
	dst.Encrypt = dst.Encrypt || src.Encrypt
	dst.TrustServerCertificate = dst.TrustServerCertificate || src.TrustServerCertificate
}

func setString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func withDefaults(c *sqlexplorer.Credentials) *sqlexplorer.Credentials {
	out := *c
	if out.Driver == "" {
		out.Driver = sqlexplorer.DriverSQLServer
	}
	return &out
}
