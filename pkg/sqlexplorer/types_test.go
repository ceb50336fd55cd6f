package sqlexplorer_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

func validCredentials() *sqlexplorer.Credentials {
	return &sqlexplorer.Credentials{
		Driver:   sqlexplorer.DriverSQLServer,
		Server:   "db.example.com",
		Database: "sales",
		Username: "reader",
		Password: "secret",
	}
}

func TestCredentials_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *sqlexplorer.Credentials)
		wantErr bool
	}{
		{"valid sql login", func(c *sqlexplorer.Credentials) {}, false},
		{"missing server", func(c *sqlexplorer.Credentials) { c.Server = "" }, true},
		{"missing database", func(c *sqlexplorer.Credentials) { c.Database = "" }, true},
		{"missing password", func(c *sqlexplorer.Credentials) { c.Password = "" }, true},
		{"bad port", func(c *sqlexplorer.Credentials) { c.Port = 70000 }, true},
		{"unknown driver", func(c *sqlexplorer.Credentials) { c.Driver = "oracle" }, true},
		{"azure needs no password", func(c *sqlexplorer.Credentials) {
			c.AuthMethod = sqlexplorer.AuthMethodAzureEntraID
			c.Password = ""
		}, false},
		{"aws on sqlserver rejected", func(c *sqlexplorer.Credentials) {
			c.AuthMethod = sqlexplorer.AuthMethodAWSIAM
			c.AWSRegion = "eu-west-1"
		}, true},
		{"aws on postgres", func(c *sqlexplorer.Credentials) {
			c.Driver = sqlexplorer.DriverPostgres
			c.AuthMethod = sqlexplorer.AuthMethodAWSIAM
			c.AWSRegion = "eu-west-1"
		}, false},
		{"google without instance", func(c *sqlexplorer.Credentials) {
			c.Driver = sqlexplorer.DriverPostgres
			c.AuthMethod = sqlexplorer.AuthMethodGoogleIAM
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCredentials()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, sqlexplorer.ErrConfiguration))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCredentials_NilIsConfigurationError(t *testing.T) {
	var c *sqlexplorer.Credentials
	assert.ErrorIs(t, c.Validate(), sqlexplorer.ErrConfiguration)
}

func TestCredentials_StringOmitsPassword(t *testing.T) {
	c := validCredentials()
	assert.NotContains(t, c.String(), "secret")
	assert.Equal(t, "db.example.com:1433", c.Address())

	c.Driver = sqlexplorer.DriverPostgres
	assert.Equal(t, "db.example.com:5432", c.Address())
}

func TestParseDriverAndAuth(t *testing.T) {
	d, err := sqlexplorer.ParseDriver("mssql")
	require.NoError(t, err)
	assert.Equal(t, sqlexplorer.DriverSQLServer, d)

	d, err = sqlexplorer.ParseDriver("PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, sqlexplorer.DriverPostgres, d)

	_, err = sqlexplorer.ParseDriver("oracle")
	assert.ErrorIs(t, err, sqlexplorer.ErrUnsupportedDriver)

	a, err := sqlexplorer.ParseAuthMethod("azure")
	require.NoError(t, err)
	assert.Equal(t, sqlexplorer.AuthMethodAzureEntraID, a)

	_, err = sqlexplorer.ParseAuthMethod("kerberos")
	assert.ErrorIs(t, err, sqlexplorer.ErrUnsupportedAuthMode)
}

func TestPoolConfig_Validate(t *testing.T) {
	require.NoError(t, sqlexplorer.DefaultPoolConfig().Validate())

	cfg := sqlexplorer.DefaultPoolConfig()
	cfg.MaxSize = 0
	assert.ErrorIs(t, cfg.Validate(), sqlexplorer.ErrConfiguration)

	cfg = sqlexplorer.DefaultPoolConfig()
	cfg.MinSize = 10
	assert.ErrorIs(t, cfg.Validate(), sqlexplorer.ErrConfiguration)

	cfg = sqlexplorer.DefaultPoolConfig()
	cfg.AcquireTimeout = -time.Second
	assert.ErrorIs(t, cfg.Validate(), sqlexplorer.ErrConfiguration)
}

func TestRetryPolicy_Defaults(t *testing.T) {
	p := sqlexplorer.DefaultRetryPolicy()
	require.NoError(t, p.Validate())
	assert.Equal(t, 3, p.MaxAttempts)
	assert.True(t, p.IsRetryable(sqlexplorer.KindTransientExecution))
	assert.False(t, p.IsRetryable(sqlexplorer.KindPermanentExecution))
	assert.False(t, p.IsRetryable(sqlexplorer.KindPoolExhausted))

	p.Multiplier = 0.5
	assert.ErrorIs(t, p.Validate(), sqlexplorer.ErrConfiguration)
}

func TestQueryRequest_Validate(t *testing.T) {
	assert.NoError(t, sqlexplorer.QueryRequest{Statement: "SELECT 1"}.Validate())
	assert.ErrorIs(t, sqlexplorer.QueryRequest{Statement: "  "}.Validate(), sqlexplorer.ErrConfiguration)
	assert.ErrorIs(t, sqlexplorer.QueryRequest{Statement: "SELECT 1", TTL: -1}.Validate(), sqlexplorer.ErrConfiguration)
}
