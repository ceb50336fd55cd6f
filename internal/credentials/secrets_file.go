package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// DefaultSecretsFile is where Streamlit-style deployments keep connection secrets.
const DefaultSecretsFile = ".streamlit/secrets.toml"

// SecretsFileProvider reads the [sql] table of a TOML secrets file:
//
//	[sql]
//	server = "myserver.database.windows.net"
//	database = "sales"
//	username = "reporter"
//	password = "..."
type SecretsFileProvider struct {
	path  string
	table string
}

func NewSecretsFileProvider(path string) *SecretsFileProvider {
	if path == "" {
		path = DefaultSecretsFile
	}
	return &SecretsFileProvider{path: path, table: "sql"}
}

func (p *SecretsFileProvider) Credentials(context.Context) (*sqlexplorer.Credentials, error) {
	if _, err := os.Stat(p.path); errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCredentials
	}

	v := viper.New()
	v.SetConfigFile(p.path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading %s: %v: %w", p.path, err, sqlexplorer.ErrConfiguration)
	}

	sub := v.Sub(p.table)
	if sub == nil {
		return nil, ErrNoCredentials
	}

	creds := &sqlexplorer.Credentials{
		Server:                 sub.GetString("server"),
		Port:                   sub.GetInt("port"),
		Database:               sub.GetString("database"),
		Username:               sub.GetString("username"),
		Password:               sub.GetString("password"),
		Encrypt:                sub.GetBool("encrypt"),
		TrustServerCertificate: sub.GetBool("trust_server_certificate"),
	}
	if d := sub.GetString("driver"); d != "" {
		driver, err := sqlexplorer.ParseDriver(d)
		if err != nil {
			return nil, fmt.Errorf("%s [%s] driver: %v: %w", p.path, p.table, err, sqlexplorer.ErrConfiguration)
		}
		creds.Driver = driver
	}
	return creds, nil
}

func (p *SecretsFileProvider) String() string { return "secrets(" + p.path + ")" }
