package cli

import (
	"github.com/spf13/cobra"

	"github.com/vvka-141/sqlexplorer/internal/credentials"
)

// connectionFlags holds the common connection-related flag values.
type connectionFlags struct {
	connection             string
	driver                 string
	server                 string
	port                   int
	database               string
	username               string
	auth                   string
	encrypt                bool
	trustServerCertificate bool
}

// addConnectionFlags registers the connection flags shared by every command
// that talks to a database.
func addConnectionFlags(cmd *cobra.Command, f *connectionFlags) {
	flags := cmd.Flags()
	flags.StringVar(&f.connection, "connection", "",
		"Connection string (ADO.NET, sqlserver:// or postgres://). Mutually exclusive with --server/--port/--username/--driver/--auth")
	flags.StringVar(&f.driver, "driver", "", "Database driver: sqlserver (default) or postgres")
	flags.StringVarP(&f.server, "server", "S", "", "Database server host")
	flags.IntVar(&f.port, "port", 0, "Database server port (default 1433 for sqlserver, 5432 for postgres)")
	flags.StringVarP(&f.database, "database", "d", "", "Database name (overrides the connection string)")
	flags.StringVarP(&f.username, "username", "U", "", "Database user; the password comes from DB_PASSWORD or secrets.toml")
	flags.StringVar(&f.auth, "auth", "", "Authentication method: sql, azure, aws or google")
	flags.BoolVar(&f.encrypt, "encrypt", false, "Require an encrypted connection")
	flags.BoolVar(&f.trustServerCertificate, "trust-server-certificate", false, "Skip server certificate validation")
}

func (f *connectionFlags) credentialFlags() *credentials.Flags {
	return &credentials.Flags{
		Connection:             f.connection,
		Driver:                 f.driver,
		Server:                 f.server,
		Port:                   f.port,
		Database:               f.database,
		Username:               f.username,
		Auth:                   f.auth,
		Encrypt:                f.encrypt,
		TrustServerCertificate: f.trustServerCertificate,
	}
}
