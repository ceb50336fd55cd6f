package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vvka-141/sqlexplorer/internal/query"
)

var tablesFlags struct {
	conn connectionFlags
	out  outputFlags
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the base tables of the database",
	Long: `List base tables from INFORMATION_SCHEMA.TABLES, ordered by schema and name.

Examples:
  sqlexplorer tables -S sql.example.com -d Sales -U reporter
  sqlexplorer tables --connection "postgres://app@localhost/shop" --format csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := validateFormat(tablesFlags.out.format); err != nil {
			return err
		}
		return withApp(cmd, &tablesFlags.conn, func(ctx context.Context, a *app) (*query.Outcome, error) {
			return a.svc.Tables(ctx)
		}, tablesFlags.out, false)
	},
}

var infoFlags struct {
	conn connectionFlags
	out  outputFlags
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show server name, database, version and edition",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := validateFormat(infoFlags.out.format); err != nil {
			return err
		}
		return withApp(cmd, &infoFlags.conn, func(ctx context.Context, a *app) (*query.Outcome, error) {
			return a.svc.DatabaseInfo(ctx)
		}, infoFlags.out, true)
	},
}

func init() {
	rootCmd.AddCommand(tablesCmd)
	addConnectionFlags(tablesCmd, &tablesFlags.conn)
	addOutputFlags(tablesCmd, &tablesFlags.out)

	rootCmd.AddCommand(infoCmd)
	addConnectionFlags(infoCmd, &infoFlags.conn)
	addOutputFlags(infoCmd, &infoFlags.out)
}
