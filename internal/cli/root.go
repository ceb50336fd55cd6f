package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sqlexplorer",
	Short: "Query SQL Server and PostgreSQL through a pooled, cached, retrying service",
	Long: `sqlexplorer runs ad-hoc queries against SQL Server or PostgreSQL.

Connections come from a bounded pool, results are cached by statement and
parameters, and transient failures (deadlocks, timeouts, throttling) are
retried with exponential backoff. The same service can be exposed as a
token-protected HTTP API with 'sqlexplorer serve'.

Credentials are resolved in order: --connection or connection flags, DB_*
environment variables, .streamlit/secrets.toml, AWS Secrets Manager and
finally sqlexplorer.yaml. Passwords are never accepted as flags.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration or credentials
  11 - Database unreachable, or transient failures exhausted all retries
  12 - No pooled connection available within the acquire timeout
  13 - SQL execution failed
  14 - Connection pool already shut down`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo(os.Stdout)
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
	rootCmd.PersistentFlags().String("config", ".", "Directory containing sqlexplorer.yaml")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}

func getConfigDir(cmd *cobra.Command) string {
	dir, err := cmd.Flags().GetString("config")
	if err != nil || dir == "" {
		return "."
	}
	return dir
}
