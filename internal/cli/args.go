package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// RequireStatement validates that exactly one non-blank SQL argument is provided.
// Returns a helpful error message with usage and examples if missing or too many.
func RequireStatement(cmd *cobra.Command, args []string) error {
	if len(args) < 1 || strings.TrimSpace(args[0]) == "" {
		return fmt.Errorf(`missing required argument: <sql>

Usage: %s

Example:
  %s "SELECT TOP 10 * FROM dbo.Orders WHERE Region = @p1" --param str:EMEA`, cmd.UseLine(), cmd.CommandPath())
	}
	if len(args) > 1 {
		return fmt.Errorf("accepts 1 arg(s), received %d (quote the statement)", len(args))
	}
	return nil
}
