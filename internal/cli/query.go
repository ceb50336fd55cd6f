package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/sqlexplorer/internal/params"
	"github.com/vvka-141/sqlexplorer/internal/query"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// outputFlags are shared by every command that prints a result set.
type outputFlags struct {
	format string
	output string
}

func addOutputFlags(cmd *cobra.Command, f *outputFlags) {
	cmd.Flags().StringVarP(&f.format, "format", "f", FormatTable, "Output format: table, csv, xlsx or json")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write the result to a file instead of stdout")
}

var queryFlags struct {
	conn    connectionFlags
	out     outputFlags
	params  []string
	noCache bool
	ttl     time.Duration
}

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run a SQL statement and print the result",
	Long: `Run one SQL statement through the pooled, cached, retrying query service.

Parameters are positional and typed: the first --param binds @p1 on SQL Server
($1 on PostgreSQL), the second @p2, and so on.

Examples:
  sqlexplorer query "SELECT TOP 10 * FROM dbo.Orders"
  sqlexplorer query "SELECT * FROM dbo.Orders WHERE Id = @p1" --param int:42
  sqlexplorer query "SELECT * FROM sales" --format xlsx --output sales.xlsx
  sqlexplorer query "SELECT * FROM orders WHERE region = $1" --driver postgres -S db.local -d shop --param str:emea`,
	Args: RequireStatement,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	addConnectionFlags(queryCmd, &queryFlags.conn)
	addOutputFlags(queryCmd, &queryFlags.out)
	queryCmd.Flags().StringArrayVarP(&queryFlags.params, "param", "p", nil,
		"Positional parameter as type:value (int, float, decimal, bool, str, date, time, uuid, null). Repeatable")
	queryCmd.Flags().BoolVar(&queryFlags.noCache, "no-cache", false, "Bypass the result cache on read (the fresh result is still cached)")
	queryCmd.Flags().DurationVar(&queryFlags.ttl, "ttl", 0, "Cache lifetime for this result (default from config, 10m)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	if err := validateFormat(queryFlags.out.format); err != nil {
		return err
	}
	if queryFlags.ttl < 0 {
		return fmt.Errorf("invalid argument %q for --ttl: cannot be negative", queryFlags.ttl)
	}
	bound, err := params.ParseTyped(queryFlags.params)
	if err != nil {
		return fmt.Errorf("invalid argument for --param: %w", err)
	}

	req := sqlexplorer.QueryRequest{
		Statement:    args[0],
		Params:       bound,
		TTL:          queryFlags.ttl,
		ForceRefresh: queryFlags.noCache,
	}
	return withApp(cmd, &queryFlags.conn, func(ctx context.Context, a *app) (*query.Outcome, error) {
		return a.svc.Execute(ctx, req)
	}, queryFlags.out, false)
}

// withApp builds the query service, runs fn and prints its result.
func withApp(cmd *cobra.Command, conn *connectionFlags, fn func(context.Context, *app) (*query.Outcome, error), out outputFlags, vertical bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	verbose := getVerboseFlag(cmd)

	a, err := newApp(ctx, getConfigDir(cmd), verbose, conn, appOptions{stderr: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			a.logger.Error("Closing connection pool: %v", err)
		}
	}()

	outcome, err := fn(ctx, a)
	if err != nil {
		return err
	}
	if verbose {
		a.logger.Verbose("Fingerprint %s", outcome.Fingerprint)
	}

	rs := outcome.Result
	if vertical && out.format == FormatTable {
		if rs, err = transpose(rs); err != nil {
			return err
		}
	}
	if err := emit(cmd.OutOrStdout(), out, rs); err != nil {
		return err
	}
	printSummary(cmd.ErrOrStderr(), outcome)
	return nil
}

func emit(stdout io.Writer, out outputFlags, rs *sqlexplorer.ResultSet) error {
	if out.output == "" {
		return writeResult(stdout, rs, out.format, isTerminal(stdout))
	}

	f, err := os.Create(out.output)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := writeResult(f, rs, out.format, false); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, o *query.Outcome) {
	rows := o.Result.Len()
	noun := "rows"
	if rows == 1 {
		noun = "row"
	}
	source := fmt.Sprintf("%d %s", o.Attempts, pluralize(o.Attempts, "attempt"))
	if o.Cached {
		source = "cached"
	}
	fmt.Fprintf(w, "(%d %s, %d affected, %v, %s)\n", rows, noun, o.Result.RowsAffected(), o.Elapsed.Round(time.Millisecond), source)
}

func pluralize(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
