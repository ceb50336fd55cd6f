package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/vvka-141/sqlexplorer/internal/export"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// Output formats accepted by --format.
const (
	FormatTable = "table"
	FormatCSV   = "csv"
	FormatXLSX  = "xlsx"
	FormatJSON  = "json"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	nullStyle   = cellStyle.Foreground(lipgloss.Color("240"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func validateFormat(format string) error {
	switch format {
	case FormatTable, FormatCSV, FormatXLSX, FormatJSON:
		return nil
	}
	return fmt.Errorf("invalid argument %q for --format (supported: table, csv, xlsx, json)", format)
}

// isTerminal reports whether w is an interactive terminal that should get
// styled output. NO_COLOR turns styling off.
func isTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// writeResult renders rs in format. Table output is a bordered lipgloss
// table on a terminal and tab-separated text otherwise.
func writeResult(w io.Writer, rs *sqlexplorer.ResultSet, format string, styled bool) error {
	switch format {
	case FormatCSV:
		return export.WriteCSV(w, rs)
	case FormatXLSX:
		if styled {
			return fmt.Errorf("refusing to write xlsx to a terminal; use --output results.xlsx")
		}
		return export.WriteXLSX(w, rs)
	case FormatJSON:
		return export.WriteJSON(w, rs)
	default:
		if styled {
			return renderStyledTable(w, rs)
		}
		return renderTSV(w, rs)
	}
}

func renderStyledTable(w io.Writer, rs *sqlexplorer.ResultSet) error {
	rows := rs.Rows()
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(rs.ColumnNames()...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(rows) && col < len(rows[row]) && rows[row][col] == nil {
				return nullStyle
			}
			return cellStyle
		})
	for _, r := range rows {
		t.Row(formatRow(r, "NULL")...)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func renderTSV(w io.Writer, rs *sqlexplorer.ResultSet) error {
	if _, err := fmt.Fprintln(w, strings.Join(rs.ColumnNames(), "\t")); err != nil {
		return err
	}
	for _, r := range rs.Rows() {
		if _, err := fmt.Fprintln(w, strings.Join(formatRow(r, ""), "\t")); err != nil {
			return err
		}
	}
	return nil
}

var tsvEscaper = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

func formatRow(row []any, null string) []string {
	out := make([]string, len(row))
	for i, v := range row {
		if v == nil {
			out[i] = null
			continue
		}
		out[i] = tsvEscaper.Replace(export.FormatCell(v))
	}
	return out
}

// transpose turns a single-row result into property/value pairs, which
// reads better for wide one-row results such as database info.
func transpose(rs *sqlexplorer.ResultSet) (*sqlexplorer.ResultSet, error) {
	if rs.Len() != 1 {
		return rs, nil
	}
	cols := []sqlexplorer.Column{{Name: "property"}, {Name: "value"}}
	names := rs.ColumnNames()
	rows := make([][]any, len(names))
	for i, name := range names {
		rows[i] = []any{name, rs.Value(0, i)}
	}
	return sqlexplorer.NewResultSet(cols, rows, 1)
}
