// Package export writes result sets as CSV, XLSX or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Query Results"

// WriteCSV writes a header row followed by one record per result row.
func WriteCSV(w io.Writer, rs *sqlexplorer.ResultSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rs.ColumnNames()); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	record := make([]string, rs.Width())
	for r := 0; r < rs.Len(); r++ {
		for c := range record {
			record[c] = FormatCell(rs.Value(r, c))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", r+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes one worksheet with a bold header row. Numbers, booleans and
// times keep their native cell types; decimals are written as text.
func WriteXLSX(w io.Writer, rs *sqlexplorer.ResultSet) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(SheetName)
	if err != nil {
		return fmt.Errorf("failed to add worksheet: %w", err)
	}

	header := sheet.AddRow()
	for _, name := range rs.ColumnNames() {
		cell := header.AddCell()
		cell.SetString(name)
		cell.GetStyle().Font.Bold = true
	}

	for r := 0; r < rs.Len(); r++ {
		row := sheet.AddRow()
		for c := 0; c < rs.Width(); c++ {
			setXLSXCell(row.AddCell(), rs.Value(r, c))
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

func setXLSXCell(cell *xlsx.Cell, v any) {
	switch x := v.(type) {
	case nil:
	case int64:
		cell.SetInt64(x)
	case int:
		cell.SetInt(x)
	case float64:
		cell.SetFloat(x)
	case bool:
		cell.SetBool(x)
	case time.Time:
		cell.SetDateTime(x)
	case decimal.Decimal:
		cell.SetString(x.String())
	default:
		cell.SetString(FormatCell(v))
	}
}

// Table is the JSON document written by WriteJSON. Data is row-major.
type Table struct {
	Columns      []string `json:"columns"`
	Data         [][]any  `json:"data"`
	RowsAffected int64    `json:"rows_affected"`
}

// NewTable converts rs into its JSON form.
func NewTable(rs *sqlexplorer.ResultSet) Table {
	t := Table{
		Columns:      rs.ColumnNames(),
		Data:         make([][]any, rs.Len()),
		RowsAffected: rs.RowsAffected(),
	}
	for r := range t.Data {
		row := make([]any, rs.Width())
		for c := range row {
			row[c] = jsonCell(rs.Value(r, c))
		}
		t.Data[r] = row
	}
	return t
}

// WriteJSON writes NewTable(rs) as a single JSON object.
func WriteJSON(w io.Writer, rs *sqlexplorer.ResultSet) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewTable(rs)); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	return nil
}
