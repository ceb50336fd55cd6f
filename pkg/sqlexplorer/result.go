package sqlexplorer

import (
	"fmt"
)

// Column describes one result column.
type Column struct {
	Name string `json:"name"`
	// DatabaseType is the driver-reported type name, e.g. NVARCHAR or int4.
	DatabaseType string `json:"type,omitempty"`
}

// ResultSet is an immutable, column-major table.
// Every column holds the same number of cells. Accessors return copies.
type ResultSet struct {
	columns      []Column
	data         [][]any // data[col][row]
	rowCount     int
	rowsAffected int64
}

// NewResultSet builds a ResultSet from row-major data, as produced by a row scanner.
// Each row must have exactly one value per column.
func NewResultSet(columns []Column, rows [][]any, rowsAffected int64) (*ResultSet, error) {
	data := make([][]any, len(columns))
	for c := range data {
		data[c] = make([]any, len(rows))
	}
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", r, len(row), len(columns))
		}
		for c, v := range row {
			data[c][r] = cloneCell(v)
		}
	}
	return &ResultSet{
		columns:      append([]Column(nil), columns...),
		data:         data,
		rowCount:     len(rows),
		rowsAffected: rowsAffected,
	}, nil
}

// NewColumnarResultSet builds a ResultSet from column-major data.
// All columns must have equal length.
func NewColumnarResultSet(columns []Column, data [][]any, rowsAffected int64) (*ResultSet, error) {
	if len(data) != len(columns) {
		return nil, fmt.Errorf("got %d data columns for %d column definitions", len(data), len(columns))
	}
	rowCount := 0
	if len(data) > 0 {
		rowCount = len(data[0])
	}
	copied := make([][]any, len(data))
	for c, col := range data {
		if len(col) != rowCount {
			return nil, fmt.Errorf("column %q has %d values, expected %d", columns[c].Name, len(col), rowCount)
		}
		copied[c] = make([]any, rowCount)
		for r, v := range col {
			copied[c][r] = cloneCell(v)
		}
	}
	return &ResultSet{
		columns:      append([]Column(nil), columns...),
		data:         copied,
		rowCount:     rowCount,
		rowsAffected: rowsAffected,
	}, nil
}

// EmptyResultSet is the result of a statement that returns no rows, such as an UPDATE.
func EmptyResultSet(rowsAffected int64) *ResultSet {
	return &ResultSet{rowsAffected: rowsAffected}
}

func cloneCell(v any) any {
	if b, ok := v.([]byte); ok {
		return append([]byte(nil), b...)
	}
	return v
}

// Columns returns the column definitions.
func (rs *ResultSet) Columns() []Column {
	return append([]Column(nil), rs.columns...)
}

// ColumnNames returns the column names in order.
func (rs *ResultSet) ColumnNames() []string {
	names := make([]string, len(rs.columns))
	for i, c := range rs.columns {
		names[i] = c.Name
	}
	return names
}

// Width is the number of columns.
func (rs *ResultSet) Width() int { return len(rs.columns) }

// Len is the number of rows.
func (rs *ResultSet) Len() int { return rs.rowCount }

// RowsAffected is the driver-reported affected row count, or the row count for SELECTs.
func (rs *ResultSet) RowsAffected() int64 { return rs.rowsAffected }

// Column returns a copy of column i's cells.
func (rs *ResultSet) Column(i int) []any {
	if i < 0 || i >= len(rs.data) {
		return nil
	}
	out := make([]any, rs.rowCount)
	for r, v := range rs.data[i] {
		out[r] = cloneCell(v)
	}
	return out
}

// ColumnByName returns the first column with the given name.
func (rs *ResultSet) ColumnByName(name string) ([]any, bool) {
	for i, c := range rs.columns {
		if c.Name == name {
			return rs.Column(i), true
		}
	}
	return nil, false
}

// Value returns a single cell, or nil when out of range.
func (rs *ResultSet) Value(row, col int) any {
	if col < 0 || col >= len(rs.data) || row < 0 || row >= rs.rowCount {
		return nil
	}
	return cloneCell(rs.data[col][row])
}

// Row returns a copy of row r.
func (rs *ResultSet) Row(r int) []any {
	if r < 0 || r >= rs.rowCount {
		return nil
	}
	out := make([]any, len(rs.data))
	for c := range rs.data {
		out[c] = cloneCell(rs.data[c][r])
	}
	return out
}

// Rows returns the table in row-major order.
func (rs *ResultSet) Rows() [][]any {
	out := make([][]any, rs.rowCount)
	for r := range out {
		out[r] = rs.Row(r)
	}
	return out
}
