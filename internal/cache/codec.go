package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// wireResult is the JSON form of a cached ResultSet. Cells carry a type tag so
// that decimals, timestamps and binary values survive the round trip.
type wireResult struct {
	Columns      []sqlexplorer.Column `json:"columns"`
	Data         [][]wireCell         `json:"data"` // column-major
	RowsAffected int64                `json:"rows_affected"`
	ExpiresAt    time.Time            `json:"expires_at,omitempty"`
}

type wireCell struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v,omitempty"`
}

func encodeResult(rs *sqlexplorer.ResultSet, expiresAt time.Time) ([]byte, error) {
	w := wireResult{
		Columns:      rs.Columns(),
		Data:         make([][]wireCell, rs.Width()),
		RowsAffected: rs.RowsAffected(),
		ExpiresAt:    expiresAt,
	}
	for c := 0; c < rs.Width(); c++ {
		col := rs.Column(c)
		w.Data[c] = make([]wireCell, len(col))
		for r, v := range col {
			cell, err := encodeCell(v)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", w.Columns[c].Name, r, err)
			}
			w.Data[c][r] = cell
		}
	}
	return json.Marshal(w)
}

func decodeResult(data []byte) (*sqlexplorer.ResultSet, time.Time, error) {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshal cached result: %w", err)
	}
	cols := make([][]any, len(w.Data))
	for c, cells := range w.Data {
		cols[c] = make([]any, len(cells))
		for r, cell := range cells {
			v, err := decodeCell(cell)
			if err != nil {
				return nil, time.Time{}, err
			}
			cols[c][r] = v
		}
	}
	rs, err := sqlexplorer.NewColumnarResultSet(w.Columns, cols, w.RowsAffected)
	if err != nil {
		return nil, time.Time{}, err
	}
	return rs, w.ExpiresAt, nil
}

func encodeCell(v any) (wireCell, error) {
	var tag string
	var payload any
	switch x := v.(type) {
	case nil:
		return wireCell{T: "null"}, nil
	case string:
		tag, payload = "str", x
	case []byte:
		tag, payload = "bytes", x
	case bool:
		tag, payload = "bool", x
	case int64:
		tag, payload = "int", x
	case int:
		tag, payload = "int", int64(x)
	case int32:
		tag, payload = "int", int64(x)
	case int16:
		tag, payload = "int", int64(x)
	case int8:
		tag, payload = "int", int64(x)
	case uint8:
		tag, payload = "int", int64(x)
	case float64:
		tag, payload = "float", x
	case float32:
		tag, payload = "float", float64(x)
	case time.Time:
		tag, payload = "time", x.Format(time.RFC3339Nano)
	case decimal.Decimal:
		tag, payload = "decimal", x.String()
	case fmt.Stringer:
		tag, payload = "str", x.String()
	default:
		return wireCell{}, fmt.Errorf("unsupported cell type %T", v)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return wireCell{}, err
	}
	return wireCell{T: tag, V: raw}, nil
}

func decodeCell(c wireCell) (any, error) {
	switch c.T {
	case "null":
		return nil, nil
	case "str":
		var s string
		err := json.Unmarshal(c.V, &s)
		return s, err
	case "bytes":
		var b []byte
		err := json.Unmarshal(c.V, &b)
		return b, err
	case "bool":
		var b bool
		err := json.Unmarshal(c.V, &b)
		return b, err
	case "int":
		var i int64
		err := json.Unmarshal(c.V, &i)
		return i, err
	case "float":
		var f float64
		err := json.Unmarshal(c.V, &f)
		return f, err
	case "time":
		var s string
		if err := json.Unmarshal(c.V, &s); err != nil {
			return nil, err
		}
		return time.Parse(time.RFC3339Nano, s)
	case "decimal":
		var s string
		if err := json.Unmarshal(c.V, &s); err != nil {
			return nil, err
		}
		return decimal.NewFromString(s)
	}
	return nil, fmt.Errorf("unknown cell tag %q", c.T)
}
