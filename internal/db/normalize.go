package db

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/shopspring/decimal"
)

// normalizeCell converts a driver value into the small set of cell types a
// ResultSet carries: nil, string, []byte, bool, int64, float64, time.Time and
// decimal.Decimal. dbType is the driver-reported column type name.
func normalizeCell(v any, dbType string) any {
	dbType = strings.ToUpper(dbType)

	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return normalizeBytes(x, dbType)
	case string:
		if isDecimalType(dbType) {
			if d, err := decimal.NewFromString(x); err == nil {
				return d
			}
		}
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	case float64:
		if isDecimalType(dbType) {
			return decimal.NewFromFloat(x)
		}
		return x
	case int64, bool, time.Time, decimal.Decimal:
		return x
	case [16]byte:
		return uuid.UUID(x).String()
	case uuid.UUID:
		return x.String()
	case mssql.UniqueIdentifier:
		return x.String()
	case pgtype.Numeric:
		return numericToDecimal(x)
	case pgtype.Time:
		tv, _ := x.Value()
		return tv
	case pgtype.Interval:
		iv, _ := x.Value()
		return iv
	case map[string]any, []any:
		// json/jsonb decoded by pgx; kept as its text form
		if b, err := json.Marshal(x); err == nil {
			return string(b)
		}
	}
	return v
}

func normalizeBytes(b []byte, dbType string) any {
	switch {
	case dbType == "UNIQUEIDENTIFIER" && len(b) == 16:
		var u mssql.UniqueIdentifier
		if err := u.Scan(b); err == nil {
			return u.String()
		}
	case isDecimalType(dbType):
		if d, err := decimal.NewFromString(string(b)); err == nil {
			return d
		}
	case isBinaryType(dbType):
		return append([]byte(nil), b...)
	}
	return string(b)
}

func numericToDecimal(n pgtype.Numeric) any {
	if !n.Valid {
		return nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		v, _ := n.Value()
		return v
	}
	if n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func isDecimalType(t string) bool {
	switch t {
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return true
	}
	return false
}

func isBinaryType(t string) bool {
	switch t {
	case "BINARY", "VARBINARY", "IMAGE", "BYTEA", "TIMESTAMP", "ROWVERSION":
		return true
	}
	return false
}
