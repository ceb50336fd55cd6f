package export

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is the text form of time cells in CSV, JSON and terminal output.
const TimeLayout = time.RFC3339Nano

// FormatCell renders one result cell as text. nil renders empty.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return "0x" + hex.EncodeToString(x)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case decimal.Decimal:
		return x.String()
	case time.Time:
		return x.Format(TimeLayout)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// jsonCell maps a cell onto a value encoding/json renders canonically.
// Decimals become strings so no precision is lost.
func jsonCell(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int64, int, float64:
		return x
	case []byte, decimal.Decimal, time.Time:
		return FormatCell(x)
	case fmt.Stringer:
		return x.String()
	}
	return v
}
