package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fingerprint derives the cache key of a statement and its ordered parameters.
// Surrounding whitespace of the statement is ignored; parameter order, type
// family and value all matter. Integers of any width hash alike, as the
// driver binds them alike.
func Fingerprint(statement string, params []any) string {
	h := sha256.New()
	writeField(h, "stmt", strings.TrimSpace(statement))
	for i, p := range params {
		tag, val := encodeParam(p)
		writeField(h, strconv.Itoa(i)+":"+tag, val)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// writeField length-prefixes both parts so adjacent fields cannot run together.
func writeField(h hash.Hash, tag, value string) {
	fmt.Fprintf(h, "%d:%s|%d:%s\n", len(tag), tag, len(value), value)
}

func encodeParam(p any) (string, string) {
	switch v := p.(type) {
	case nil:
		return "null", ""
	case string:
		return "str", v
	case []byte:
		return "bytes", hex.EncodeToString(v)
	case bool:
		return "bool", strconv.FormatBool(v)
	case int:
		return "int", strconv.FormatInt(int64(v), 10)
	case int8:
		return "int", strconv.FormatInt(int64(v), 10)
	case int16:
		return "int", strconv.FormatInt(int64(v), 10)
	case int32:
		return "int", strconv.FormatInt(int64(v), 10)
	case int64:
		return "int", strconv.FormatInt(v, 10)
	case uint:
		return "uint", strconv.FormatUint(uint64(v), 10)
	case uint8:
		return "uint", strconv.FormatUint(uint64(v), 10)
	case uint16:
		return "uint", strconv.FormatUint(uint64(v), 10)
	case uint32:
		return "uint", strconv.FormatUint(uint64(v), 10)
	case uint64:
		return "uint", strconv.FormatUint(v, 10)
	case float32:
		return "float", strconv.FormatUint(math.Float64bits(float64(v)), 16)
	case float64:
		return "float", strconv.FormatUint(math.Float64bits(v), 16)
	case time.Time:
		return "time", v.UTC().Format(time.RFC3339Nano)
	case time.Duration:
		return "duration", strconv.FormatInt(int64(v), 10)
	case decimal.Decimal:
		return "decimal", v.String()
	case uuid.UUID:
		return "uuid", v.String()
	case fmt.Stringer:
		return fmt.Sprintf("%T", v), v.String()
	default:
		return fmt.Sprintf("%T", v), fmt.Sprintf("%#v", v)
	}
}
