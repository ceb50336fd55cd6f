package params

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the accepted form of date: parameters.
const DateLayout = "2006-01-02"

// ParseTyped converts "type:value" strings into positional query parameters.
//
// Example:
//
//	args, err := ParseTyped([]string{"int:5", "str:abc", "null:"})
//	// Returns: []any{int64(5), "abc", nil}
func ParseTyped(specs []string) ([]any, error) {
	result := make([]any, 0, len(specs))

	for i, spec := range specs {
		v, err := Parse(spec)
		if err != nil {
			return nil, fmt.Errorf("parameter %d (@p%d): %w", i+1, i+1, err)
		}
		result = append(result, v)
	}

	return result, nil
}

// Parse converts a single "type:value" string.
func Parse(spec string) (any, error) {
	kind, value, ok := strings.Cut(spec, ":")
	if !ok {
		return spec, nil
	}

	switch strings.ToLower(kind) {
	case "str", "string":
		return value, nil
	case "int", "int64":
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer (example: --param int:42)", value)
		}
		return n, nil
	case "float":
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number (example: --param float:1.5)", value)
		}
		return f, nil
	case "decimal":
		d, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%q is not a decimal (example: --param decimal:19.99)", value)
		}
		return d, nil
	case "bool":
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean (example: --param bool:true)", value)
		}
		return b, nil
	case "date":
		t, err := time.Parse(DateLayout, strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%q is not a date (example: --param date:2024-01-31)", value)
		}
		return t, nil
	case "time", "datetime":
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%q is not an RFC 3339 time (example: --param time:2024-01-31T12:00:00Z)", value)
		}
		return t, nil
	case "uuid":
		u, err := uuid.Parse(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%q is not a UUID", value)
		}
		return u.String(), nil
	case "null":
		if value != "" {
			return nil, fmt.Errorf("null takes no value, got %q (use --param null:)", value)
		}
		return nil, nil
	default:
		// "http://x" and similar values are plain strings, not unknown types
		if strings.HasPrefix(value, "//") || strings.ContainsAny(kind, " /.@") {
			return spec, nil
		}
		return nil, fmt.Errorf("unknown parameter type %q (supported: int, float, decimal, bool, str, date, time, uuid, null)", kind)
	}
}
