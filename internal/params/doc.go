// Package params turns command-line query parameters into typed values.
//
// Each --param flag is written as type:value and is bound positionally, so
// the first flag becomes @p1 (SQL Server) or $1 (PostgreSQL):
//
//	sqlexplorer query "SELECT * FROM orders WHERE id = @p1 AND region = @p2" \
//	    --param int:42 --param str:emea
//
// # Types
//
//   - int, int64:      signed 64-bit integer
//   - float:           float64
//   - decimal:         exact decimal (shopspring/decimal)
//   - bool:            true/false/1/0
//   - str, string:     the raw text, colons included
//   - date:            2006-01-02
//   - time, datetime:  RFC 3339
//   - uuid:            canonical UUID, bound as its string form
//   - null:            SQL NULL; the value part must be empty
//
// A value without a type prefix is a string. Use str: to pass a string that
// itself contains a colon.
//
// All functions are safe for concurrent use.
package params
