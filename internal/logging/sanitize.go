package logging

import (
	"strings"

	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// Statement prepares SQL text for a log line: runs of whitespace collapse to
// one space and the result is cut to sqlexplorer.MaxLoggedStatementLength
// characters, with "..." appended when cut.
func Statement(sql string) string {
	s := strings.Join(strings.Fields(sql), " ")
	r := []rune(s)
	if len(r) <= sqlexplorer.MaxLoggedStatementLength {
		return s
	}
	return string(r[:sqlexplorer.MaxLoggedStatementLength]) + "..."
}
