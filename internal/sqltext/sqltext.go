// Package sqltext scans statement text without parsing it. It understands
// comments (line and nested block), quoted strings and identifiers for both
// PostgreSQL and SQL Server, which is enough to find leading keywords.
package sqltext

import (
	"strings"
	"unicode"
)

type scanState int

const (
	stateNormal scanState = iota
	stateLineComment
	stateBlockComment
	stateQuoted
	stateDollarQuote
)

// StripComments removes comments and keeps literals untouched. Newlines that
// terminate line comments are preserved.
func StripComments(sql string) string {
	return scan(sql, false)
}

// Mask removes comments and replaces the contents of string literals and
// quoted identifiers with spaces, so keyword searches only see SQL tokens.
// Quote characters are kept.
func Mask(sql string) string {
	return scan(sql, true)
}

// LeadingKeyword returns the first token of sql in upper case, ignoring
// comments. It returns "" for a statement that is empty or only comments.
func LeadingKeyword(sql string) string {
	fields := strings.FieldsFunc(Mask(sql), func(r rune) bool {
		return unicode.IsSpace(r) || r == '(' || r == ';'
	})
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// ContainsKeyword reports whether word appears as a standalone token outside
// comments and literals. The comparison is case-insensitive.
func ContainsKeyword(sql, word string) bool {
	word = strings.ToUpper(word)
	for _, tok := range strings.FieldsFunc(strings.ToUpper(Mask(sql)), isSeparator) {
		if tok == word {
			return true
		}
	}
	return false
}

var (
	readKeywords = map[string]bool{
		"SELECT": true, "WITH": true, "VALUES": true, "TABLE": true, "SHOW": true,
	}
	// SELECT ... INTO creates a table; EXEC and CALL may do anything.
	writeKeywords = []string{
		"INSERT", "UPDATE", "DELETE", "MERGE", "INTO", "CREATE", "ALTER", "DROP",
		"TRUNCATE", "GRANT", "REVOKE", "EXEC", "EXECUTE", "CALL",
	}
)

// ReadOnly reports whether sql is a query that cannot change data: it starts
// with a read keyword and no write keyword appears anywhere outside comments
// and literals. Batches, CTEs that modify rows and SELECT ... FOR UPDATE are
// not read-only.
func ReadOnly(sql string) bool {
	if !readKeywords[LeadingKeyword(sql)] {
		return false
	}
	tokens := strings.FieldsFunc(strings.ToUpper(Mask(sql)), isSeparator)
	for _, tok := range tokens {
		for _, w := range writeKeywords {
			if tok == w {
				return false
			}
		}
	}
	return true
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '@' && r != '#' && r != '$'
}

func scan(sql string, mask bool) string {
	if sql == "" {
		return ""
	}

	var out strings.Builder
	out.Grow(len(sql))

	runes := []rune(sql)
	state := stateNormal
	depth := 0
	var closing rune
	var tag string

	body := func(r rune) {
		if mask && r != '\n' && r != '\r' {
			out.WriteRune(' ')
			return
		}
		out.WriteRune(r)
	}

	for i := 0; i < len(runes); {
		r := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateNormal:
			switch {
			case r == '-' && next == '-':
				state = stateLineComment
				i += 2
			case r == '/' && next == '*':
				state = stateBlockComment
				depth = 1
				i += 2
			case r == '\'' || r == '"':
				state, closing = stateQuoted, r
				out.WriteRune(r)
				i++
			case r == '[':
				state, closing = stateQuoted, ']'
				out.WriteRune(r)
				i++
			case r == '$':
				if t := dollarTag(runes, i); t != "" {
					state, tag = stateDollarQuote, t
					out.WriteString(t)
					i += len([]rune(t))
				} else {
					out.WriteRune(r)
					i++
				}
			default:
				out.WriteRune(r)
				i++
			}

		case stateLineComment:
			if r == '\n' || (r == '\r' && next == '\n') {
				state = stateNormal
				continue
			}
			i++

		case stateBlockComment:
			switch {
			case r == '/' && next == '*':
				depth++
				i += 2
			case r == '*' && next == '/':
				depth--
				i += 2
				if depth == 0 {
					state = stateNormal
					// Keep adjacent tokens apart: "SELECT/**/1".
					out.WriteRune(' ')
				}
			default:
				i++
			}

		case stateQuoted:
			if r == closing {
				if next == closing {
					body(r)
					body(next)
					i += 2
					continue
				}
				out.WriteRune(r)
				state = stateNormal
				i++
				continue
			}
			body(r)
			i++

		case stateDollarQuote:
			if hasPrefix(runes, i, tag) {
				out.WriteString(tag)
				i += len([]rune(tag))
				state, tag = stateNormal, ""
				continue
			}
			body(r)
			i++
		}
	}
	return out.String()
}

// dollarTag returns "$$" or "$name$" starting at i, or "" when runes[i:] does
// not open a dollar-quoted string. Positional parameters ($1) are not tags.
func dollarTag(runes []rune, i int) string {
	for j := i + 1; j < len(runes); j++ {
		r := runes[j]
		if r == '$' {
			return string(runes[i : j+1])
		}
		if j == i+1 && !unicode.IsLetter(r) && r != '_' {
			return ""
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return ""
		}
	}
	return ""
}

func hasPrefix(runes []rune, i int, tag string) bool {
	t := []rune(tag)
	if i+len(t) > len(runes) {
		return false
	}
	for k, r := range t {
		if runes[i+k] != r {
			return false
		}
	}
	return true
}
