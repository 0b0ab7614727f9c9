package query

import (
	"strings"
	"unicode"
)

// clauseIndexes returns the byte offsets where the keyword sequence words starts at
// the top level of sql: outside string literals, quoted identifiers, comments and
// parentheses. Words may be separated by any amount of whitespace and match case-insensitively.
func clauseIndexes(sql string, words ...string) []int {
	var (
		out   []int
		depth int
	)
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(sql, i, c)
			continue
		case c == '[':
			i = skipQuoted(sql, i, ']')
			continue
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			if nl := strings.IndexByte(sql[i:], '\n'); nl >= 0 {
				i += nl
			} else {
				i = len(sql)
			}
			continue
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			if end := strings.Index(sql[i+2:], "*/"); end >= 0 {
				i += end + 3
			} else {
				i = len(sql)
			}
			continue
		case c == '(':
			depth++
			continue
		case c == ')':
			if depth > 0 {
				depth--
			}
			continue
		}

		if depth != 0 || (i > 0 && isIdentByte(sql[i-1])) {
			continue
		}
		if matchWords(sql, i, words) >= 0 {
			out = append(out, i)
		}
	}
	return out
}

// skipQuoted returns the index of the closing quote for the literal opened at start.
// A doubled closing quote is an escaped quote.
func skipQuoted(sql string, start int, closing byte) int {
	for j := start + 1; j < len(sql); j++ {
		if sql[j] != closing {
			continue
		}
		if closing != ']' && j+1 < len(sql) && sql[j+1] == closing {
			j++
			continue
		}
		return j
	}
	return len(sql)
}

// matchWords reports the end offset of words matched at position i, or -1
func matchWords(sql string, i int, words []string) int {
	j := i
	for k, w := range words {
		if k > 0 {
			start := j
			for j < len(sql) && unicode.IsSpace(rune(sql[j])) {
				j++
			}
			if j == start {
				return -1
			}
		}
		if len(sql)-j < len(w) || !strings.EqualFold(sql[j:j+len(w)], w) {
			return -1
		}
		j += len(w)
	}
	if j < len(sql) && isIdentByte(sql[j]) {
		return -1
	}
	return j
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= 0x80
}

// firstClause returns the smallest top-level offset of any of the given clauses, or -1
func firstClause(sql string, clauses ...[]string) int {
	first := -1
	for _, words := range clauses {
		idx := clauseIndexes(sql, words...)
		if len(idx) > 0 && (first < 0 || idx[0] < first) {
			first = idx[0]
		}
	}
	return first
}

// lastClause returns the largest top-level offset of the clause, or -1
func lastClause(sql string, words ...string) int {
	idx := clauseIndexes(sql, words...)
	if len(idx) == 0 {
		return -1
	}
	return idx[len(idx)-1]
}

// trimStatement strips surrounding whitespace and trailing semicolons
func trimStatement(sql string) string {
	for {
		trimmed := strings.TrimSuffix(strings.TrimSpace(sql), ";")
		if trimmed == sql {
			return sql
		}
		sql = trimmed
	}
}

// stripComments replaces top-level comments with a single space so appended clauses
// cannot end up commented out
func stripComments(sql string) string {
	var b strings.Builder
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			closing := c
			if c == '[' {
				closing = ']'
			}
			end := skipQuoted(sql, i, closing)
			if end >= len(sql) {
				end = len(sql) - 1
			}
			b.WriteString(sql[i : end+1])
			i = end
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			nl := strings.IndexByte(sql[i:], '\n')
			if nl < 0 {
				i = len(sql)
			} else {
				i += nl
			}
			b.WriteByte(' ')
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = len(sql)
			} else {
				i += end + 3
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
