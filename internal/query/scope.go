package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultRowCap bounds every executed statement
const DefaultRowCap = 450

var limitExprRe = regexp.MustCompile(`(?is)^\s*(\d+)\s*(?:(?:OFFSET\s+(\d+))|(?:,\s*(\d+)))?\s*$`)

// ScopeToUser rewrites a synthesized SELECT so that it can only see rows owned by
// userID and returns at most rowCap rows.
//
// The statement is prefixed with CTEs shadowing both tables with the user's rows, the
// ownership predicate is added to the top-level WHERE (ahead of GROUP BY, HAVING and
// ORDER BY), and any LIMIT is replaced by one no larger than rowCap.
func ScopeToUser(sql string, userID int64, rowCap int) string {
	if rowCap <= 0 {
		rowCap = DefaultRowCap
	}
	stmt := trimStatement(stripComments(sql))

	limit := fmt.Sprintf("LIMIT %d", rowCap)
	if idx := lastClause(stmt, "LIMIT"); idx >= 0 {
		limit = capLimit(stmt[idx+len("LIMIT"):], rowCap)
		stmt = strings.TrimSpace(stmt[:idx])
	}

	head, tail := stmt, ""
	if idx := firstClause(stmt, []string{"GROUP", "BY"}, []string{"HAVING"}, []string{"ORDER", "BY"}); idx >= 0 {
		head, tail = strings.TrimSpace(stmt[:idx]), " "+strings.TrimSpace(stmt[idx:])
	}

	predicate := fmt.Sprintf("%s = %d", ownershipColumn, userID)
	if idx := firstClause(head, []string{"WHERE"}); idx >= 0 {
		cond := strings.TrimSpace(head[idx+len("WHERE"):])
		head = fmt.Sprintf("%s WHERE (%s) AND %s", strings.TrimSpace(head[:idx]), cond, predicate)
	} else {
		head = fmt.Sprintf("%s WHERE %s", head, predicate)
	}

	return shadowTables(userID) + head + tail + " " + limit
}

// shadowTables returns a WITH prefix that replaces both tables with the user's rows
func shadowTables(userID int64) string {
	return fmt.Sprintf("WITH invoices AS (SELECT * FROM main.invoices WHERE user_id = %d), "+
		"invoice_items AS (SELECT * FROM main.invoice_items WHERE invoice_id IN (SELECT id FROM invoices)) ",
		userID)
}

// capLimit parses the expression following LIMIT and returns a LIMIT clause clamped
// to rowCap. Offsets are kept; anything unparseable becomes the plain cap.
func capLimit(expr string, rowCap int) string {
	m := limitExprRe.FindStringSubmatch(expr)
	if m == nil {
		return fmt.Sprintf("LIMIT %d", rowCap)
	}

	limitText, offsetText := m[1], m[2]
	if m[3] != "" {
		// LIMIT offset, count
		limitText, offsetText = m[3], m[1]
	}

	n, err := strconv.Atoi(limitText)
	if err != nil || n > rowCap {
		n = rowCap
	}
	if offsetText == "" {
		return fmt.Sprintf("LIMIT %d", n)
	}
	return fmt.Sprintf("LIMIT %d OFFSET %s", n, offsetText)
}
