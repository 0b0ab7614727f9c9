package query

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/llm"
)

const synthesisInstruction = `You are an intelligent SQL generator.

Your task:
1. Analyze the user's question.
2. Understand the intent.
3. Generate a complete, correct, and executable SQLite SELECT query.
4. If the user question is incomplete or unclear, repair it logically.

STRICT SQL RULES:
- Output ONLY SQL. No explanation. No JSON. No natural language. No markdown.
- Output exactly one SELECT statement.
- The query must NEVER be incomplete.
- NEVER end with WHERE, AND, OR, or any incomplete condition.
- NEVER generate syntax errors.

TABLE RULES:
- Always use this table structure:
    FROM invoices
    LEFT JOIN invoice_items ON invoices.id = invoice_items.invoice_id
- Do not alias the tables.
- For revenue totals use SUM(invoices.total).
- For line amounts use invoice_items.quantity * invoice_items.rate.

LOGIC RULES:
- If the user mentions a date, filter with:
    invoices.invoice_date = 'YYYY-MM-DD'
- If the user mentions a customer name, filter with:
    invoices.customer_name LIKE '%name%'
- If the user mentions an invoice number, filter with:
    invoices.invoice_number = 'value'
- If the user mentions a reference number, filter with:
    invoices.reference_number = 'value'
- If the user does not specify any filter, return a valid full SELECT query WITHOUT a WHERE clause.
- If the user gives an incomplete filter (e.g. 'invoice of', 'customer is', 'date is'), complete it logically.
- If the user gives only a date like '2012-11-23', assume invoice_date.`

var (
	languageTags   = map[string]bool{"sql": true, "sqlite": true, "query": true}
	fromInvoicesRe = regexp.MustCompile(`(?i)\bFROM\s+invoices\b`)
	joinRe         = regexp.MustCompile(`(?i)\bJOIN\b`)
)

// Synthesizer asks the model to translate a question into a single SELECT statement
type Synthesizer struct {
	completer   llm.Completer
	temperature float64
}

// NewSynthesizer creates a new Synthesizer
func NewSynthesizer(completer llm.Completer, temperature float64) *Synthesizer {
	return &Synthesizer{
		completer:   completer,
		temperature: temperature,
	}
}

// Synthesize returns a best-effort SQL string for question. Malformed output is not an
// error here; only a failed model call is.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, schema string) (string, error) {
	messages := []llm.Message{
		llm.System(synthesisInstruction),
		llm.User(fmt.Sprintf("Schema:\n%s\n\nQuestion:\n%s\n\nSQL only:", schema, question)),
	}

	raw, err := s.completer.Complete(ctx, messages, s.temperature)
	if err != nil {
		return "", fmt.Errorf("generating sql: %w", err)
	}

	return EnsureJoin(CleanSQL(raw)), nil
}

// CleanSQL removes formatting artifacts from model output: code fences and a bare
// language tag, a JSON {"sql": ...} wrapper, and trailing semicolons.
func CleanSQL(raw string) string {
	cleaned := strings.TrimSpace(raw)

	if strings.HasPrefix(cleaned, "```") {
		lines := strings.Split(strings.Trim(cleaned, "`"), "\n")
		if len(lines) > 0 && languageTags[strings.ToLower(strings.TrimSpace(lines[0]))] {
			lines = lines[1:]
		}
		cleaned = strings.TrimSpace(strings.Join(lines, "\n"))
	}

	var wrapped map[string]any
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err == nil {
		if sql, ok := wrapped["sql"].(string); ok {
			cleaned = sql
		}
	}

	return trimStatement(cleaned)
}

// EnsureJoin inserts the canonical line-item join right after FROM invoices when the
// statement has no JOIN at all
func EnsureJoin(sql string) string {
	if joinRe.MatchString(sql) {
		return sql
	}
	loc := fromInvoicesRe.FindStringIndex(sql)
	if loc == nil {
		return sql
	}
	return sql[:loc[1]] + " " + joinClause + sql[loc[1]:]
}
