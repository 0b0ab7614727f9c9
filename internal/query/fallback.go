package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/llm"
)

const fallbackDatasetQuery = `SELECT
	invoices.invoice_number,
	invoices.reference_number,
	invoices.customer_name,
	invoices.email,
	invoices.invoice_date,
	invoices.total,
	invoice_items.description,
	invoice_items.quantity,
	invoice_items.rate
FROM invoices
LEFT JOIN invoice_items ON invoices.id = invoice_items.invoice_id
WHERE invoices.user_id = ?`

const fallbackInstruction = `You are a financial analyst AI.
You MUST answer the user's question using the raw invoice data provided.

Rules:
- If the user asks for TOTAL REVENUE, sum invoices.total once per invoice.
- If the user asks about a customer, filter by customer_name.
- If a date is provided, filter by invoice_date.
- If item details are needed, use quantity * rate.
- If the question is incomplete, interpret it logically and answer.
- Never mention SQL. Only give the final answer.`

// FallbackReasoner answers a question directly from every row the user owns
type FallbackReasoner struct {
	completer   llm.Completer
	db          *sql.DB
	temperature float64
	timeout     time.Duration
}

// NewFallbackReasoner creates a new FallbackReasoner. timeout bounds the dataset read,
// zero means no limit.
func NewFallbackReasoner(completer llm.Completer, db *sql.DB, temperature float64, timeout time.Duration) *FallbackReasoner {
	return &FallbackReasoner{
		completer:   completer,
		db:          db,
		temperature: temperature,
		timeout:     timeout,
	}
}

// Reason loads the user's full dataset and asks the model to answer from it. A failed
// read becomes the answer text rather than an error.
func (f *FallbackReasoner) Reason(ctx context.Context, question string, userID int64) (string, error) {
	data, err := f.loadDataset(ctx, userID)
	if err != nil {
		return fmt.Sprintf("Database read error: %v", err), nil
	}

	messages := []llm.Message{
		llm.System(fallbackInstruction),
		llm.User(fmt.Sprintf("Question: %s\n\nHere is ALL raw DB data:\n%s\n\nGive final answer:", question, data)),
	}

	answer, err := f.completer.Complete(ctx, messages, f.temperature)
	if err != nil {
		return "", fmt.Errorf("reasoning over raw data: %w", err)
	}
	return answer, nil
}

// loadDataset renders every joined row for the user, one tuple per line
func (f *FallbackReasoner) loadDataset(ctx context.Context, userID int64) (string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	rows, err := f.db.QueryContext(ctx, fallbackDatasetQuery, userID)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var (
			invoiceNumber, reference, customer, email, date sql.NullString
			total                                           sql.NullFloat64
			description                                     sql.NullString
			quantity, rate                                  sql.NullFloat64
		)
		if err := rows.Scan(&invoiceNumber, &reference, &customer, &email, &date, &total, &description, &quantity, &rate); err != nil {
			return "", err
		}
		lines = append(lines, fmt.Sprintf("(%s, %s, %s, %s, %s, %s, %s, %s, %s)",
			quoteNull(invoiceNumber), quoteNull(reference), quoteNull(customer), quoteNull(email), quoteNull(date),
			floatNull(total), quoteNull(description), floatNull(quantity), floatNull(rate)))
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	if len(lines) == 0 {
		return "(no invoices)", nil
	}
	return strings.Join(lines, "\n"), nil
}

func quoteNull(s sql.NullString) string {
	if !s.Valid {
		return "NULL"
	}
	return fmt.Sprintf("%q", s.String)
}

func floatNull(f sql.NullFloat64) string {
	if !f.Valid {
		return "NULL"
	}
	return fmt.Sprintf("%g", f.Float64)
}
