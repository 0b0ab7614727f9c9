package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Result is the tabular output of an executed statement
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// ExecutionError reports a statement that was rejected or failed to run. It is the
// signal for the engine to switch to fallback reasoning.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("executing %q: %v", e.SQL, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// OpenReadOnly opens the invoice database in read-only, query-only mode
func OpenReadOnly(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("opening read-only database: %w", err)
	}
	return db, nil
}

// Executor runs scoped statements against the invoice database
type Executor struct {
	db      *sql.DB
	timeout time.Duration
	rowCap  int
}

// NewExecutor creates a new Executor
func NewExecutor(db *sql.DB, timeout time.Duration, rowCap int) *Executor {
	if rowCap <= 0 {
		rowCap = DefaultRowCap
	}
	return &Executor{
		db:      db,
		timeout: timeout,
		rowCap:  rowCap,
	}
}

// Execute runs stmt and collects at most rowCap rows. Every failure is an *ExecutionError.
func (e *Executor) Execute(ctx context.Context, stmt string) (*Result, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	rows, err := e.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, &ExecutionError{SQL: stmt, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &ExecutionError{SQL: stmt, Err: err}
	}

	result := &Result{Columns: columns, Rows: [][]any{}}
	for len(result.Rows) < e.rowCap && rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &ExecutionError{SQL: stmt, Err: err}
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{SQL: stmt, Err: err}
	}

	return result, nil
}
