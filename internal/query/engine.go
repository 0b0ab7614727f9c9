package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/llm"
)

// Response is the envelope returned for every question
type Response struct {
	OK       bool    `json:"ok"`
	Answer   string  `json:"answer,omitempty"`
	SQL      string  `json:"sql"`
	Result   *Result `json:"result,omitempty"`
	Fallback bool    `json:"fallback"`
	Error    string  `json:"error,omitempty"`
}

// Config holds the tunables of the question answering pipeline
type Config struct {
	RowCap       int
	PreviewRows  int
	Temperature  float64
	QueryTimeout time.Duration
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() Config {
	return Config{
		RowCap:       DefaultRowCap,
		PreviewRows:  DefaultPreviewRows,
		Temperature:  0,
		QueryTimeout: 30 * time.Second,
	}
}

// Engine answers natural language questions about a user's invoices
type Engine struct {
	synthesizer *Synthesizer
	executor    *Executor
	interpreter *Interpreter
	fallback    *FallbackReasoner
	rowCap      int
}

// NewEngine creates a new Engine. db should be a read-only handle, see OpenReadOnly.
func NewEngine(completer llm.Completer, db *sql.DB, cfg Config) *Engine {
	return &Engine{
		synthesizer: NewSynthesizer(completer, cfg.Temperature),
		executor:    NewExecutor(db, cfg.QueryTimeout, cfg.RowCap),
		interpreter: NewInterpreter(completer, cfg.Temperature, cfg.PreviewRows),
		fallback:    NewFallbackReasoner(completer, db, cfg.Temperature, cfg.QueryTimeout),
		rowCap:      cfg.RowCap,
	}
}

// Answer runs the full pipeline for question on behalf of userID. It never returns an
// error: failures are reported in the envelope with OK set to false.
func (e *Engine) Answer(ctx context.Context, question string, userID int64) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Query pipeline panicked", "user_id", userID, "panic", r)
			resp = Response{OK: false, Error: fmt.Sprint(r), SQL: ""}
		}
	}()

	resp, err := e.answer(ctx, question, userID)
	if err != nil {
		slog.Error("Failed to answer question", "user_id", userID, "error", err)
		return Response{OK: false, Error: err.Error(), SQL: ""}
	}
	return resp
}

func (e *Engine) answer(ctx context.Context, question string, userID int64) (Response, error) {
	generated, err := e.synthesizer.Synthesize(ctx, question, Schema())
	if err != nil {
		return Response{}, err
	}

	result, stmt, err := e.run(ctx, generated, userID)
	if err != nil {
		var execErr *ExecutionError
		if !errors.As(err, &execErr) {
			return Response{}, err
		}
		slog.Warn("SQL failed, switching to fallback reasoning", "user_id", userID, "sql", generated, "error", err)

		answer, err := e.fallback.Reason(ctx, question, userID)
		if err != nil {
			return Response{}, err
		}
		return Response{OK: true, Answer: answer, SQL: generated, Fallback: true}, nil
	}

	answer, err := e.interpreter.Interpret(ctx, question, stmt, result)
	if err != nil {
		return Response{}, err
	}
	return Response{OK: true, Answer: answer, SQL: stmt, Result: result, Fallback: false}, nil
}

// run checks and scopes the generated statement and executes it
func (e *Engine) run(ctx context.Context, generated string, userID int64) (*Result, string, error) {
	if !IsSafeSelect(generated) {
		return nil, "", &ExecutionError{SQL: generated, Err: ErrUnsafeSQL}
	}

	stmt := ScopeToUser(generated, userID, e.rowCap)
	result, err := e.executor.Execute(ctx, stmt)
	if err != nil {
		return nil, stmt, err
	}
	return result, stmt, nil
}
