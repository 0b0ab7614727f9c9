package query

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/llm"
)

// DefaultPreviewRows is how many result rows the model sees when phrasing an answer
const DefaultPreviewRows = 5

const interpretInstruction = "You are a data analyst. Use ONLY the provided SQL and results to answer the user's question. " +
	"If the data does not provide an answer, say 'I don't have that information in the data.' " +
	"Be concise and mention notable numbers."

// Interpreter turns an executed statement and its rows into a short answer
type Interpreter struct {
	completer   llm.Completer
	temperature float64
	previewRows int
}

// NewInterpreter creates a new Interpreter
func NewInterpreter(completer llm.Completer, temperature float64, previewRows int) *Interpreter {
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}
	return &Interpreter{
		completer:   completer,
		temperature: temperature,
		previewRows: previewRows,
	}
}

// Interpret asks the model to answer question from a preview of result
func (i *Interpreter) Interpret(ctx context.Context, question string, stmt string, result *Result) (string, error) {
	preview, err := i.preview(result)
	if err != nil {
		return "", err
	}

	messages := []llm.Message{
		llm.System(interpretInstruction),
		llm.User(fmt.Sprintf("Question:\n%s\nSQL:\n%s\nResults:\n%s", question, stmt, preview)),
	}

	answer, err := i.completer.Complete(ctx, messages, i.temperature)
	if err != nil {
		return "", fmt.Errorf("interpreting result: %w", err)
	}
	return answer, nil
}

// preview renders the column names and the first rows as JSON arrays in SELECT order,
// with a note when rows were left out
func (i *Interpreter) preview(result *Result) (string, error) {
	rows := result.Rows
	if len(rows) > i.previewRows {
		rows = rows[:i.previewRows]
	}

	data, err := json.Marshal(&Result{Columns: result.Columns, Rows: rows})
	if err != nil {
		return "", fmt.Errorf("encoding result preview: %w", err)
	}

	text := string(data)
	if extra := len(result.Rows) - len(rows); extra > 0 {
		text += fmt.Sprintf("\n... (%d more rows truncated)", extra)
	}
	return text, nil
}
