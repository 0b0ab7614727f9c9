package scanning

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/llm"
)

const extractPrompt = `The text below is OCR output from an invoice.
The OCR may be noisy, broken, or out of order.

Your job:
1. Correct OCR mistakes.
2. Understand date formats like: Jan 15 2013, January 15,2013, 05/11/2025
3. Infer missing fields from context.
4. ALWAYS output clean JSON following the structure below.
5. If fields are missing, use null (DO NOT guess unrealistic values).

Return ONLY valid JSON.
Format:
{
  "customer_name": string | null,
  "email": string | null,
  "invoice_date": string | null,
  "reference_number": string | null,
  "invoice_number": string | null,
  "items": [
    {
      "description": string,
      "quantity": number,
      "rate": number
    }
  ]
}

invoice_date must always be YYYY-MM-DD.

OCR TEXT:
%s`

var (
	nonPrintableRe = regexp.MustCompile(`[^\x09\x0A\x0D\x20-\x7E]`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// SanitizeText replaces non-printable characters and collapses whitespace
func SanitizeText(text string) string {
	cleaned := strings.ToValidUTF8(text, "")
	cleaned = nonPrintableRe.ReplaceAllString(cleaned, " ")
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// Extractor pulls structured invoice fields out of document text
type Extractor struct {
	completer llm.Completer
}

// NewExtractor creates a new Extractor
func NewExtractor(completer llm.Completer) *Extractor {
	return &Extractor{completer: completer}
}

// ExtractFields asks the model for the invoice fields found in text
func (e *Extractor) ExtractFields(ctx context.Context, text string) (*InvoiceFields, error) {
	answer, err := e.completer.Complete(ctx, []llm.Message{
		llm.System("You extract structured invoice data."),
		llm.User(fmt.Sprintf(extractPrompt, SanitizeText(text))),
	}, 0.1)
	if err != nil {
		return nil, fmt.Errorf("extracting invoice fields: %w", err)
	}

	fields, err := parseFieldsJSON(answer)
	if err != nil {
		return nil, fmt.Errorf("parsing invoice fields: %w", err)
	}
	return fields, nil
}
