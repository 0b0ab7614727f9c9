package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/llm"
)

// DocTypeInvoice is the only document type the ingestion pipeline accepts
const DocTypeInvoice = "invoice"

// DocTypeOther is used when no known label fits
const DocTypeOther = "others"

// DocTypes lists every label the classifier may return
var DocTypes = []string{
	"invoice",
	"bank_statement",
	"id_document",
	"aadhaar_card",
	"pan_card",
	"passport",
	"driving_license",
	"voter_id",
	"rent_agreement",
	"utility_bill",
	"certificate",
	"property_document",
	"cheque",
	"salary_slip",
	"offer_letter",
	"admission_letter",
	"medical_report",
	"prescription",
	"exam_mark_sheet",
	"insurance_document",
	"legal_affidavit",
	"agreement",
	"tax_document",
	"purchase_order",
	"delivery_note",
	DocTypeOther,
}

// keywordRules are checked in order; the first rule with a matching keyword wins
var keywordRules = []struct {
	docType  string
	keywords []string
}{
	{"invoice", []string{
		"invoice", "invoice no", "gstin", "subtotal", "amount due", "bill to", "billing address",
		"taxable value", "hsn", "total amount", "due date", "payment terms", "tax invoice",
		"ship to", "item description", "unit price", "invoice date",
	}},
	{"cheque", []string{
		"cheque", "cheque number", "micr", "ifsc", "pay to", "rupees", "bearer", "a/c payee", "drawer",
	}},
	{"bank_statement", []string{
		"statement period", "available balance", "account summary", "transaction details",
		"branch code", "withdrawal", "deposit", "neft", "rtgs",
	}},
	{"id_document", []string{
		"government", "identity", "date of birth", "dob", "aadhaar", "passport", "father name", "uidai",
	}},
}

// Classifier labels a document from its text
type Classifier struct {
	completer llm.Completer
}

// NewClassifier creates a new Classifier
func NewClassifier(completer llm.Completer) *Classifier {
	return &Classifier{completer: completer}
}

// Classify asks the model for one of DocTypes. When the model cannot be reached the
// keyword rules decide instead.
func (c *Classifier) Classify(ctx context.Context, text string) string {
	cleaned := SanitizeText(text)

	prompt := fmt.Sprintf(`Based on this OCR text, identify the MOST LIKELY document type.

OCR TEXT:
"""%s"""

Choose ONLY ONE label from this fixed list:

%s

Return EXACTLY one label with no explanation.`, cleaned, strings.Join(DocTypes, ", "))

	answer, err := c.completer.Complete(ctx, []llm.Message{
		llm.System("You are an AI document classifier."),
		llm.User(prompt),
	}, 0.1)
	if err != nil {
		label := ClassifyByKeywords(cleaned)
		slog.Warn("LLM classification failed, using keyword rules", "doc_type", label, "error", err)
		return label
	}

	label := normalizeLabel(answer)
	slog.Info("Document classified", "doc_type", label)
	return label
}

// ClassifyByKeywords labels text with the first keyword rule that matches
func ClassifyByKeywords(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.docType
			}
		}
	}
	return DocTypeOther
}

// normalizeLabel maps a model answer onto DocTypes
func normalizeLabel(answer string) string {
	label := strings.ToLower(strings.TrimSpace(answer))
	label = strings.Trim(label, "`'\".,: \n")
	label = strings.ReplaceAll(label, " ", "_")
	for _, known := range DocTypes {
		if label == known {
			return known
		}
	}
	return DocTypeOther
}
