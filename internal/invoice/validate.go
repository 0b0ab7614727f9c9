package invoice

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/scanning"
)

// Validate checks extracted fields and builds an Invoice from them. Items without a
// description or a readable rate are dropped; at least one must remain.
func Validate(fields *scanning.InvoiceFields) (*Invoice, error) {
	if fields == nil {
		return nil, fmt.Errorf("%w: no fields extracted", ErrInvalidInvoice)
	}

	required := []struct {
		name  string
		value string
	}{
		{"customer_name", fields.CustomerName},
		{"invoice_date", fields.InvoiceDate},
		{"reference_number", fields.ReferenceNumber.String()},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrInvalidInvoice, r.name)
		}
	}
	if len(fields.Items) == 0 {
		return nil, fmt.Errorf("%w: no line items", ErrInvalidInvoice)
	}

	var (
		items []Item
		total float64
	)
	for _, li := range fields.Items {
		desc := strings.TrimSpace(li.Description)
		if desc == "" || li.Rate == "" {
			slog.Warn("Skipping invalid line item", "description", li.Description, "rate", li.Rate)
			continue
		}

		qty := 1.0
		if li.Quantity != "" {
			q, err := li.Quantity.Float()
			if err != nil {
				slog.Warn("Skipping line item with unreadable quantity", "description", desc, "quantity", li.Quantity)
				continue
			}
			qty = q
		}
		rate, err := li.Rate.Float()
		if err != nil {
			slog.Warn("Skipping line item with unreadable rate", "description", desc, "rate", li.Rate)
			continue
		}

		items = append(items, Item{Description: desc, Quantity: qty, Rate: rate})
		total += qty * rate
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no valid line items", ErrInvalidInvoice)
	}

	number := strings.TrimSpace(fields.InvoiceNumber.String())
	if number == "" {
		number = "UNKNOWN"
	}

	return &Invoice{
		InvoiceNumber:   number,
		ReferenceNumber: strings.TrimSpace(fields.ReferenceNumber.String()),
		CustomerName:    strings.TrimSpace(fields.CustomerName),
		Email:           strings.TrimSpace(fields.Email),
		InvoiceDate:     strings.TrimSpace(fields.InvoiceDate),
		Total:           math.Round(total*100) / 100,
		Items:           items,
	}, nil
}
