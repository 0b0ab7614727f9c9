package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// InvoiceFields contains the information extracted from an invoice
type InvoiceFields struct {
	CustomerName    string     `json:"customer_name"`
	Email           string     `json:"email"`
	InvoiceDate     string     `json:"invoice_date"` // YYYY-MM-DD when recognizable
	ReferenceNumber FlexString `json:"reference_number"`
	InvoiceNumber   FlexString `json:"invoice_number"`
	Items           []LineItem `json:"items"`
}

// LineItem is an extracted invoice line. Quantity and rate stay textual until validation.
type LineItem struct {
	Description string     `json:"description"`
	Quantity    FlexString `json:"quantity"`
	Rate        FlexString `json:"rate"`
}

// FlexString accepts a JSON string, a number or null. Models are inconsistent about
// quoting identifiers and amounts.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (n *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*n = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = FlexString(strings.TrimSpace(s))
	default:
		var f json.Number
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("invalid number %s", data)
		}
		*n = FlexString(f.String())
	}
	return nil
}

// String returns the text form
func (n FlexString) String() string {
	return string(n)
}

// Float parses the value as a number, ignoring thousands separators
func (n FlexString) Float() (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(string(n)), ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("number %q is not finite", s)
	}
	return f, nil
}

// dateLayouts are tried in order when normalizing invoice dates
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"January 2, 2006",
	"January 2,2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
}

// normalizeDate rewrites recognizable dates as YYYY-MM-DD and leaves anything else as is
func normalizeDate(value string) string {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, value); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return value
}

// parseFieldsJSON parses the model response, tolerating code fences and surrounding prose
func parseFieldsJSON(text string) (*InvoiceFields, error) {
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	var fields InvoiceFields
	if err := json.Unmarshal([]byte(text[startIdx:endIdx+1]), &fields); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	fields.CustomerName = strings.TrimSpace(fields.CustomerName)
	fields.Email = strings.TrimSpace(fields.Email)
	fields.InvoiceDate = normalizeDate(fields.InvoiceDate)

	return &fields, nil
}
