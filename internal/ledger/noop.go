package ledger

import (
	"context"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/invoice"
)

// Noop is used when no ledger is configured
type Noop struct{}

// Push reports the invoice as skipped
func (Noop) Push(ctx context.Context, inv *invoice.Invoice) (invoice.LedgerResult, error) {
	return invoice.LedgerResult{Status: invoice.LedgerSkipped}, nil
}
