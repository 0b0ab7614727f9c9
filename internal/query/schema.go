package query

// ownershipColumn ties an invoice row to the user who uploaded it
const ownershipColumn = "invoices.user_id"

// joinClause is the canonical join between invoices and their line items
const joinClause = "LEFT JOIN invoice_items ON invoices.id = invoice_items.invoice_id"

const schemaText = "Table: invoices\n" +
	" - id (INTEGER)\n" +
	" - invoice_number (TEXT)\n" +
	" - reference_number (TEXT)\n" +
	" - customer_name (TEXT)\n" +
	" - email (TEXT)\n" +
	" - invoice_date (TEXT)\n" +
	" - total (REAL)\n" +
	" - user_id (INTEGER)\n" +
	"\n" +
	"Table: invoice_items\n" +
	" - id (INTEGER)\n" +
	" - invoice_id (INTEGER)\n" +
	" - description (TEXT)\n" +
	" - quantity (REAL)\n" +
	" - rate (REAL)\n"

// Schema returns the textual description of the queryable tables given to the model
func Schema() string {
	return schemaText
}
