package invoice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/auth"
	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/invoice/migrations"
)

// Store defines the invoice persistence operations. Every read is scoped to a user.
type Store interface {
	// SaveInvoice stores the invoice and its items and returns the new ID
	SaveInvoice(ctx context.Context, inv *Invoice) (int64, error)

	// GetInvoice retrieves one of the user's invoices
	GetInvoice(ctx context.Context, userID, id int64) (*Invoice, error)

	// ListInvoices returns all of the user's invoices, newest first
	ListInvoices(ctx context.Context, userID int64) ([]*Invoice, error)

	// DeleteInvoice removes one of the user's invoices with its items
	DeleteInvoice(ctx context.Context, userID, id int64) error
}

// SQLStore implements Store and auth.UserStore on SQLite
type SQLStore struct {
	db *sql.DB
}

// gooseUp is a seam for running migrations
var gooseUp = func(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// OpenSQLStore opens the SQLite database at path and applies pending migrations
func OpenSQLStore(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	if err := gooseUp(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// DB exposes the underlying handle
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// CreateUser inserts a user and returns its ID
func (s *SQLStore) CreateUser(ctx context.Context, user *auth.User) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.Username, nullString(user.Email), user.PasswordHash, formatTime(user.CreatedAt))
	if err != nil {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, auth.ErrUsernameTaken
		}
		return 0, fmt.Errorf("inserting user: %w", err)
	}
	return res.LastInsertId()
}

// GetUserByUsername retrieves a user by name
func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	return s.getUser(ctx, `SELECT id, username, email, password_hash, created_at FROM users WHERE username = ?`, username)
}

// GetUserByID retrieves a user by ID
func (s *SQLStore) GetUserByID(ctx context.Context, id int64) (*auth.User, error) {
	return s.getUser(ctx, `SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`, id)
}

func (s *SQLStore) getUser(ctx context.Context, query string, arg any) (*auth.User, error) {
	var (
		user      auth.User
		email     sql.NullString
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Username, &email, &user.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	user.Email = email.String
	user.CreatedAt = parseTime(createdAt)
	return &user, nil
}

// SaveInvoice stores the invoice and its items in one transaction
func (s *SQLStore) SaveInvoice(ctx context.Context, inv *Invoice) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO invoices (invoice_number, reference_number, customer_name, email, invoice_date, total, user_id, document_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.InvoiceNumber, inv.ReferenceNumber, inv.CustomerName, nullString(inv.Email), inv.InvoiceDate,
		inv.Total, inv.UserID, nullString(inv.DocumentID), formatTime(inv.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("inserting invoice: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading invoice id: %w", err)
	}

	for i := range inv.Items {
		item := &inv.Items[i]
		res, err := tx.ExecContext(ctx,
			`INSERT INTO invoice_items (invoice_id, description, quantity, rate) VALUES (?, ?, ?, ?)`,
			id, item.Description, item.Quantity, item.Rate)
		if err != nil {
			return 0, fmt.Errorf("inserting invoice item: %w", err)
		}
		if item.ID, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("reading item id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing invoice: %w", err)
	}
	inv.ID = id
	return id, nil
}

const invoiceColumns = `id, invoice_number, reference_number, customer_name, email, invoice_date, total, user_id, document_id, created_at`

// GetInvoice retrieves one of the user's invoices
func (s *SQLStore) GetInvoice(ctx context.Context, userID, id int64) (*Invoice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, fmt.Errorf("querying invoice: %w", err)
	}
	invoices, err := scanInvoices(rows)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, ErrNotFound
	}

	if err := s.loadItems(ctx, invoices, `SELECT id, invoice_id, description, quantity, rate FROM invoice_items WHERE invoice_id = ? ORDER BY id`, id); err != nil {
		return nil, err
	}
	return invoices[0], nil
}

// ListInvoices returns all of the user's invoices, newest first
func (s *SQLStore) ListInvoices(ctx context.Context, userID int64) ([]*Invoice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE user_id = ? ORDER BY invoice_date DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying invoices: %w", err)
	}
	invoices, err := scanInvoices(rows)
	if err != nil {
		return nil, err
	}

	err = s.loadItems(ctx, invoices,
		`SELECT id, invoice_id, description, quantity, rate FROM invoice_items
		 WHERE invoice_id IN (SELECT id FROM invoices WHERE user_id = ?) ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// DeleteInvoice removes one of the user's invoices with its items
func (s *SQLStore) DeleteInvoice(ctx context.Context, userID, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM invoices WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting invoice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = ?`, id); err != nil {
		return fmt.Errorf("deleting invoice items: %w", err)
	}

	return tx.Commit()
}

func scanInvoices(rows *sql.Rows) ([]*Invoice, error) {
	defer rows.Close()

	invoices := make([]*Invoice, 0)
	for rows.Next() {
		var (
			inv        Invoice
			email      sql.NullString
			documentID sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&inv.ID, &inv.InvoiceNumber, &inv.ReferenceNumber, &inv.CustomerName, &email,
			&inv.InvoiceDate, &inv.Total, &inv.UserID, &documentID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}
		inv.Email = email.String
		inv.DocumentID = documentID.String
		inv.CreatedAt = parseTime(createdAt)
		inv.Items = []Item{}
		invoices = append(invoices, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invoices: %w", err)
	}
	return invoices, nil
}

// loadItems attaches the items returned by query to the matching invoices
func (s *SQLStore) loadItems(ctx context.Context, invoices []*Invoice, query string, arg any) error {
	if len(invoices) == 0 {
		return nil
	}
	byID := make(map[int64]*Invoice, len(invoices))
	for _, inv := range invoices {
		byID[inv.ID] = inv
	}

	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("querying invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item      Item
			invoiceID int64
		)
		if err := rows.Scan(&item.ID, &invoiceID, &item.Description, &item.Quantity, &item.Rate); err != nil {
			return fmt.Errorf("scanning invoice item: %w", err)
		}
		if inv, ok := byID[invoiceID]; ok {
			inv.Items = append(inv.Items, item)
		}
	}
	return rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
