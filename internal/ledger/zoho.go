package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/invoice"
)

const (
	DefaultAPIURL      = "https://www.zohoapis.in/books/v3"
	DefaultAccountsURL = "https://accounts.zoho.in"

	invoiceNotes   = "Auto-created via document sync"
	contactAddress = "Auto-created by document sync"
)

// Config holds Zoho Books credentials and endpoints
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	OrgID        string
	APIURL       string
	AccountsURL  string
	Timeout      time.Duration
}

// Configured reports whether enough credentials are present to push invoices
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != "" && c.OrgID != ""
}

// New returns a Zoho pusher when credentials are configured and a no-op pusher otherwise
func New(cfg Config) invoice.Pusher {
	if !cfg.Configured() {
		slog.Info("Ledger push disabled, Zoho credentials not configured")
		return Noop{}
	}
	return NewZoho(cfg)
}

// Zoho pushes invoices to Zoho Books
type Zoho struct {
	apiURL string
	orgID  string
	client *http.Client
	tokens oauth2.TokenSource
}

// NewZoho creates a Zoho Books client that refreshes its access token as needed
func NewZoho(cfg Config) *Zoho {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.AccountsURL == "" {
		cfg.AccountsURL = DefaultAccountsURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := &http.Client{Timeout: cfg.Timeout}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  strings.TrimSuffix(cfg.AccountsURL, "/") + "/oauth/v2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, client)

	return &Zoho{
		apiURL: strings.TrimSuffix(cfg.APIURL, "/"),
		orgID:  cfg.OrgID,
		client: client,
		tokens: oauthCfg.TokenSource(tokenCtx, &oauth2.Token{RefreshToken: cfg.RefreshToken}),
	}
}

type contact struct {
	ContactID   string `json:"contact_id"`
	ContactName string `json:"contact_name"`
}

type lineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
}

type invoiceRequest struct {
	CustomerID      string     `json:"customer_id"`
	ReferenceNumber string     `json:"reference_number"`
	Date            string     `json:"date"`
	LineItems       []lineItem `json:"line_items"`
	Notes           string     `json:"notes"`
}

// Push finds or creates the customer contact and creates the invoice
func (z *Zoho) Push(ctx context.Context, inv *invoice.Invoice) (invoice.LedgerResult, error) {
	if len(inv.Items) == 0 {
		return invoice.LedgerResult{}, fmt.Errorf("invoice %d has no line items", inv.ID)
	}

	customerID, err := z.findContact(ctx, inv.CustomerName)
	if err != nil {
		return invoice.LedgerResult{}, err
	}
	if customerID == "" {
		slog.Info("Creating Zoho contact", "customer", inv.CustomerName)
		if customerID, err = z.createContact(ctx, inv.CustomerName, inv.Email); err != nil {
			return invoice.LedgerResult{}, err
		}
	}

	req := invoiceRequest{
		CustomerID:      customerID,
		ReferenceNumber: inv.ReferenceNumber,
		Date:            inv.InvoiceDate,
		Notes:           invoiceNotes,
	}
	for _, item := range inv.Items {
		req.LineItems = append(req.LineItems, lineItem{Description: item.Description, Quantity: item.Quantity, Rate: item.Rate})
	}

	var resp struct {
		Invoice struct {
			InvoiceID     string `json:"invoice_id"`
			InvoiceNumber string `json:"invoice_number"`
		} `json:"invoice"`
	}
	if err := z.do(ctx, http.MethodPost, "/invoices", nil, req, &resp); err != nil {
		return invoice.LedgerResult{}, fmt.Errorf("creating zoho invoice: %w", err)
	}

	slog.Info("Zoho invoice created", "invoice_id", inv.ID, "zoho_invoice_id", resp.Invoice.InvoiceID, "zoho_invoice_number", resp.Invoice.InvoiceNumber)
	return invoice.LedgerResult{Status: invoice.LedgerPushed, Ref: resp.Invoice.InvoiceID}, nil
}

// findContact returns the ID of the contact whose name matches case-insensitively, or ""
func (z *Zoho) findContact(ctx context.Context, name string) (string, error) {
	for page := 1; ; page++ {
		var resp struct {
			Contacts    []contact `json:"contacts"`
			PageContext struct {
				HasMorePage bool `json:"has_more_page"`
			} `json:"page_context"`
		}
		params := url.Values{"page": {strconv.Itoa(page)}}
		if err := z.do(ctx, http.MethodGet, "/contacts", params, nil, &resp); err != nil {
			return "", fmt.Errorf("listing zoho contacts: %w", err)
		}

		for _, c := range resp.Contacts {
			if strings.EqualFold(strings.TrimSpace(c.ContactName), strings.TrimSpace(name)) {
				return c.ContactID, nil
			}
		}
		if !resp.PageContext.HasMorePage {
			return "", nil
		}
	}
}

func (z *Zoho) createContact(ctx context.Context, name, email string) (string, error) {
	req := map[string]any{
		"contact_name":    name,
		"billing_address": map[string]string{"address": contactAddress},
	}
	if email != "" {
		req["contact_persons"] = []map[string]any{{"email": email, "is_primary_contact": true}}
	}

	var resp struct {
		Contact contact `json:"contact"`
	}
	if err := z.do(ctx, http.MethodPost, "/contacts", nil, req, &resp); err != nil {
		return "", fmt.Errorf("creating zoho contact: %w", err)
	}
	if resp.Contact.ContactID == "" {
		return "", fmt.Errorf("creating zoho contact: no contact id returned")
	}
	return resp.Contact.ContactID, nil
}

// do sends an authenticated request and decodes the JSON response into out
func (z *Zoho) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	token, err := z.tokens.Token()
	if err != nil {
		return fmt.Errorf("refreshing zoho access token: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("organization_id", z.orgID)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, z.apiURL+path+"?"+params.Encode(), reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token.AccessToken)
	req.Header.Set("X-com-zoho-books-organizationid", z.orgID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := z.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("zoho returned %d: %s (code %d)", resp.StatusCode, apiErr.Message, apiErr.Code)
		}
		return fmt.Errorf("zoho returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
