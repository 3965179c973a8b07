// Package remote is a typed HTTP client for the weshare API, used by
// smoke tooling and other services.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"weshare.org/internal/expense"
)

// Client talks JSON to a weshare API server. The zero token issues only
// public requests; use WithToken after opening a session.
type Client struct {
	baseURL string
	hc      *http.Client
	token   string
}

// New creates a client for the API at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 10 * time.Second},
	}
}

// WithToken returns a copy of the client acting under the given session.
func (c *Client) WithToken(token string) *Client {
	out := *c
	out.token = token
	return &out
}

// APIError carries a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Session is an issued bearer token bound to a person.
type Session struct {
	Token     string    `json:"token"`
	PersonID  string    `json:"person_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExpenseView is an expense with its derived outstanding amount.
type ExpenseView struct {
	expense.Expense
	Outstanding expense.Money `json:"amount_less_payments_received"`
}

// ExpenseListing is the expenses view for the acting person.
type ExpenseListing struct {
	Items      []ExpenseView `json:"items"`
	GrandTotal expense.Money `json:"grand_total"`
	AsOf       time.Time     `json:"as_of"`
}

// RequestListing is a payment-request view for the acting person.
type RequestListing struct {
	Items      []expense.PaymentRequest `json:"items"`
	GrandTotal expense.Money            `json:"grand_total"`
	AsOf       time.Time                `json:"as_of"`
}

// OpenSession registers the email on first use and returns a session.
func (c *Client) OpenSession(ctx context.Context, email string) (Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/v1/session", map[string]any{"email": email}, &s)
	return s, err
}

// CreateExpense records an expense for the acting person. Date is YYYY-MM-DD.
func (c *Client) CreateExpense(ctx context.Context, description string, amount int64, date string) (expense.Expense, error) {
	var e expense.Expense
	err := c.do(ctx, http.MethodPost, "/v1/expenses", map[string]any{
		"description": description,
		"amount":      amount,
		"date":        date,
	}, &e)
	return e, err
}

// GetExpense fetches one owned expense with its outstanding amount.
func (c *Client) GetExpense(ctx context.Context, id string) (ExpenseView, error) {
	var v ExpenseView
	err := c.do(ctx, http.MethodGet, "/v1/expenses/"+id, nil, &v)
	return v, err
}

// ListExpenses lists the acting person's expenses.
func (c *Client) ListExpenses(ctx context.Context) (ExpenseListing, error) {
	var l ExpenseListing
	err := c.do(ctx, http.MethodGet, "/v1/expenses", nil, &l)
	return l, err
}

// RequestPayment raises a payment request on an owned expense. DueDate is
// YYYY-MM-DD.
func (c *Client) RequestPayment(ctx context.Context, expenseID, email string, amount int64, dueDate string) (expense.PaymentRequest, error) {
	var req expense.PaymentRequest
	err := c.do(ctx, http.MethodPost, "/v1/expenses/"+expenseID+"/payment-requests", map[string]any{
		"email":    email,
		"amount":   amount,
		"due_date": dueDate,
	}, &req)
	return req, err
}

// RequestsSent lists unpaid requests the acting person raised.
func (c *Client) RequestsSent(ctx context.Context) (RequestListing, error) {
	var l RequestListing
	err := c.do(ctx, http.MethodGet, "/v1/payment-requests/sent", nil, &l)
	return l, err
}

// RequestsReceived lists requests addressed to the acting person.
func (c *Client) RequestsReceived(ctx context.Context) (RequestListing, error) {
	var l RequestListing
	err := c.do(ctx, http.MethodGet, "/v1/payment-requests/received", nil, &l)
	return l, err
}

// Pay settles a payment request addressed to the acting person.
func (c *Client) Pay(ctx context.Context, requestID string) (expense.Settlement, error) {
	var s expense.Settlement
	err := c.do(ctx, http.MethodPost, "/v1/payment-requests/"+requestID+"/pay", nil, &s)
	return s, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
