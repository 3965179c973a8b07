// Package expense holds the shared-expense domain model: expenses, the
// payment requests raised against them, and the Ledger storage contract.
package expense

import (
	"errors"
	"time"
)

// Money is represented in minor units (e.g., cents). No floats.
type Money struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

func (m Money) IsPositive() bool { return m.Amount > 0 }
func (m Money) IsZero() bool     { return m.Amount == 0 }
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Add returns m + other. Both sides must carry the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Currency: m.Currency, Amount: m.Amount + other.Amount}, nil
}

// Sub returns m - other. Both sides must carry the same currency.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Currency: m.Currency, Amount: m.Amount - other.Amount}, nil
}

// PaymentRequest asks a specific person to reimburse part of an expense.
// Payer and amount are immutable after creation; the paid flag transitions
// exactly once.
type PaymentRequest struct {
	ID          string     `json:"id"`
	ExpenseID   string     `json:"expense_id"`
	PayerID     string     `json:"payer_id"`
	Description string     `json:"description"`
	AmountToPay Money      `json:"amount_to_pay"`
	DueDate     time.Time  `json:"due_date"`
	Paid        bool       `json:"paid"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

func (r PaymentRequest) IsPaid() bool { return r.Paid }

// Expense is money spent by its owner. It is the sole holder of its
// payment requests, which keep insertion order.
type Expense struct {
	ID          string           `json:"id"`
	OwnerID     string           `json:"owner_id"`
	Description string           `json:"description"`
	Amount      Money            `json:"amount"`
	Date        time.Time        `json:"date"`
	Requests    []PaymentRequest `json:"payment_requests,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Settlement is the result of paying a request: the request flipped to
// paid plus the compensating expense now owned by the payer.
type Settlement struct {
	Request             PaymentRequest `json:"payment_request"`
	CompensatingExpense Expense        `json:"compensating_expense"`
}

var (
	ErrNotFound           = errors.New("not found")
	ErrMissingID          = errors.New("expense id is required")
	ErrInvalidAmount      = errors.New("invalid amount (must be > 0)")
	ErrCurrencyMismatch   = errors.New("currency mismatch")
	ErrEmptyDescription   = errors.New("description is required")
	ErrMissingOwner       = errors.New("owner is required")
	ErrMissingPayer       = errors.New("payer is required")
	ErrSelfRequest        = errors.New("cannot request payment from the expense owner")
	ErrOverCommitted      = errors.New("requested amounts exceed the expense amount")
	ErrAlreadyPaid        = errors.New("payment request already paid")
	ErrUnauthorizedPayer  = errors.New("payer does not match the payment request")
	ErrOverPaid           = errors.New("paid requests exceed the expense amount")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
