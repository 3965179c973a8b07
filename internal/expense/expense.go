package expense

import (
	"strings"
	"time"

	"weshare.org/internal/ids"
	"weshare.org/internal/person"
)

// NewExpense records money spent by ownerID on the given date.
func NewExpense(ownerID, description string, amount Money, date time.Time) (Expense, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Expense{}, ErrMissingOwner
	}
	if strings.TrimSpace(description) == "" {
		return Expense{}, ErrEmptyDescription
	}
	if !amount.IsPositive() {
		return Expense{}, ErrInvalidAmount
	}
	return Expense{
		ID:          ids.New(),
		OwnerID:     ownerID,
		Description: strings.TrimSpace(description),
		Amount:      amount,
		Date:        date,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// RequestPayment appends a fresh unpaid request asking payer to reimburse
// amount by dueDate. The cumulative requested amount, paid or not, may
// never exceed the expense amount.
func (e *Expense) RequestPayment(payer person.Person, amount Money, dueDate time.Time) (PaymentRequest, error) {
	if payer.ID == "" {
		return PaymentRequest{}, ErrMissingPayer
	}
	if payer.ID == e.OwnerID {
		return PaymentRequest{}, ErrSelfRequest
	}
	if !amount.IsPositive() {
		return PaymentRequest{}, ErrInvalidAmount
	}
	requested, err := e.TotalRequested()
	if err != nil {
		return PaymentRequest{}, err
	}
	requested, err = requested.Add(amount)
	if err != nil {
		return PaymentRequest{}, err
	}
	if requested.Amount > e.Amount.Amount {
		return PaymentRequest{}, ErrOverCommitted
	}

	req := PaymentRequest{
		ID:          ids.New(),
		ExpenseID:   e.ID,
		PayerID:     payer.ID,
		Description: e.Description,
		AmountToPay: amount,
		DueDate:     dueDate,
	}
	e.Requests = append(e.Requests, req)
	return req, nil
}

// Pay marks the request identified by requestID as paid on the given date.
// Only the designated payer may pay, and only once.
func (e *Expense) Pay(requestID, payerID string, when time.Time) (PaymentRequest, error) {
	for i := range e.Requests {
		req := &e.Requests[i]
		if req.ID != requestID {
			continue
		}
		if req.PayerID != payerID {
			return PaymentRequest{}, ErrUnauthorizedPayer
		}
		if req.Paid {
			return PaymentRequest{}, ErrAlreadyPaid
		}
		paidAt := when.UTC()
		req.Paid = true
		req.PaidAt = &paidAt
		return *req, nil
	}
	return PaymentRequest{}, ErrNotFound
}

// TotalRequested sums the amounts of all requests, paid or not.
func (e *Expense) TotalRequested() (Money, error) {
	total := Money{Currency: e.Amount.Currency}
	var err error
	for _, req := range e.Requests {
		total, err = total.Add(req.AmountToPay)
		if err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// AmountLessPaymentsReceived is the owner's outstanding net cost: the
// expense amount minus all reimbursements received. A negative result
// means stored state is inconsistent and is reported, not clamped.
func (e *Expense) AmountLessPaymentsReceived() (Money, error) {
	outstanding := e.Amount
	var err error
	for _, req := range e.Requests {
		if !req.Paid {
			continue
		}
		outstanding, err = outstanding.Sub(req.AmountToPay)
		if err != nil {
			return Money{}, err
		}
	}
	if outstanding.IsNegative() {
		return Money{}, ErrOverPaid
	}
	return outstanding, nil
}
