package expense

import (
	"context"
	"sync"
	"time"

	"weshare.org/internal/person"
)

// Ledger defines expense storage and the person-scoped derived queries.
// Implementations must serialize mutations touching the same expense and
// hand out consistent snapshots to readers.
type Ledger interface {
	// FindExpensesForPerson lists expenses owned by personID in a stable
	// order.
	FindExpensesForPerson(ctx context.Context, personID string) ([]Expense, error)
	// FindPaymentRequestsSent lists requests raised on expenses owned by
	// personID.
	FindPaymentRequestsSent(ctx context.Context, personID string) ([]PaymentRequest, error)
	// FindPaymentRequestsReceived lists requests addressed to personID.
	FindPaymentRequestsReceived(ctx context.Context, personID string) ([]PaymentRequest, error)
	// Get returns the expense with its nested requests, or ErrNotFound.
	Get(ctx context.Context, expenseID string) (Expense, error)
	// Save upserts the expense including its nested requests.
	Save(ctx context.Context, e Expense) (Expense, error)
	// AddPaymentRequest atomically raises a request on the stored expense.
	// The over-commitment check runs against current state, serialized with
	// other mutations of the same expense, so racing creates can neither
	// lose a request nor together exceed the expense amount.
	AddPaymentRequest(ctx context.Context, expenseID string, payer person.Person, amount Money, dueDate time.Time) (PaymentRequest, error)
	// SettlePayment atomically marks the request paid and records the
	// compensating expense owned by the payer. A failed pay leaves no
	// compensating expense behind.
	SettlePayment(ctx context.Context, requestID, payerID string, when time.Time) (Settlement, error)
}

// InMemoryLedger implements Ledger with in-process concurrency safety.
// The process lifetime is its durability horizon.
type InMemoryLedger struct {
	mu       sync.RWMutex
	expenses map[string]*Expense
	order    []string // insertion order for stable listings
}

var _ Ledger = (*InMemoryLedger)(nil)

// NewInMemoryLedger creates an empty ledger.
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{expenses: make(map[string]*Expense)}
}

func (l *InMemoryLedger) FindExpensesForPerson(ctx context.Context, personID string) ([]Expense, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var res []Expense
	for _, id := range l.order {
		e := l.expenses[id]
		if e.OwnerID == personID {
			res = append(res, cloneExpense(e))
		}
	}
	return res, nil
}

func (l *InMemoryLedger) FindPaymentRequestsSent(ctx context.Context, personID string) ([]PaymentRequest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var res []PaymentRequest
	for _, id := range l.order {
		e := l.expenses[id]
		if e.OwnerID != personID {
			continue
		}
		for _, req := range e.Requests {
			res = append(res, cloneRequest(req))
		}
	}
	return res, nil
}

func (l *InMemoryLedger) FindPaymentRequestsReceived(ctx context.Context, personID string) ([]PaymentRequest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var res []PaymentRequest
	for _, id := range l.order {
		for _, req := range l.expenses[id].Requests {
			if req.PayerID == personID {
				res = append(res, cloneRequest(req))
			}
		}
	}
	return res, nil
}

func (l *InMemoryLedger) Get(ctx context.Context, expenseID string) (Expense, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.expenses[expenseID]
	if !ok {
		return Expense{}, ErrNotFound
	}
	return cloneExpense(e), nil
}

func (l *InMemoryLedger) Save(ctx context.Context, e Expense) (Expense, error) {
	if e.ID == "" {
		return Expense{}, ErrMissingID
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	stored := cloneExpense(&e)
	if _, ok := l.expenses[e.ID]; !ok {
		l.order = append(l.order, e.ID)
	}
	l.expenses[e.ID] = &stored
	return cloneExpense(&stored), nil
}

func (l *InMemoryLedger) AddPaymentRequest(ctx context.Context, expenseID string, payer person.Person, amount Money, dueDate time.Time) (PaymentRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.expenses[expenseID]
	if !ok {
		return PaymentRequest{}, ErrNotFound
	}
	// Mutates the stored aggregate under the write lock, so the
	// over-commitment check always sees the latest requests.
	req, err := e.RequestPayment(payer, amount, dueDate)
	if err != nil {
		return PaymentRequest{}, err
	}
	return cloneRequest(req), nil
}

func (l *InMemoryLedger) SettlePayment(ctx context.Context, requestID, payerID string, when time.Time) (Settlement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range l.order {
		e := l.expenses[id]
		if !holdsRequest(e, requestID) {
			continue
		}
		paid, err := e.Pay(requestID, payerID, when)
		if err != nil {
			return Settlement{}, err
		}
		compensating, err := NewExpense(payerID, paid.Description, paid.AmountToPay, when)
		if err != nil {
			return Settlement{}, err
		}
		stored := cloneExpense(&compensating)
		l.expenses[compensating.ID] = &stored
		l.order = append(l.order, compensating.ID)
		return Settlement{Request: paid, CompensatingExpense: compensating}, nil
	}
	return Settlement{}, ErrNotFound
}

func holdsRequest(e *Expense, requestID string) bool {
	for _, req := range e.Requests {
		if req.ID == requestID {
			return true
		}
	}
	return false
}

func cloneExpense(e *Expense) Expense {
	out := *e
	if e.Requests != nil {
		out.Requests = make([]PaymentRequest, len(e.Requests))
		for i, req := range e.Requests {
			out.Requests[i] = cloneRequest(req)
		}
	}
	return out
}

func cloneRequest(req PaymentRequest) PaymentRequest {
	out := req
	if req.PaidAt != nil {
		paidAt := *req.PaidAt
		out.PaidAt = &paidAt
	}
	return out
}
