package expense

import (
	"testing"
	"time"

	"weshare.org/internal/person"
)

func zar(amount int64) Money { return Money{Currency: "ZAR", Amount: amount} }

func mustExpense(t *testing.T, ownerID string, amount int64) Expense {
	t.Helper()
	e, err := NewExpense(ownerID, "Dinner", zar(amount), time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewExpense: %v", err)
	}
	return e
}

func TestNewExpenseValidation(t *testing.T) {
	date := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	if _, err := NewExpense("", "Dinner", zar(4000), date); err != ErrMissingOwner {
		t.Fatalf("expected ErrMissingOwner, got %v", err)
	}
	if _, err := NewExpense("alice", "  ", zar(4000), date); err != ErrEmptyDescription {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
	if _, err := NewExpense("alice", "Dinner", zar(0), date); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := NewExpense("alice", "Dinner", zar(-100), date); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	e, err := NewExpense("alice", "Dinner", zar(4000), date)
	if err != nil {
		t.Fatal(err)
	}
	if e.ID == "" {
		t.Fatal("expected id assigned")
	}
	outstanding, err := e.AmountLessPaymentsReceived()
	if err != nil {
		t.Fatal(err)
	}
	if outstanding.Amount != 4000 {
		t.Fatalf("fresh expense outstanding=%d, want 4000", outstanding.Amount)
	}
}

func TestRequestPaymentValidation(t *testing.T) {
	e := mustExpense(t, "alice", 4000)
	due := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	bob := person.Person{ID: "bob", Email: "bob@example.com"}

	if _, err := e.RequestPayment(person.Person{}, zar(2000), due); err != ErrMissingPayer {
		t.Fatalf("expected ErrMissingPayer, got %v", err)
	}
	if _, err := e.RequestPayment(person.Person{ID: "alice"}, zar(2000), due); err != ErrSelfRequest {
		t.Fatalf("expected ErrSelfRequest, got %v", err)
	}
	if _, err := e.RequestPayment(bob, zar(0), due); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := e.RequestPayment(bob, Money{Currency: "USD", Amount: 2000}, due); err != ErrCurrencyMismatch {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
	if len(e.Requests) != 0 {
		t.Fatalf("failed requests must append nothing, got %d", len(e.Requests))
	}

	req, err := e.RequestPayment(bob, zar(2000), due)
	if err != nil {
		t.Fatal(err)
	}
	if req.Paid || req.PaidAt != nil {
		t.Fatal("new request must be unpaid")
	}
	if req.ExpenseID != e.ID || req.PayerID != "bob" {
		t.Fatalf("unexpected request: %+v", req)
	}

	// Outstanding is unchanged until the request is actually paid.
	outstanding, err := e.AmountLessPaymentsReceived()
	if err != nil {
		t.Fatal(err)
	}
	if outstanding.Amount != 4000 {
		t.Fatalf("outstanding=%d, want 4000", outstanding.Amount)
	}
}

func TestRequestPaymentOverCommit(t *testing.T) {
	e := mustExpense(t, "alice", 4000)
	due := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)

	if _, err := e.RequestPayment(person.Person{ID: "bob"}, zar(3000), due); err != nil {
		t.Fatal(err)
	}
	if _, err := e.RequestPayment(person.Person{ID: "carol"}, zar(1500), due); err != ErrOverCommitted {
		t.Fatalf("expected ErrOverCommitted, got %v", err)
	}
	// Filling the remainder exactly is allowed.
	if _, err := e.RequestPayment(person.Person{ID: "carol"}, zar(1000), due); err != nil {
		t.Fatal(err)
	}
}

func TestPayTransitionsOnce(t *testing.T) {
	e := mustExpense(t, "alice", 4000)
	due := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	req, err := e.RequestPayment(person.Person{ID: "bob"}, zar(2000), due)
	if err != nil {
		t.Fatal(err)
	}

	when := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	if _, err := e.Pay(req.ID, "mallory", when); err != ErrUnauthorizedPayer {
		t.Fatalf("expected ErrUnauthorizedPayer, got %v", err)
	}
	if _, err := e.Pay("no-such-request", "bob", when); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	paid, err := e.Pay(req.ID, "bob", when)
	if err != nil {
		t.Fatal(err)
	}
	if !paid.Paid || paid.PaidAt == nil || !paid.PaidAt.Equal(when) {
		t.Fatalf("unexpected paid request: %+v", paid)
	}

	outstanding, err := e.AmountLessPaymentsReceived()
	if err != nil {
		t.Fatal(err)
	}
	if outstanding.Amount != 2000 {
		t.Fatalf("outstanding=%d, want 2000", outstanding.Amount)
	}

	if _, err := e.Pay(req.ID, "bob", when.AddDate(0, 0, 1)); err != ErrAlreadyPaid {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
	// Double pay leaves state unchanged.
	outstanding, err = e.AmountLessPaymentsReceived()
	if err != nil {
		t.Fatal(err)
	}
	if outstanding.Amount != 2000 {
		t.Fatalf("outstanding changed after failed pay: %d", outstanding.Amount)
	}
}

func TestAmountLessPaymentsReceivedSurfacesOverPayment(t *testing.T) {
	// Corrupt state straight onto the struct: paid requests past the total.
	e := mustExpense(t, "alice", 1000)
	paidAt := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	e.Requests = []PaymentRequest{
		{ID: "r1", ExpenseID: e.ID, PayerID: "bob", AmountToPay: zar(800), Paid: true, PaidAt: &paidAt},
		{ID: "r2", ExpenseID: e.ID, PayerID: "carol", AmountToPay: zar(800), Paid: true, PaidAt: &paidAt},
	}
	if _, err := e.AmountLessPaymentsReceived(); err != ErrOverPaid {
		t.Fatalf("expected ErrOverPaid, got %v", err)
	}
}

func TestMoneyArithmetic(t *testing.T) {
	sum, err := zar(100).Add(zar(250))
	if err != nil || sum.Amount != 350 {
		t.Fatalf("Add: %v %d", err, sum.Amount)
	}
	diff, err := zar(100).Sub(zar(250))
	if err != nil || diff.Amount != -150 {
		t.Fatalf("Sub: %v %d", err, diff.Amount)
	}
	if !diff.IsNegative() {
		t.Fatal("expected negative")
	}
	if _, err := zar(1).Add(Money{Currency: "USD", Amount: 1}); err != ErrCurrencyMismatch {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
}
