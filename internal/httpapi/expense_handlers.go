package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"weshare.org/internal/audit"
	"weshare.org/internal/expense"
	"weshare.org/internal/ids"
	"weshare.org/internal/person"
	"weshare.org/internal/session"
	"weshare.org/internal/stream"
)

const dateLayout = "2006-01-02"

type createExpenseRequest struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Date        string `json:"date"`
}

type createPaymentRequestRequest struct {
	Email   string `json:"email"`
	Amount  int64  `json:"amount"`
	DueDate string `json:"due_date"`
}

type expenseView struct {
	expense.Expense
	Outstanding expense.Money `json:"amount_less_payments_received"`
}

type listExpensesResponse struct {
	Items      []expenseView `json:"items"`
	GrandTotal expense.Money `json:"grand_total"`
	AsOf       time.Time     `json:"as_of"`
}

type listRequestsResponse struct {
	Items      []expense.PaymentRequest `json:"items"`
	GrandTotal expense.Money            `json:"grand_total"`
	AsOf       time.Time                `json:"as_of"`
}

func (a *API) handleExpensesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listExpenses(w, r)
	case http.MethodPost:
		a.createExpense(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleExpenseResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/expenses/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/payment-requests") {
		id := strings.TrimSuffix(path, "/payment-requests")
		id = strings.TrimSuffix(id, "/")
		if !ids.IsValid(id) {
			writeError(w, r, http.StatusNotFound, "expense not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.createPaymentRequest(w, r, id)
		return
	}

	if strings.Contains(path, "/") || !ids.IsValid(path) {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getExpense(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) handleRequestsSent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	personID, ok := a.actingPerson(w, r)
	if !ok {
		return
	}

	sent, err := a.ledger.FindPaymentRequestsSent(r.Context(), personID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	// The sent view shows what is still owed: unpaid requests only.
	unpaid := make([]expense.PaymentRequest, 0, len(sent))
	grandTotal := expense.Money{Currency: a.currency}
	for _, req := range sent {
		if req.IsPaid() {
			continue
		}
		unpaid = append(unpaid, req)
		grandTotal, err = grandTotal.Add(req.AmountToPay)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, listRequestsResponse{
		Items:      unpaid,
		GrandTotal: grandTotal,
		AsOf:       time.Now().UTC(),
	})
}

func (a *API) handleRequestsReceived(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	personID, ok := a.actingPerson(w, r)
	if !ok {
		return
	}

	received, err := a.ledger.FindPaymentRequestsReceived(r.Context(), personID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	// Received view lists everything, but the total covers unpaid only.
	grandTotal := expense.Money{Currency: a.currency}
	for _, req := range received {
		if req.IsPaid() {
			continue
		}
		grandTotal, err = grandTotal.Add(req.AmountToPay)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
	}
	if received == nil {
		received = []expense.PaymentRequest{}
	}

	writeJSON(w, http.StatusOK, listRequestsResponse{
		Items:      received,
		GrandTotal: grandTotal,
		AsOf:       time.Now().UTC(),
	})
}

func (a *API) handlePaymentRequestResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/payment-requests/")
	id := strings.TrimSuffix(path, "/pay")
	if !strings.HasSuffix(path, "/pay") || !ids.IsValid(id) {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.payPaymentRequest(w, r, id)
}

func (a *API) listExpenses(w http.ResponseWriter, r *http.Request) {
	personID, ok := a.actingPerson(w, r)
	if !ok {
		return
	}

	expenses, err := a.ledger.FindExpensesForPerson(r.Context(), personID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	items := make([]expenseView, 0, len(expenses))
	grandTotal := expense.Money{Currency: a.currency}
	for _, e := range expenses {
		outstanding, err := e.AmountLessPaymentsReceived()
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		items = append(items, expenseView{Expense: e, Outstanding: outstanding})
		grandTotal, err = grandTotal.Add(outstanding)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, listExpensesResponse{
		Items:      items,
		GrandTotal: grandTotal,
		AsOf:       time.Now().UTC(),
	})
}

func (a *API) createExpense(w http.ResponseWriter, r *http.Request) {
	personID, ok := a.actingPerson(w, r)
	if !ok {
		return
	}

	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		writeError(w, r, http.StatusBadRequest, "amount must be > 0")
		return
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
		return
	}

	e, err := expense.NewExpense(personID, req.Description, expense.Money{Currency: a.currency, Amount: req.Amount}, date)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	saved, err := a.ledger.Save(r.Context(), e)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "expense.create", map[string]any{
		"expense_id": saved.ID,
		"amount":     strconv.FormatInt(saved.Amount.Amount, 10),
		"currency":   saved.Amount.Currency,
	})

	w.Header().Set("Location", "/v1/expenses/"+saved.ID)
	writeJSON(w, http.StatusCreated, saved)
}

func (a *API) getExpense(w http.ResponseWriter, r *http.Request, id string) {
	personID, ok := a.actingPerson(w, r)
	if !ok {
		return
	}
	e, err := a.ledger.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if e.OwnerID != personID {
		writeError(w, r, http.StatusForbidden, "only the expense owner may view this expense")
		return
	}
	outstanding, err := e.AmountLessPaymentsReceived()
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expenseView{Expense: e, Outstanding: outstanding})
}

func (a *API) createPaymentRequest(w http.ResponseWriter, r *http.Request, expenseID string) {
	personID, ok := a.actingPerson(w, r)
	if !ok {
		return
	}

	var req createPaymentRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		writeError(w, r, http.StatusBadRequest, "amount must be > 0")
		return
	}
	dueDate, err := time.Parse(dateLayout, strings.TrimSpace(req.DueDate))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "due_date must be formatted YYYY-MM-DD")
		return
	}

	e, err := a.ledger.Get(r.Context(), expenseID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if e.OwnerID != personID {
		writeError(w, r, http.StatusForbidden, "only the expense owner may request payment")
		return
	}

	// First reference to an unknown email registers the person.
	payer, err := a.persons.Resolve(r.Context(), req.Email)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	// The ledger serializes the append with other mutations of the same
	// expense; a snapshot-based save here could lose racing requests.
	created, err := a.ledger.AddPaymentRequest(r.Context(), e.ID, payer, expense.Money{Currency: a.currency, Amount: req.Amount}, dueDate)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "expense.payment_request.create", map[string]any{
		"expense_id": e.ID,
		"request_id": created.ID,
		"payer_id":   payer.ID,
		"amount":     strconv.FormatInt(created.AmountToPay.Amount, 10),
	})

	writeJSON(w, http.StatusCreated, created)
}

func (a *API) payPaymentRequest(w http.ResponseWriter, r *http.Request, requestID string) {
	personID, ok := a.actingPerson(w, r)
	if !ok {
		return
	}

	settlement, err := a.ledger.SettlePayment(r.Context(), requestID, personID, time.Now().UTC())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	if a.stream != nil {
		ownerID := ""
		if origin, err := a.ledger.Get(r.Context(), settlement.Request.ExpenseID); err == nil {
			ownerID = origin.OwnerID
		}
		a.stream.Publish(stream.SettlementEvent{
			RequestID: settlement.Request.ID,
			ExpenseID: settlement.Request.ExpenseID,
			PayerID:   personID,
			OwnerID:   ownerID,
			Amount:    settlement.Request.AmountToPay.Amount,
			Currency:  settlement.Request.AmountToPay.Currency,
			Timestamp: time.Now().UTC(),
		})
	}

	a.audit(r.Context(), "expense.payment_request.settle", map[string]any{
		"request_id":              settlement.Request.ID,
		"expense_id":              settlement.Request.ExpenseID,
		"compensating_expense_id": settlement.CompensatingExpense.ID,
		"amount":                  strconv.FormatInt(settlement.Request.AmountToPay.Amount, 10),
	})

	writeJSON(w, http.StatusOK, settlement)
}

// actingPerson resolves the session person or writes a 401.
func (a *API) actingPerson(w http.ResponseWriter, r *http.Request) (string, bool) {
	personID, ok := session.PersonIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "session required")
		return "", false
	}
	return personID, true
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	_ = audit.LogEvent(ctx, event, fields)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, expense.ErrInvalidAmount),
		errors.Is(err, expense.ErrEmptyDescription),
		errors.Is(err, expense.ErrMissingID),
		errors.Is(err, expense.ErrMissingOwner),
		errors.Is(err, expense.ErrMissingPayer),
		errors.Is(err, expense.ErrSelfRequest),
		errors.Is(err, expense.ErrCurrencyMismatch),
		errors.Is(err, person.ErrInvalidEmail):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, expense.ErrOverCommitted),
		errors.Is(err, expense.ErrAlreadyPaid):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, expense.ErrUnauthorizedPayer):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, expense.ErrNotFound), errors.Is(err, person.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, expense.ErrStorageUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
