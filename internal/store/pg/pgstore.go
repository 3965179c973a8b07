// Package pg persists the expense ledger and person directory in Postgres.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"weshare.org/internal/expense"
	"weshare.org/internal/ids"
	"weshare.org/internal/person"
)

type Store struct {
	db *sql.DB
}

var (
	_ expense.Ledger   = (*Store)(nil)
	_ person.Directory = (*Store)(nil)
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// --- person.Directory ---

func (s *Store) Resolve(ctx context.Context, email string) (person.Person, error) {
	email, err := person.NormalizeEmail(email)
	if err != nil {
		return person.Person{}, err
	}

	// The unique index on email makes concurrent first references converge
	// on a single row.
	if _, err := s.db.ExecContext(ctx, `
		insert into persons(id, email, created_at)
		values ($1, $2, now())
		on conflict (email) do nothing
	`, ids.New(), email); err != nil {
		return person.Person{}, storageErr(err)
	}
	return s.FindByEmail(ctx, email)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (person.Person, error) {
	email, err := person.NormalizeEmail(email)
	if err != nil {
		return person.Person{}, err
	}
	var p person.Person
	err = s.db.QueryRowContext(ctx, `
		select id, email, created_at from persons where email=$1
	`, email).Scan(&p.ID, &p.Email, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return person.Person{}, person.ErrNotFound
	}
	if err != nil {
		return person.Person{}, storageErr(err)
	}
	return p, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (person.Person, error) {
	var p person.Person
	err := s.db.QueryRowContext(ctx, `
		select id, email, created_at from persons where id=$1
	`, id).Scan(&p.ID, &p.Email, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return person.Person{}, person.ErrNotFound
	}
	if err != nil {
		return person.Person{}, storageErr(err)
	}
	return p, nil
}

// --- expense.Ledger ---

func (s *Store) FindExpensesForPerson(ctx context.Context, personID string) ([]expense.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, owner_id, description, currency, amount, spent_on, created_at
		from expenses where owner_id=$1 order by id
	`, personID)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var res []expense.Expense
	index := map[string]int{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		index[e.ID] = len(res)
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}

	reqRows, err := s.db.QueryContext(ctx, `
		select r.id, r.expense_id, r.payer_id, r.description, r.currency, r.amount, r.due_date, r.paid, r.paid_at
		from payment_requests r
		join expenses e on e.id = r.expense_id
		where e.owner_id=$1 order by r.id
	`, personID)
	if err != nil {
		return nil, storageErr(err)
	}
	defer reqRows.Close()

	for reqRows.Next() {
		req, err := scanRequest(reqRows)
		if err != nil {
			return nil, storageErr(err)
		}
		if i, ok := index[req.ExpenseID]; ok {
			res[i].Requests = append(res[i].Requests, req)
		}
	}
	if err := reqRows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return res, nil
}

func (s *Store) FindPaymentRequestsSent(ctx context.Context, personID string) ([]expense.PaymentRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.expense_id, r.payer_id, r.description, r.currency, r.amount, r.due_date, r.paid, r.paid_at
		from payment_requests r
		join expenses e on e.id = r.expense_id
		where e.owner_id=$1 order by r.id
	`, personID)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (s *Store) FindPaymentRequestsReceived(ctx context.Context, personID string) ([]expense.PaymentRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.expense_id, r.payer_id, r.description, r.currency, r.amount, r.due_date, r.paid, r.paid_at
		from payment_requests r
		where r.payer_id=$1 order by r.id
	`, personID)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (s *Store) Get(ctx context.Context, expenseID string) (expense.Expense, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, owner_id, description, currency, amount, spent_on, created_at
		from expenses where id=$1
	`, expenseID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return expense.Expense{}, expense.ErrNotFound
	}
	if err != nil {
		return expense.Expense{}, storageErr(err)
	}

	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.expense_id, r.payer_id, r.description, r.currency, r.amount, r.due_date, r.paid, r.paid_at
		from payment_requests r where r.expense_id=$1 order by r.id
	`, expenseID)
	if err != nil {
		return expense.Expense{}, storageErr(err)
	}
	defer rows.Close()

	e.Requests, err = collectRequests(rows)
	if err != nil {
		return expense.Expense{}, err
	}
	return e, nil
}

func (s *Store) Save(ctx context.Context, e expense.Expense) (expense.Expense, error) {
	if e.ID == "" {
		return expense.Expense{}, expense.ErrMissingID
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return expense.Expense{}, storageErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertExpense(ctx, tx, e); err != nil {
		return expense.Expense{}, storageErr(err)
	}
	for _, req := range e.Requests {
		if err := upsertRequest(ctx, tx, req); err != nil {
			return expense.Expense{}, storageErr(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return expense.Expense{}, storageErr(err)
	}
	return e, nil
}

func (s *Store) AddPaymentRequest(ctx context.Context, expenseID string, payer person.Person, amount expense.Money, dueDate time.Time) (expense.PaymentRequest, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return expense.PaymentRequest{}, storageErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	// Lock the expense row so racing creates serialize and the
	// over-commitment check runs against committed requests.
	row := tx.QueryRowContext(ctx, `
		select id, owner_id, description, currency, amount, spent_on, created_at
		from expenses where id=$1 for update
	`, expenseID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return expense.PaymentRequest{}, expense.ErrNotFound
	}
	if err != nil {
		return expense.PaymentRequest{}, storageErr(err)
	}

	rows, err := tx.QueryContext(ctx, `
		select r.id, r.expense_id, r.payer_id, r.description, r.currency, r.amount, r.due_date, r.paid, r.paid_at
		from payment_requests r where r.expense_id=$1 order by r.id
	`, expenseID)
	if err != nil {
		return expense.PaymentRequest{}, storageErr(err)
	}
	e.Requests, err = collectRequests(rows)
	rows.Close()
	if err != nil {
		return expense.PaymentRequest{}, err
	}

	req, err := e.RequestPayment(payer, amount, dueDate)
	if err != nil {
		return expense.PaymentRequest{}, err
	}
	if err := upsertRequest(ctx, tx, req); err != nil {
		return expense.PaymentRequest{}, storageErr(err)
	}
	if err := tx.Commit(); err != nil {
		return expense.PaymentRequest{}, storageErr(err)
	}
	return req, nil
}

func (s *Store) SettlePayment(ctx context.Context, requestID, payerID string, when time.Time) (expense.Settlement, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return expense.Settlement{}, storageErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	// Lock the request row so concurrent pays serialize on it.
	var (
		req    expense.PaymentRequest
		paidAt sql.NullTime
	)
	err = tx.QueryRowContext(ctx, `
		select id, expense_id, payer_id, description, currency, amount, due_date, paid, paid_at
		from payment_requests where id=$1 for update
	`, requestID).Scan(&req.ID, &req.ExpenseID, &req.PayerID, &req.Description,
		&req.AmountToPay.Currency, &req.AmountToPay.Amount, &req.DueDate, &req.Paid, &paidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return expense.Settlement{}, expense.ErrNotFound
	}
	if err != nil {
		return expense.Settlement{}, storageErr(err)
	}
	if req.PayerID != payerID {
		return expense.Settlement{}, expense.ErrUnauthorizedPayer
	}
	if req.Paid {
		return expense.Settlement{}, expense.ErrAlreadyPaid
	}

	if _, err := tx.ExecContext(ctx, `
		update payment_requests set paid=true, paid_at=$2 where id=$1
	`, requestID, when); err != nil {
		return expense.Settlement{}, storageErr(err)
	}
	req.Paid = true
	paid := when
	req.PaidAt = &paid

	compensating, err := expense.NewExpense(payerID, req.Description, req.AmountToPay, when)
	if err != nil {
		return expense.Settlement{}, err
	}
	if err := upsertExpense(ctx, tx, compensating); err != nil {
		return expense.Settlement{}, storageErr(err)
	}

	if err := tx.Commit(); err != nil {
		return expense.Settlement{}, storageErr(err)
	}
	return expense.Settlement{Request: req, CompensatingExpense: compensating}, nil
}

// --- helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (expense.Expense, error) {
	var e expense.Expense
	err := row.Scan(&e.ID, &e.OwnerID, &e.Description,
		&e.Amount.Currency, &e.Amount.Amount, &e.Date, &e.CreatedAt)
	return e, err
}

func scanRequest(row scanner) (expense.PaymentRequest, error) {
	var (
		req    expense.PaymentRequest
		paidAt sql.NullTime
	)
	err := row.Scan(&req.ID, &req.ExpenseID, &req.PayerID, &req.Description,
		&req.AmountToPay.Currency, &req.AmountToPay.Amount, &req.DueDate, &req.Paid, &paidAt)
	if err != nil {
		return expense.PaymentRequest{}, err
	}
	if paidAt.Valid {
		t := paidAt.Time
		req.PaidAt = &t
	}
	return req, nil
}

func collectRequests(rows *sql.Rows) ([]expense.PaymentRequest, error) {
	var res []expense.PaymentRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		res = append(res, req)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return res, nil
}

func upsertExpense(ctx context.Context, tx *sql.Tx, e expense.Expense) error {
	_, err := tx.ExecContext(ctx, `
		insert into expenses(id, owner_id, description, currency, amount, spent_on, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
		on conflict (id) do update
		set description=excluded.description, currency=excluded.currency,
		    amount=excluded.amount, spent_on=excluded.spent_on
	`, e.ID, e.OwnerID, e.Description, e.Amount.Currency, e.Amount.Amount, e.Date, e.CreatedAt)
	return err
}

func upsertRequest(ctx context.Context, tx *sql.Tx, req expense.PaymentRequest) error {
	var paidAt any
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}
	// Payer and amount are immutable; only the paid state is updatable.
	_, err := tx.ExecContext(ctx, `
		insert into payment_requests(id, expense_id, payer_id, description, currency, amount, due_date, paid, paid_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		on conflict (id) do update
		set paid=excluded.paid, paid_at=excluded.paid_at
	`, req.ID, req.ExpenseID, req.PayerID, req.Description,
		req.AmountToPay.Currency, req.AmountToPay.Amount, req.DueDate, req.Paid, paidAt)
	return err
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", expense.ErrStorageUnavailable, err)
}
