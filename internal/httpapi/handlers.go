package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"weshare.org/internal/expense"
	"weshare.org/internal/obs"
	"weshare.org/internal/person"
	"weshare.org/internal/stream"
)

const serviceName = "weshare-api"

// ReadyProbe is a simple readiness check (e.g., ping the database).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the expense ledger and person directory.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	currency   string

	ledger  expense.Ledger
	persons person.Directory
	stream  *stream.Stream

	rateBurst  int
	ratePerSec int
}

// New wires the routes. The stream may be nil when no subscribers exist.
func New(rp ReadyProbe, version, currency string, ledger expense.Ledger, persons person.Directory, strm *stream.Stream) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		currency:   currency,
		ledger:     ledger,
		persons:    persons,
		stream:     strm,
		rateBurst:  20,
		ratePerSec: 10,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	a.mux.HandleFunc("/v1/session", a.handleSession)

	a.mux.HandleFunc("/v1/expenses", a.handleExpensesCollection)
	a.mux.HandleFunc("/v1/expenses/", a.handleExpenseResource)
	a.mux.HandleFunc("/v1/payment-requests/sent", a.handleRequestsSent)
	a.mux.HandleFunc("/v1/payment-requests/received", a.handleRequestsReceived)
	a.mux.HandleFunc("/v1/payment-requests/", a.handlePaymentRequestResource)
	a.mux.HandleFunc("/v1/settlements/stream", a.Stream)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withSession(a.mux)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":     serviceName,
		"time":     time.Now().UTC().Format(time.RFC3339),
		"version":  a.version,
		"currency": a.currency,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
