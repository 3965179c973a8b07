package remote

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"weshare.org/internal/expense"
	"weshare.org/internal/httpapi"
	"weshare.org/internal/person"
	"weshare.org/internal/session"
	"weshare.org/internal/stream"
)

func newTestServer(t *testing.T) *Client {
	t.Helper()
	t.Setenv("WESHARE_SESSION_SECRET", "test-secret")
	session.ResetSecretForTests()

	api := httpapi.New(httpapi.ReadyProbe{}, "test", "ZAR", expense.NewInMemoryLedger(), person.NewInMemoryDirectory(), stream.New())
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestClientRoundTrip(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	aliceSession, err := client.OpenSession(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	alice := client.WithToken(aliceSession.Token)

	dinner, err := alice.CreateExpense(ctx, "Dinner", 4000, "2026-03-01")
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	request, err := alice.RequestPayment(ctx, dinner.ID, "bob@example.com", 2000, "2026-03-15")
	if err != nil {
		t.Fatalf("request payment: %v", err)
	}

	bobSession, err := client.OpenSession(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("open bob session: %v", err)
	}
	bob := client.WithToken(bobSession.Token)

	received, err := bob.RequestsReceived(ctx)
	if err != nil {
		t.Fatalf("requests received: %v", err)
	}
	if len(received.Items) != 1 || received.GrandTotal.Amount != 2000 {
		t.Fatalf("unexpected received listing: %+v", received)
	}

	settlement, err := bob.Pay(ctx, request.ID)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if settlement.CompensatingExpense.OwnerID != bobSession.PersonID {
		t.Fatalf("compensating owner %q", settlement.CompensatingExpense.OwnerID)
	}

	view, err := alice.GetExpense(ctx, dinner.ID)
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	if view.Outstanding.Amount != 2000 {
		t.Fatalf("outstanding after pay: %d", view.Outstanding.Amount)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	if _, err := client.ListExpenses(ctx); err == nil {
		t.Fatal("expected error without session")
	} else {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != 401 {
			t.Fatalf("expected 401 APIError, got %v", err)
		}
	}
}
