// Command smoke drives a running weshare API through the full
// expense/settlement flow and exits non-zero on any violation.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"weshare.org/internal/expense"
	"weshare.org/internal/expense/remote"
)

func main() {
	baseURL := os.Getenv("WESHARE_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := remote.New(baseURL)
	run := rand.Int63()
	ownerEmail := fmt.Sprintf("smoke-owner-%d@example.com", run)
	payerEmail := fmt.Sprintf("smoke-payer-%d@example.com", run)

	ownerSession, err := client.OpenSession(ctx, ownerEmail)
	if err != nil {
		log.Fatalf("open owner session: %v", err)
	}
	owner := client.WithToken(ownerSession.Token)

	date := time.Now().UTC().Format("2006-01-02")
	dinner, err := owner.CreateExpense(ctx, "Smoke dinner", 4000, date)
	if err != nil {
		log.Fatalf("create expense: %v", err)
	}

	view, err := owner.GetExpense(ctx, dinner.ID)
	if err != nil {
		log.Fatalf("get expense: %v", err)
	}
	if view.Outstanding.Amount != 4000 {
		log.Fatalf("fresh expense outstanding = %d, want 4000", view.Outstanding.Amount)
	}

	request, err := owner.RequestPayment(ctx, dinner.ID, payerEmail, 2000, date)
	if err != nil {
		log.Fatalf("request payment: %v", err)
	}

	sent, err := owner.RequestsSent(ctx)
	if err != nil {
		log.Fatalf("requests sent: %v", err)
	}
	if !containsRequest(sent.Items, request.ID) {
		log.Fatalf("sent view is missing request %s", request.ID)
	}

	payerSession, err := client.OpenSession(ctx, payerEmail)
	if err != nil {
		log.Fatalf("open payer session: %v", err)
	}
	payer := client.WithToken(payerSession.Token)

	received, err := payer.RequestsReceived(ctx)
	if err != nil {
		log.Fatalf("requests received: %v", err)
	}
	if !containsRequest(received.Items, request.ID) {
		log.Fatalf("received view is missing request %s", request.ID)
	}

	settlement, err := payer.Pay(ctx, request.ID)
	if err != nil {
		log.Fatalf("pay: %v", err)
	}
	if settlement.CompensatingExpense.OwnerID != payerSession.PersonID {
		log.Fatalf("compensating expense owned by %s, want %s",
			settlement.CompensatingExpense.OwnerID, payerSession.PersonID)
	}
	if settlement.CompensatingExpense.Amount.Amount != 2000 {
		log.Fatalf("compensating amount = %d, want 2000", settlement.CompensatingExpense.Amount.Amount)
	}

	view, err = owner.GetExpense(ctx, dinner.ID)
	if err != nil {
		log.Fatalf("get expense after pay: %v", err)
	}
	if view.Outstanding.Amount != 2000 {
		log.Fatalf("outstanding after pay = %d, want 2000", view.Outstanding.Amount)
	}

	// Paying twice must be rejected without side effects.
	if _, err := payer.Pay(ctx, request.ID); err == nil {
		log.Fatal("double pay unexpectedly succeeded")
	} else {
		var apiErr *remote.APIError
		if !errors.As(err, &apiErr) || apiErr.Status != 409 {
			log.Fatalf("double pay: expected 409, got %v", err)
		}
	}

	listing, err := payer.ListExpenses(ctx)
	if err != nil {
		log.Fatalf("payer expenses: %v", err)
	}
	if len(listing.Items) != 1 {
		log.Fatalf("payer holds %d expenses, want exactly 1", len(listing.Items))
	}

	fmt.Printf("smoke test passed: expense=%s request=%s\n", dinner.ID, request.ID)
}

func containsRequest(items []expense.PaymentRequest, id string) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}
