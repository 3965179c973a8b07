package session

import (
	"context"
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	t.Setenv("WESHARE_SESSION_SECRET", "test-secret")
	ResetSecretForTests()

	token, err := GenerateToken("person-42", "alice@example.com", 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "person-42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("unexpected email: %s", claims.Email)
	}
	if claims.ID == "" {
		t.Fatal("expected token id")
	}
}

func TestGenerateTokenValidation(t *testing.T) {
	t.Setenv("WESHARE_SESSION_SECRET", "test-secret")
	ResetSecretForTests()

	if _, err := GenerateToken("", "alice@example.com", time.Minute); err == nil {
		t.Fatal("expected error for empty person id")
	}
	if _, err := GenerateToken("person-42", "", time.Minute); err == nil {
		t.Fatal("expected error for empty email")
	}
	if _, err := GenerateToken("person-42", "alice@example.com", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestParseRejectsGarbageAndExpired(t *testing.T) {
	t.Setenv("WESHARE_SESSION_SECRET", "test-secret")
	ResetSecretForTests()

	if _, err := ParseAndValidate(""); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseAndValidate("not.a.token"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	token, err := GenerateToken("person-42", "alice@example.com", time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := ParseAndValidate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	t.Setenv("WESHARE_SESSION_SECRET", "secret-one")
	ResetSecretForTests()
	token, err := GenerateToken("person-42", "alice@example.com", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("WESHARE_SESSION_SECRET", "secret-two")
	ResetSecretForTests()
	defer ResetSecretForTests()
	if _, err := ParseAndValidate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := PersonIDFromContext(ctx); ok {
		t.Fatal("empty context must not carry a person")
	}

	ctx = ContextWithPerson(ctx, "person-42", "alice@example.com")
	id, ok := PersonIDFromContext(ctx)
	if !ok || id != "person-42" {
		t.Fatalf("unexpected person id: %q %v", id, ok)
	}
	email, ok := EmailFromContext(ctx)
	if !ok || email != "alice@example.com" {
		t.Fatalf("unexpected email: %q %v", email, ok)
	}
}
