// Package person resolves people by email. A person is created the first
// time somebody references their email on a payment request.
package person

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
)

// Person is an immutable identity. Email is the external key.
type Person struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrNotFound     = errors.New("person not found")
	ErrInvalidEmail = errors.New("invalid email address")
)

// Directory defines person lookup and idempotent creation.
type Directory interface {
	// Resolve returns the person registered under email, creating one on
	// first reference. Concurrent resolutions of the same new email must
	// yield exactly one person.
	Resolve(ctx context.Context, email string) (Person, error)
	FindByEmail(ctx context.Context, email string) (Person, error)
	FindByID(ctx context.Context, id string) (Person, error)
}

// NormalizeEmail lower-cases and trims the address and rejects anything
// that does not parse as a bare address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
