package session

import (
	"context"
	"strings"
)

type ctxKey string

const (
	personIDKey ctxKey = "session_person_id"
	emailKey    ctxKey = "session_email"
)

// ContextWithPerson stores the acting person in the context.
func ContextWithPerson(ctx context.Context, personID, email string) context.Context {
	ctx = context.WithValue(ctx, personIDKey, strings.TrimSpace(personID))
	return context.WithValue(ctx, emailKey, strings.TrimSpace(email))
}

// PersonIDFromContext extracts the acting person's id from context.
func PersonIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(personIDKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// EmailFromContext extracts the acting person's email from context.
func EmailFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(emailKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
