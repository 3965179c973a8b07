package httpapi

import (
	"net/http"
	"time"

	"weshare.org/internal/session"
)

type sessionRequest struct {
	Email string `json:"email"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	PersonID  string    `json:"person_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

const sessionTTL = 15 * time.Minute

// handleSession issues a bearer token for the person registered under the
// supplied email, creating the person on first reference. It stands in for
// the login flow, which is outside this service.
func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, err := a.persons.Resolve(r.Context(), req.Email)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	token, err := session.GenerateToken(p.ID, p.Email, sessionTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(sessionTTL)
	a.audit(r.Context(), "session.token.issued", map[string]any{
		"person_id":  p.ID,
		"email":      p.Email,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     token,
		PersonID:  p.ID,
		Email:     p.Email,
		ExpiresAt: expiresAt,
	})
}
