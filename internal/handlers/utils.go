package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/userhub/apiserver/internal/auth"
)

type contextKey string

const contextIdentityKey contextKey = "identity"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func identityFromContext(ctx context.Context) (auth.Identity, error) {
	identity, ok := ctx.Value(contextIdentityKey).(auth.Identity)
	if !ok || identity.ID == "" {
		return auth.Identity{}, errors.New("missing identity")
	}
	return identity, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// parseResourceID validates that the raw path parameter is a well-formed
// UUID and returns its canonical form.
func parseResourceID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", errors.New("invalid id")
	}
	return id.String(), nil
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
