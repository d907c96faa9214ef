package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/userhub/apiserver/internal/auth"
	"github.com/userhub/apiserver/internal/metrics"
	"github.com/userhub/apiserver/types"
)

// OwnerResolver returns the set of user ids that own the resource named
// by resourceID.
type OwnerResolver func(ctx context.Context, resourceID string) ([]string, error)

// RequireAuth enforces bearer-token authentication and injects the
// resolved identity into the request context. The identity comes from the
// token alone; the store is never consulted.
func RequireAuth(issuer *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			identity, err := issuer.Verify(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextIdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles gates a route on the caller's role. Admins always pass.
func RequireRoles(collector *metrics.Collector, resource string, roles ...types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := identityFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if err := auth.Decide(identity, roles); err != nil {
				collector.RecordAuthzDenied(resource)
				writeError(w, http.StatusForbidden, "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwner gates a route on role plus resource ownership. The path
// parameter must be a well-formed UUID; the resolver maps it to the
// acceptable owner ids before the access decision runs.
func RequireOwner(collector *metrics.Collector, resource, param string, resolver OwnerResolver, roles ...types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := identityFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			id, err := parseResourceID(chi.URLParam(r, param))
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}

			ownerIDs, err := resolver(r.Context(), id)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to resolve resource owner")
				return
			}

			if err := auth.Decide(identity, roles, ownerIDs...); err != nil {
				collector.RecordAuthzDenied(resource)
				writeError(w, http.StatusForbidden, "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
