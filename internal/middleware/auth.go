package middleware

import (
	"context"
	"net/http"

	"sprinklerprep/internal/utils"

	"github.com/go-chi/chi/v5"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Authenticate requires a valid HS256 bearer token signed with secret and
// stores its subject in the request context. An empty secret disables auth.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := utils.VerifyToken(r, secret)
			if err != nil {
				utils.Error(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			sub, err := utils.GetUserIDFromClaims(claims)
			if err != nil {
				utils.Error(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated subject, if any.
func UserID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(userIDKey).(string)
	return id, ok && id != ""
}

// RequireOwner rejects requests whose authenticated subject differs from the
// named URL parameter. Without an authenticated subject it lets the request
// through.
func RequireOwner(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sub, ok := UserID(r); ok && sub != chi.URLParam(r, param) {
				utils.Error(w, http.StatusForbidden, "forbidden", "token subject does not own this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
