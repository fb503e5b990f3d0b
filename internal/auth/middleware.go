package auth

import (
	"context"
	"net/http"
)

type contextKey struct{}

var userIDKey contextKey

// RequireAuth is HTTP middleware that rejects requests without a valid
// session cookie. A missing cookie yields 401; a cookie that fails
// verification yields 403. On success the user ID from the token is placed
// in the request context for handlers to read via UserID.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		claims, err := a.Verify(cookie.Value)
		if err != nil {
			http.Error(w, "invalid session", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated user ID stored by RequireAuth, or the
// empty string if the request was not authenticated.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
