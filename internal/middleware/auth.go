package middleware

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ayush/course-assistant/internal/auth"
)

// LoadSession resolves the session cookie, when present, and injects the user
// id into the request context. Requests without a valid session pass through
// anonymously.
func LoadSession(sessions auth.SessionStore, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.SessionCookie)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := sessions.Lookup(r.Context(), cookie.Value)
			if err != nil {
				log.Warn().Err(err).Msg("session lookup failed")
				next.ServeHTTP(w, r)
				return
			}
			if userID > 0 {
				r = r.WithContext(auth.WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth redirects anonymous requests to the login page.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAuthenticated(r) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
