package web

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/maraudr/console/internal/console"
)

// CookieName is the session cookie.
const CookieName = "token"

// CookieAuthMiddleware resolves the session cookie to a console session and
// adds it to the context. Anonymous requests are sent to the login page.
func CookieAuthMiddleware(reg *console.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			sess, claims, err := reg.Authenticate(r.Context(), cookie.Value)
			if err != nil {
				if !errors.Is(err, console.ErrSessionNotFound) {
					slog.Error("failed to resume session", "error", err)
				}
				clearAuthCookie(w)
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			ctx := console.WithSession(r.Context(), sess, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// setAuthCookie stores the session cookie until expires.
func setAuthCookie(w http.ResponseWriter, value string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearAuthCookie clears the authentication cookie with consistent attributes.
func clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
