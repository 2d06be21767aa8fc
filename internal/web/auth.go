package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maraudr/console/internal/assocapi"
	"github.com/maraudr/console/internal/console"
	"github.com/maraudr/console/internal/stockapi"
)

// LoginPage handles GET /login.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "login.html", &PageData{Title: "Sign in"})
}

// LoginSubmit handles POST /login.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if email == "" || password == "" {
		s.Templates.Render(w, "login.html", &PageData{
			Title: "Sign in",
			Email: email,
			Error: "Enter your email and password.",
		})
		return
	}

	sess, token, err := s.Registry.Login(r.Context(), email, password)
	if err != nil {
		msg := "The association service is unavailable. Try again."
		switch {
		case assocapi.IsInvalidCredentials(err):
			msg = "Wrong email or password."
		case errors.Is(err, stockapi.ErrNetwork):
			msg = "The association service is unreachable. Try again."
		default:
			slog.Error("login failed", "email", email, "error", err)
		}
		s.Templates.Render(w, "login.html", &PageData{Title: "Sign in", Email: email, Error: msg})
		return
	}

	setAuthCookie(w, token, sess.ExpiresAt, s.SecureCookies)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout handles POST /logout.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if err := s.Registry.Logout(r.Context(), console.ClaimsFromContext(r.Context())); err != nil {
		slog.Error("failed to end session", "error", err)
	}
	clearAuthCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// AssociationSubmit handles POST /association.
func (s *Server) AssociationSubmit(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	if err := sess.Select(r.Context(), r.FormValue("association")); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, back(r, "/"), http.StatusSeeOther)
}

// fail reports a backend or validation error on the next page. An expired
// backend token ends the console session.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, stockapi.ErrAuthenticationMissing) {
		if lerr := s.Registry.Logout(r.Context(), console.ClaimsFromContext(r.Context())); lerr != nil {
			slog.Error("failed to end session", "error", lerr)
		}
		clearAuthCookie(w)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	sess := console.FromContext(r.Context())
	sess.Flash(notice(err))
	http.Redirect(w, r, back(r, "/"), http.StatusSeeOther)
}

// back is the page a form was posted from, limited to local paths.
func back(r *http.Request, fallback string) string {
	if to := r.FormValue("back"); strings.HasPrefix(to, "/") && !strings.HasPrefix(to, "//") {
		return to
	}
	return fallback
}
