package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/maraudr/console/internal/assocapi"
	"github.com/maraudr/console/internal/console"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	Registry *console.Registry
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	sess, token, err := h.Registry.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if assocapi.IsInvalidCredentials(err) {
			slog.Warn("login failed", "email", req.Email, "remote", r.RemoteAddr)
			jsonError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		backendError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: sess.ExpiresAt})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.Logout(r.Context(), console.ClaimsFromContext(r.Context())); err != nil {
		slog.Error("failed to end session", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// Me handles GET /api/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	st := sess.State.Get()
	jsonResponse(w, http.StatusOK, map[string]any{
		"email":         st.Email,
		"associations":  st.Associations,
		"associationId": st.SelectedAssociationID(),
		"counts":        sess.Counts(),
	})
}

type selectRequest struct {
	AssociationID string `json:"associationId"`
}

// Select handles PUT /api/association.
func (h *AuthHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := console.FromContext(r.Context())
	if err := sess.Select(r.Context(), req.AssociationID); err != nil {
		backendError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"associationId": req.AssociationID})
}
