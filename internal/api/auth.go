package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/tonechat/internal/domain"
	"github.com/ashureev/tonechat/internal/identity"
	"github.com/ashureev/tonechat/internal/store"
	"github.com/go-chi/chi/v5"
)

// AuthHandler handles magic-link sign-in.
type AuthHandler struct {
	*Handler
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *Handler) *AuthHandler {
	return &AuthHandler{Handler: base}
}

// RegisterRoutes registers auth routes. They must not sit behind the session gate.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/auth/magic-link", h.RequestMagicLink)
	r.Get("/api/auth/authenticate", h.Authenticate)
	r.Post("/api/auth/logout", h.Logout)
}

// RequestMagicLink issues a single-use sign-in token for an email address.
// Delivery is not implemented: in development the link is logged and the token returned.
func (h *AuthHandler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	email, err := identity.NormalizeEmail(body.Email)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := identity.NewToken()
	if err != nil {
		slog.Error("Failed to generate magic link token", "error", err)
		Error(w, http.StatusInternalServerError, "failed to issue link")
		return
	}

	now := h.now()
	link := &domain.MagicLink{
		Token:     token,
		Email:     email,
		ExpiresAt: now.Add(h.cfg.Auth.MagicLinkTTL),
		CreatedAt: now,
	}
	if err := h.repo.CreateMagicLink(r.Context(), link); err != nil {
		slog.Error("Failed to store magic link", "error", err)
		Error(w, http.StatusInternalServerError, "failed to issue link")
		return
	}

	resp := map[string]interface{}{
		"status":     "sent",
		"expires_at": link.ExpiresAt,
	}
	if h.isDevelopment() {
		url := h.cfg.FrontendURL + "/api/auth/authenticate?token=" + token
		slog.Info("Magic link issued", "email", email, "url", url, "expires_at", link.ExpiresAt)
		resp["token"] = token
	} else {
		slog.Info("Magic link issued", "email", email, "expires_at", link.ExpiresAt)
	}
	JSON(w, http.StatusAccepted, resp)
}

// Authenticate consumes a magic-link token and starts an auth session.
func (h *AuthHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if !identity.ValidToken(token) {
		Error(w, http.StatusBadRequest, "missing or malformed token")
		return
	}

	now := h.now()
	link, err := h.repo.ConsumeMagicLink(r.Context(), token, now)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusUnauthorized, "invalid or expired link")
		return
	}
	if err != nil {
		slog.Error("Failed to consume magic link", "error", err)
		Error(w, http.StatusInternalServerError, "authentication failed")
		return
	}

	id, err := identity.NewToken()
	if err != nil {
		slog.Error("Failed to generate session id", "error", err)
		Error(w, http.StatusInternalServerError, "authentication failed")
		return
	}
	sess := &domain.AuthSession{
		ID:        id,
		OwnerID:   identity.OwnerID(link.Email),
		Email:     link.Email,
		ExpiresAt: now.Add(h.cfg.Auth.SessionTTL),
		CreatedAt: now,
	}
	if err := h.repo.CreateAuthSession(r.Context(), sess); err != nil {
		slog.Error("Failed to store auth session", "error", err)
		Error(w, http.StatusInternalServerError, "authentication failed")
		return
	}

	identity.SetSessionCookie(w, sess.ID, sess.ExpiresAt, h.isDevelopment())
	slog.Info("User authenticated", "owner_id", sess.OwnerID)
	JSON(w, http.StatusOK, map[string]interface{}{
		"owner_id":    sess.OwnerID,
		"email":       sess.Email,
		"session_ttl": int64(sess.TTL(now).Seconds()),
	})
}

// Logout ends the current auth session. The owner's chat session is released
// only once no other auth session for that owner remains.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id := identity.SessionIDFromRequest(r); id != "" {
		sess, err := h.repo.GetAuthSession(r.Context(), id)
		if err != nil {
			slog.Error("Failed to load auth session on logout", "error", err)
		}
		if err := h.repo.DeleteAuthSession(r.Context(), id); err != nil {
			slog.Error("Failed to delete auth session", "error", err)
			Error(w, http.StatusInternalServerError, "logout failed")
			return
		}
		if sess != nil {
			h.releaseIfSignedOut(r, sess.OwnerID)
		}
	}

	identity.ClearSessionCookie(w, h.isDevelopment())
	JSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

func (h *AuthHandler) releaseIfSignedOut(r *http.Request, ownerID string) {
	remaining, err := h.repo.CountAuthSessions(r.Context(), ownerID, h.now())
	if err != nil {
		slog.Error("Failed to count auth sessions on logout", "owner_id", ownerID, "error", err)
		return
	}
	if remaining > 0 {
		return
	}
	h.sessions.Evict(ownerID)
}
