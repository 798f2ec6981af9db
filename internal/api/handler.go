// Package api provides HTTP handlers for the tonechat API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashureev/tonechat/internal/config"
	"github.com/ashureev/tonechat/internal/identity"
	"github.com/ashureev/tonechat/internal/session"
	"github.com/ashureev/tonechat/internal/store"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 64 << 10

// Handler provides common handler utilities.
type Handler struct {
	repo     store.Repository
	sessions *session.Manager
	cfg      *config.Config
	now      func() time.Time
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, sessions *session.Manager, cfg *config.Config) *Handler {
	return &Handler{
		repo:     repo,
		sessions: sessions,
		cfg:      cfg,
		now:      time.Now,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (h *Handler) isDevelopment() bool {
	return h.cfg.IsDevelopment()
}

// controller resolves the authenticated owner's session controller, writing
// the error response itself when it cannot.
func (h *Handler) controller(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	ownerID := identity.OwnerIDFromContext(r.Context())
	if ownerID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	c, err := h.sessions.Controller(r.Context(), ownerID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load chat session")
		return nil, false
	}
	return c, true
}
