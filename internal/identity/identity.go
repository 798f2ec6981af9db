// Package identity provides magic-link identity primitives and the session gate.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/tonechat/internal/store"
)

// SessionCookieName is the cookie carrying the auth session ID.
const SessionCookieName = "tonechat_session"

// tokenBytes is the entropy of magic-link tokens and session IDs.
const tokenBytes = 32

type contextKey int

const (
	ownerIDKey contextKey = iota
	emailKey
)

var (
	// ErrInvalidEmail is returned when an address cannot be parsed.
	ErrInvalidEmail = errors.New("invalid email address")

	tokenPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)
)

// OwnerIDFromContext extracts the owner ID from the request context.
func OwnerIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ownerIDKey).(string); ok {
		return v
	}
	return ""
}

// EmailFromContext extracts the authenticated email from the request context.
func EmailFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(emailKey).(string); ok {
		return v
	}
	return ""
}

// WithOwner returns a context carrying the given identity.
func WithOwner(ctx context.Context, ownerID, email string) context.Context {
	ctx = context.WithValue(ctx, ownerIDKey, ownerID)
	return context.WithValue(ctx, emailKey, email)
}

// NormalizeEmail parses an address and lowercases it.
func NormalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

// OwnerID derives the stable owner key for a normalized email.
func OwnerID(email string) string {
	sum := sha256.Sum256([]byte(email))
	return "owner_" + hex.EncodeToString(sum[:16])
}

// NewToken returns a random hex token for magic links and sessions.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ValidToken reports whether s looks like a token from NewToken.
func ValidToken(s string) bool {
	return tokenPattern.MatchString(s)
}

// SetSessionCookie writes the session cookie.
func SetSessionCookie(w http.ResponseWriter, id string, expires time.Time, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(time.Until(expires).Seconds()),
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// SessionIDFromRequest returns the session cookie value, or "" when absent or malformed.
func SessionIDFromRequest(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || !ValidToken(c.Value) {
		return ""
	}
	return c.Value
}

// Middleware rejects requests without a live auth session and injects the
// owner identity into the request context.
func Middleware(repo store.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := SessionIDFromRequest(r)
			if id == "" {
				unauthorized(w)
				return
			}

			sess, err := repo.GetAuthSession(r.Context(), id)
			if err != nil {
				slog.Error("Failed to load auth session", "error", err)
				http.Error(w, `{"error":"failed to load session"}`, http.StatusInternalServerError)
				return
			}
			if sess == nil || !time.Now().Before(sess.ExpiresAt) {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), sess.OwnerID, sess.Email)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
