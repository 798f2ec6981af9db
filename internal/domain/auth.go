// Package domain contains core domain types for tonechat.
package domain

import (
	"time"
)

// MagicLink is a single-use sign-in token issued for an email address.
type MagicLink struct {
	Token     string    `json:"-"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the link can no longer be used.
func (l *MagicLink) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// AuthSession is an authenticated browser session. OwnerID keys the owner's
// chat state.
type AuthSession struct {
	ID        string    `json:"-"`
	OwnerID   string    `json:"owner_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TTL returns the time until the session expires, or 0 if it already has.
func (s *AuthSession) TTL(now time.Time) time.Duration {
	ttl := s.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
