// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/tonechat/internal/domain"
)

// ErrNotFound is returned when a magic link does not exist, was already used
// or has expired.
var ErrNotFound = errors.New("not found")

// Repository persists chat state and authentication records.
type Repository interface {
	// LoadState returns the owner's persisted chat state. Missing or unreadable
	// data yields domain.DefaultState(); only storage failures are errors.
	LoadState(ctx context.Context, ownerID string) (*domain.SessionState, error)

	// SaveState replaces the owner's persisted chat state in one write.
	// The draft is not persisted.
	SaveState(ctx context.Context, ownerID string, state *domain.SessionState) error

	// CreateMagicLink stores a new sign-in token.
	CreateMagicLink(ctx context.Context, link *domain.MagicLink) error

	// ConsumeMagicLink removes and returns a token that has not expired.
	ConsumeMagicLink(ctx context.Context, token string, now time.Time) (*domain.MagicLink, error)

	// CreateAuthSession stores an authenticated session.
	CreateAuthSession(ctx context.Context, session *domain.AuthSession) error

	// GetAuthSession retrieves a session by ID. It returns nil, nil when the
	// session does not exist.
	GetAuthSession(ctx context.Context, id string) (*domain.AuthSession, error)

	// DeleteAuthSession removes a session.
	DeleteAuthSession(ctx context.Context, id string) error

	// CountAuthSessions returns how many unexpired sessions the owner holds.
	CountAuthSessions(ctx context.Context, ownerID string, now time.Time) (int, error)

	// CleanupExpired removes expired magic links and sessions.
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)

	// Ping verifies storage connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying resources.
	Close() error
}
