package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ashureev/tonechat/internal/domain"
)

// MemoryStore is an in-memory Repository. It keeps chat state in its
// serialized form so loads behave exactly like the SQLite store.
// It is NOT persistent and is only suitable for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	states   map[string]stateRecord
	links    map[string]domain.MagicLink
	sessions map[string]domain.AuthSession

	// FailSaves makes SaveState fail; used to exercise persistence errors.
	FailSaves bool
}

// ErrSaveFailed is returned by SaveState when FailSaves is set.
var ErrSaveFailed = errors.New("memory store: save failed")

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		states:   make(map[string]stateRecord),
		links:    make(map[string]domain.MagicLink),
		sessions: make(map[string]domain.AuthSession),
	}
}

func (s *MemoryStore) LoadState(_ context.Context, ownerID string) (*domain.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.states[ownerID]
	if !ok {
		return domain.DefaultState(), nil
	}
	return decodeState(ownerID, rec), nil
}

func (s *MemoryStore) SaveState(_ context.Context, ownerID string, state *domain.SessionState) error {
	rec, err := encodeState(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves {
		return ErrSaveFailed
	}
	s.states[ownerID] = rec
	return nil
}

// PutRawState stores raw JSON columns for an owner, bypassing encoding.
func (s *MemoryStore) PutRawState(ownerID, topicsJSON, transcriptsJSON, toneJSON, active string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[ownerID] = stateRecord{
		TopicsJSON:      topicsJSON,
		TranscriptsJSON: transcriptsJSON,
		ToneJSON:        toneJSON,
		Active:          active,
	}
}

func (s *MemoryStore) CreateMagicLink(_ context.Context, link *domain.MagicLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[link.Token] = *link
	return nil
}

func (s *MemoryStore) ConsumeMagicLink(_ context.Context, token string, now time.Time) (*domain.MagicLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[token]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.links, token)
	if link.Expired(now) {
		return nil, ErrNotFound
	}
	return &link, nil
}

func (s *MemoryStore) CreateAuthSession(_ context.Context, session *domain.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

func (s *MemoryStore) GetAuthSession(_ context.Context, id string) (*domain.AuthSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (s *MemoryStore) DeleteAuthSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) CountAuthSessions(_ context.Context, ownerID string, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, session := range s.sessions {
		if session.OwnerID == ownerID && now.Before(session.ExpiresAt) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for token, link := range s.links {
		if link.Expired(now) {
			delete(s.links, token)
			n++
		}
	}
	for id, session := range s.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

var _ Repository = (*MemoryStore)(nil)
