package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/tonechat/internal/domain"
	"github.com/ashureev/tonechat/internal/store"
)

// Manager hands out one Controller per owner, loading state on first use.
type Manager struct {
	repo   store.Repository
	client domain.CompletionClient
	logger *slog.Logger

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewManager creates a new session manager.
func NewManager(repo store.Repository, client domain.CompletionClient, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		repo:        repo,
		client:      client,
		logger:      logger,
		controllers: make(map[string]*Controller),
	}
}

// Controller returns the owner's controller, loading persisted state if needed.
func (m *Manager) Controller(ctx context.Context, ownerID string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.controllers[ownerID]; ok {
		return c, nil
	}

	state, err := m.repo.LoadState(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load chat state: %w", err)
	}

	c := NewController(ownerID, state, m.client, m.repo, m.logger)
	m.controllers[ownerID] = c
	m.logger.Info("Chat session loaded", "owner_id", ownerID, "topics", len(state.Topics))
	return c, nil
}

// Evict closes and drops the owner's cached controller unless a send is in
// flight. Handles obtained earlier stop writing once it is closed.
// It reports whether the controller was removed.
func (m *Manager) Evict(ownerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.controllers[ownerID]
	if !ok {
		return false
	}
	if !c.closeIfIdle() {
		return false
	}
	delete(m.controllers, ownerID)
	m.logger.Info("Chat session evicted", "owner_id", ownerID)
	return true
}

// drainPollInterval is how often Drain rechecks for in-flight sends.
const drainPollInterval = 50 * time.Millisecond

// Drain blocks until no controller has a send in flight, or ctx is done.
// Call it before closing the repository.
func (m *Manager) Drain(ctx context.Context) error {
	n := m.inFlight()
	if n == 0 {
		return nil
	}
	m.logger.Info("Waiting for in-flight sends", "count", n)

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for m.inFlight() > 0 {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("drain sends: %w", ctx.Err())
		}
	}
	return nil
}

func (m *Manager) inFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.controllers {
		if c.Sending() {
			n++
		}
	}
	return n
}
