package session

import (
	"context"
	"testing"
	"time"

	"github.com/ashureev/tonechat/internal/domain"
	"github.com/ashureev/tonechat/internal/store"
	"github.com/stretchr/testify/require"
)

func TestEvictClosesStaleHandle(t *testing.T) {
	repo := store.NewMemory()
	ctx := context.Background()
	m := NewManager(repo, &fakeClient{}, nil)

	stale, err := m.Controller(ctx, "owner-1")
	require.NoError(t, err)
	require.True(t, m.Evict("owner-1"))

	fresh, err := m.Controller(ctx, "owner-1")
	require.NoError(t, err)
	require.True(t, fresh.SetDraft("kept"))
	require.True(t, fresh.AddTopic(ctx, "Work"))

	// Writes through the old handle must not overwrite the replacement's state.
	require.False(t, stale.AddTopic(ctx, "Stale"))

	persisted, err := repo.LoadState(ctx, "owner-1")
	require.NoError(t, err)
	require.Equal(t, []string{domain.DefaultTopic, "Work"}, persisted.Topics)
	require.Equal(t, "kept", fresh.Snapshot().Draft.Text)
}

func TestEvictRefusesWhileSending(t *testing.T) {
	client := &fakeClient{reply: "done", started: make(chan struct{}, 1), release: make(chan struct{})}
	ctx := context.Background()
	m := NewManager(store.NewMemory(), client, nil)

	c, err := m.Controller(ctx, "owner-1")
	require.NoError(t, err)
	c.SetDraft("hi")

	done := make(chan Outcome, 1)
	go func() { done <- c.Submit(ctx) }()
	<-client.started

	require.False(t, m.Evict("owner-1"))
	close(client.release)
	require.Equal(t, OutcomeSettled, <-done)

	same, err := m.Controller(ctx, "owner-1")
	require.NoError(t, err)
	require.Same(t, c, same)
	require.True(t, m.Evict("owner-1"))
}

func TestDrainIdleReturnsImmediately(t *testing.T) {
	m := NewManager(store.NewMemory(), &fakeClient{}, nil)
	_, err := m.Controller(context.Background(), "owner-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, m.Drain(ctx))
}

func TestDrainWaitsForSend(t *testing.T) {
	client := &fakeClient{reply: "done", started: make(chan struct{}, 1), release: make(chan struct{})}
	repo := store.NewMemory()
	m := NewManager(repo, client, nil)

	c, err := m.Controller(context.Background(), "owner-1")
	require.NoError(t, err)
	c.SetDraft("hi")

	sent := make(chan Outcome, 1)
	go func() { sent <- c.Submit(context.Background()) }()
	<-client.started

	drained := make(chan error, 1)
	go func() { drained <- m.Drain(context.Background()) }()

	select {
	case <-drained:
		t.Fatal("drain returned while a send was in flight")
	case <-time.After(2 * drainPollInterval):
	}

	close(client.release)
	require.Equal(t, OutcomeSettled, <-sent)
	require.NoError(t, <-drained)

	persisted, err := repo.LoadState(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, persisted.Transcripts[domain.DefaultTopic], 2)
}

func TestDrainGivesUpWhenContextEnds(t *testing.T) {
	client := &fakeClient{reply: "done", started: make(chan struct{}, 1), release: make(chan struct{})}
	m := NewManager(store.NewMemory(), client, nil)

	c, err := m.Controller(context.Background(), "owner-1")
	require.NoError(t, err)
	c.SetDraft("hi")

	sent := make(chan Outcome, 1)
	go func() { sent <- c.Submit(context.Background()) }()
	<-client.started
	t.Cleanup(func() {
		close(client.release)
		<-sent
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*drainPollInterval)
	defer cancel()
	err = m.Drain(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
