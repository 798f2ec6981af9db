// Package session orchestrates topic, tone and draft operations for one owner
// and drives sends to the completion backend.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/tonechat/internal/domain"
	"github.com/ashureev/tonechat/internal/prompt"
	"github.com/ashureev/tonechat/internal/store"
)

// Outcome describes what Submit did.
type Outcome string

const (
	// OutcomeIgnored means there was nothing to send.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeBusy means another send was still in flight.
	OutcomeBusy Outcome = "busy"
	// OutcomeSettled means the backend replied and both messages were appended.
	OutcomeSettled Outcome = "settled"
	// OutcomeFailed means the backend failed and the error reply was appended.
	OutcomeFailed Outcome = "failed"
	// OutcomeClosed means the controller was released and no longer accepts sends.
	OutcomeClosed Outcome = "closed"
)

// ErrClosed is returned by operations on a released controller.
var ErrClosed = errors.New("session controller closed")

// Persister is the subset of store.Repository the controller writes to.
type Persister interface {
	SaveState(ctx context.Context, ownerID string, state *domain.SessionState) error
}

var _ Persister = (store.Repository)(nil)

// Controller owns one owner's SessionState. Every mutation goes through it and
// is then mirrored to the Persister. At most one send is in flight at a time;
// other operations stay available while it is. Once closed, the controller
// neither mutates nor persists, so a stale handle cannot write over the state
// of its replacement.
type Controller struct {
	ownerID string
	client  domain.CompletionClient
	persist Persister
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	state   *domain.SessionState
	sending bool
	closed  bool
}

// NewController wraps state, which the controller takes ownership of.
func NewController(ownerID string, state *domain.SessionState, client domain.CompletionClient, persist Persister, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if state == nil {
		state = domain.DefaultState()
	}
	return &Controller{
		ownerID: ownerID,
		client:  client,
		persist: persist,
		logger:  logger.With("owner_id", ownerID),
		now:     time.Now,
		state:   state,
	}
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() *domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Sending reports whether a send is in flight.
func (c *Controller) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// AddTopic creates a topic and makes it active. Empty or duplicate names are ignored.
func (c *Controller) AddTopic(ctx context.Context, name string) bool {
	return c.mutate(ctx, "add_topic", func(s *domain.SessionState) bool {
		return s.AddTopic(name)
	})
}

// DeleteTopic removes a topic. The default topic cannot be deleted.
func (c *Controller) DeleteTopic(ctx context.Context, name string) bool {
	return c.mutate(ctx, "delete_topic", func(s *domain.SessionState) bool {
		return s.DeleteTopic(name)
	})
}

// SetActive switches the active topic.
func (c *Controller) SetActive(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.state.Active == name {
		return nil
	}
	if err := c.state.SetActive(name); err != nil {
		return err
	}
	c.saveLocked(ctx, "set_active")
	return nil
}

// ClearTopic empties a topic's transcript.
func (c *Controller) ClearTopic(ctx context.Context, name string) bool {
	return c.mutate(ctx, "clear_topic", func(s *domain.SessionState) bool {
		return s.Clear(name)
	})
}

// SelectTone makes tone current. Selecting the current or an unknown tone is a no-op.
func (c *Controller) SelectTone(ctx context.Context, tone string) bool {
	return c.mutate(ctx, "select_tone", func(s *domain.SessionState) bool {
		return s.Tone.Select(tone)
	})
}

// SetDraft replaces the draft text. Ignored while a send is in flight.
func (c *Controller) SetDraft(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sending || c.closed {
		return false
	}
	c.state.Draft.Text = text
	return true
}

// StageImage attaches img to the draft, replacing any previous image.
// Ignored while a send is in flight.
func (c *Controller) StageImage(img *domain.StagedImage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sending || c.closed || img == nil {
		return false
	}
	staged := *img
	c.state.Draft.Image = &staged
	return true
}

// DiscardImage removes the staged image. Ignored while a send is in flight.
func (c *Controller) DiscardImage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sending || c.closed || c.state.Draft.Image == nil {
		return false
	}
	c.state.Draft.Image = nil
	return true
}

// Submit sends the draft to the completion backend and appends the exchange to
// the topic that was active when the send started. Backend errors never
// propagate: they become the fixed error reply. The send is not cancelled when
// ctx is.
func (c *Controller) Submit(ctx context.Context) Outcome {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return OutcomeClosed
	}
	if c.sending {
		c.mu.Unlock()
		return OutcomeBusy
	}
	draft := c.state.Draft
	if draft.Empty() {
		c.mu.Unlock()
		return OutcomeIgnored
	}

	topic := c.state.Active
	var image *domain.Image
	if draft.Image != nil {
		img := draft.Image.Image
		image = &img
	}
	req := prompt.Build(draft.Text, image, c.state.Transcript(topic), c.state.Tone.Current)
	c.sending = true
	c.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	log := c.logger.With("topic", topic, "has_image", image != nil)
	log.Info("Sending message", "draft_length", len(draft.Text))

	start := c.now()
	reply, err := c.client.Complete(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sending = false

	now := c.now()
	outcome := OutcomeSettled
	userMsg := domain.NewUserMessage(draft.Text, image, now)
	var replyMsg domain.Message
	if err != nil {
		log.Error("Completion failed", "error", err, "elapsed", now.Sub(start))
		outcome = OutcomeFailed
		replyMsg = domain.NewAssistantMessage(domain.ErrorReply, now)
	} else {
		log.Info("Completion settled", "reply_length", len(reply), "elapsed", now.Sub(start))
		replyMsg = domain.NewAssistantMessage(reply, now)
	}

	if appendErr := c.state.Append(topic, userMsg, replyMsg); appendErr != nil {
		log.Warn("Topic deleted while sending, dropping exchange", "error", appendErr)
		return outcome
	}
	if outcome == OutcomeSettled {
		c.state.Draft = domain.Draft{}
	}
	c.saveLocked(ctx, "submit")
	return outcome
}

// closeIfIdle marks the controller closed unless a send is in flight.
// It reports whether the controller is now closed.
func (c *Controller) closeIfIdle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sending {
		return false
	}
	c.closed = true
	return true
}

// mutate applies fn under the lock and persists when it reports a change.
func (c *Controller) mutate(ctx context.Context, op string, fn func(*domain.SessionState) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !fn(c.state) {
		return false
	}
	c.saveLocked(ctx, op)
	return true
}

// saveLocked mirrors the state to the persister. Failures are logged; the
// in-memory state stays authoritative.
func (c *Controller) saveLocked(ctx context.Context, op string) {
	if c.persist == nil {
		return
	}
	if err := c.persist.SaveState(ctx, c.ownerID, c.state); err != nil {
		c.logger.Error("Failed to persist chat state", "op", op, "error", err)
	}
}
