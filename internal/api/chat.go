package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ashureev/tonechat/internal/domain"
	"github.com/ashureev/tonechat/internal/identity"
	"github.com/ashureev/tonechat/internal/imaging"
	"github.com/ashureev/tonechat/internal/middleware"
	"github.com/ashureev/tonechat/internal/session"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead is allowed on top of the image limit for form framing.
const multipartOverhead = 64 << 10

// ChatHandler exposes the session controller over HTTP. Every route expects
// identity.Middleware to have run.
type ChatHandler struct {
	*Handler
	sendLimiter *middleware.RateLimiter
}

// NewChatHandler creates a chat handler. sendLimiter may be nil to disable
// send throttling.
func NewChatHandler(base *Handler, sendLimiter *middleware.RateLimiter) *ChatHandler {
	return &ChatHandler{Handler: base, sendLimiter: sendLimiter}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/session", h.GetSession)

	r.Post("/api/topics", h.CreateTopic)
	r.Put("/api/topics/active", h.SetActiveTopic)
	r.Get("/api/topics/{topic}/messages", h.GetMessages)
	r.Post("/api/topics/{topic}/clear", h.ClearTopic)
	r.Delete("/api/topics/{topic}", h.DeleteTopic)

	r.Put("/api/tone", h.SelectTone)

	r.Put("/api/draft", h.SetDraft)
	r.Post("/api/draft/image", h.StageImage)
	r.Delete("/api/draft/image", h.DiscardImage)

	send := r
	if h.sendLimiter != nil {
		send = r.With(middleware.RateLimit(h.sendLimiter, func(r *http.Request) string {
			return identity.OwnerIDFromContext(r.Context())
		}))
	}
	send.Post("/api/send", h.Send)
}

// draftView is the client-facing draft. Image bytes are only exposed as the preview.
type draftView struct {
	Text         string `json:"text"`
	ImagePreview string `json:"image_preview,omitempty"`
	ImageType    string `json:"image_type,omitempty"`
}

// sessionView is what the chat page renders: the topic list, the active
// transcript, the tone selector and the draft.
type sessionView struct {
	Topics   []string              `json:"topics"`
	Active   string                `json:"active"`
	Messages domain.Transcript     `json:"messages"`
	Tone     domain.TonePreference `json:"tone"`
	Draft    draftView             `json:"draft"`
	Sending  bool                  `json:"sending"`
}

func viewOf(c *session.Controller) sessionView {
	state := c.Snapshot()
	v := sessionView{
		Topics:   state.Topics,
		Active:   state.Active,
		Messages: state.Transcript(state.Active),
		Tone:     state.Tone,
		Draft:    draftView{Text: state.Draft.Text},
		Sending:  c.Sending(),
	}
	if img := state.Draft.Image; img != nil {
		v.Draft.ImagePreview = img.Preview
		v.Draft.ImageType = img.Image.MIMEType
	}
	return v
}

func topicParam(r *http.Request) string {
	raw := chi.URLParam(r, "topic")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

// GetSession returns the full chat view for the authenticated owner.
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, viewOf(c))
}

// GetMessages returns one topic's transcript. Unknown topics yield an empty list.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	topic := topicParam(r)
	JSON(w, http.StatusOK, map[string]interface{}{
		"topic":    topic,
		"messages": c.Snapshot().Transcript(topic),
	})
}

// CreateTopic adds a topic and makes it active. Empty or duplicate names leave
// the state unchanged.
func (h *ChatHandler) CreateTopic(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	c.AddTopic(r.Context(), body.Name)
	JSON(w, http.StatusOK, viewOf(c))
}

// DeleteTopic removes a topic. Deleting the default topic is a no-op.
func (h *ChatHandler) DeleteTopic(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	c.DeleteTopic(r.Context(), topicParam(r))
	JSON(w, http.StatusOK, viewOf(c))
}

// SetActiveTopic switches the active topic.
func (h *ChatHandler) SetActiveTopic(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := c.SetActive(r.Context(), body.Name); err != nil {
		if errors.Is(err, domain.ErrUnknownTopic) {
			Error(w, http.StatusNotFound, "topic not found")
			return
		}
		if errors.Is(err, session.ErrClosed) {
			Error(w, http.StatusConflict, "chat session ended")
			return
		}
		Error(w, http.StatusInternalServerError, "failed to switch topic")
		return
	}
	JSON(w, http.StatusOK, viewOf(c))
}

// ClearTopic empties a topic's transcript.
func (h *ChatHandler) ClearTopic(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	c.ClearTopic(r.Context(), topicParam(r))
	JSON(w, http.StatusOK, viewOf(c))
}

// SelectTone makes a tone current.
func (h *ChatHandler) SelectTone(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tone string `json:"tone"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	c.SelectTone(r.Context(), body.Tone)
	JSON(w, http.StatusOK, viewOf(c))
}

// SetDraft replaces the draft text. Ignored while a send is in flight.
func (h *ChatHandler) SetDraft(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	c.SetDraft(body.Text)
	JSON(w, http.StatusOK, viewOf(c))
}

// StageImage accepts a multipart "image" field and attaches it to the draft.
func (h *ChatHandler) StageImage(w http.ResponseWriter, r *http.Request) {
	limit := h.cfg.Chat.MaxImageBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, _, err := r.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, imaging.ErrTooLarge.Error())
			return
		}
		Error(w, http.StatusBadRequest, "missing image field")
		return
	}
	defer file.Close()

	staged, err := imaging.Stage(file, limit)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		Error(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case errors.Is(err, imaging.ErrNotImage), errors.Is(err, imaging.ErrEmpty):
		Error(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("Failed to stage image", "error", err)
		Error(w, http.StatusInternalServerError, "failed to read image")
		return
	}

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	c.StageImage(staged)
	JSON(w, http.StatusOK, viewOf(c))
}

// DiscardImage removes the staged image.
func (h *ChatHandler) DiscardImage(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	c.DiscardImage()
	JSON(w, http.StatusOK, viewOf(c))
}

// Send submits the draft and waits for the exchange to settle.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	outcome := c.Submit(r.Context())
	status := http.StatusOK
	if outcome == session.OutcomeBusy || outcome == session.OutcomeClosed {
		status = http.StatusConflict
	}
	JSON(w, status, map[string]interface{}{
		"outcome": outcome,
		"session": viewOf(c),
	})
}
