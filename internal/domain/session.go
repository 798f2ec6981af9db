package domain

import (
	"errors"
	"slices"
	"strings"
)

// DefaultTopic always exists and cannot be deleted.
const DefaultTopic = "General"

// ErrUnknownTopic is returned when an operation names a topic that does not exist.
var ErrUnknownTopic = errors.New("unknown topic")

// Draft is the user's pending input.
type Draft struct {
	Text  string       `json:"text"`
	Image *StagedImage `json:"image,omitempty"`
}

// Empty reports whether there is nothing to send.
func (d Draft) Empty() bool {
	return strings.TrimSpace(d.Text) == "" && d.Image == nil
}

// SessionState is the aggregate owned by one session controller: the topic
// registry, one transcript per topic, the tone preference, the active topic
// and the pending draft.
//
// Topics and the keys of Transcripts are always the same set.
type SessionState struct {
	Topics      []string              `json:"topics"`
	Transcripts map[string]Transcript `json:"transcripts"`
	Tone        TonePreference        `json:"tone"`
	Active      string                `json:"active"`
	Draft       Draft                 `json:"draft"`
}

// DefaultState returns the state used when nothing has been persisted yet.
func DefaultState() *SessionState {
	return &SessionState{
		Topics:      []string{DefaultTopic},
		Transcripts: map[string]Transcript{DefaultTopic: {}},
		Tone:        DefaultTone(),
		Active:      DefaultTopic,
	}
}

// HasTopic reports whether name is a known topic.
func (s *SessionState) HasTopic(name string) bool {
	return slices.Contains(s.Topics, name)
}

// AddTopic appends a new topic with an empty transcript and makes it active.
// Empty or duplicate names are ignored. It reports whether the state changed.
func (s *SessionState) AddTopic(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || s.HasTopic(name) {
		return false
	}
	s.Topics = append(s.Topics, name)
	s.Transcripts[name] = Transcript{}
	s.Active = name
	return true
}

// DeleteTopic removes a topic and its transcript and resets the active topic to
// DefaultTopic. The default topic and unknown names are ignored.
func (s *SessionState) DeleteTopic(name string) bool {
	if name == DefaultTopic {
		return false
	}
	idx := slices.Index(s.Topics, name)
	if idx < 0 {
		return false
	}
	s.Topics = slices.Delete(s.Topics, idx, idx+1)
	delete(s.Transcripts, name)
	s.Active = DefaultTopic
	return true
}

// SetActive switches the active topic.
func (s *SessionState) SetActive(name string) error {
	if !s.HasTopic(name) {
		return ErrUnknownTopic
	}
	s.Active = name
	return nil
}

// Append adds msg to the end of topic's transcript.
func (s *SessionState) Append(topic string, msgs ...Message) error {
	t, ok := s.Transcripts[topic]
	if !ok {
		return ErrUnknownTopic
	}
	s.Transcripts[topic] = append(t, msgs...)
	return nil
}

// Clear empties topic's transcript in place. The topic keeps existing.
func (s *SessionState) Clear(topic string) bool {
	t, ok := s.Transcripts[topic]
	if !ok {
		return false
	}
	if len(t) == 0 {
		return false
	}
	s.Transcripts[topic] = Transcript{}
	return true
}

// Transcript returns a copy of topic's messages. Unknown topics yield an empty
// transcript.
func (s *SessionState) Transcript(topic string) Transcript {
	t, ok := s.Transcripts[topic]
	if !ok {
		return Transcript{}
	}
	return t.Clone()
}

// Clone returns a deep copy of the state.
func (s *SessionState) Clone() *SessionState {
	out := &SessionState{
		Topics:      slices.Clone(s.Topics),
		Transcripts: make(map[string]Transcript, len(s.Transcripts)),
		Tone:        s.Tone.Clone(),
		Active:      s.Active,
		Draft:       Draft{Text: s.Draft.Text},
	}
	for k, v := range s.Transcripts {
		out.Transcripts[k] = v.Clone()
	}
	if s.Draft.Image != nil {
		img := *s.Draft.Image
		out.Draft.Image = &img
	}
	return out
}

// Normalize repairs a state restored from storage so every invariant holds:
// the default topic exists and comes first when missing, topics are unique
// and non-empty, every topic has exactly one transcript, the tone preference
// is a rotation of KnownTones and the active topic is known.
func (s *SessionState) Normalize() {
	topics := make([]string, 0, len(s.Topics)+1)
	if !slices.Contains(s.Topics, DefaultTopic) {
		topics = append(topics, DefaultTopic)
	}
	for _, name := range s.Topics {
		if strings.TrimSpace(name) == "" || slices.Contains(topics, name) {
			continue
		}
		topics = append(topics, name)
	}
	s.Topics = topics

	transcripts := make(map[string]Transcript, len(topics))
	for _, name := range topics {
		t := s.Transcripts[name]
		if t == nil {
			t = Transcript{}
		}
		transcripts[name] = t
	}
	s.Transcripts = transcripts

	if !s.Tone.Valid() {
		s.Tone = DefaultTone()
	}
	if !s.HasTopic(s.Active) {
		s.Active = DefaultTopic
	}
}
