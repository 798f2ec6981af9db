package domain

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func requireInSync(t *testing.T, s *SessionState) {
	t.Helper()
	require.Contains(t, s.Topics, DefaultTopic)
	require.Len(t, s.Transcripts, len(s.Topics))
	for _, name := range s.Topics {
		_, ok := s.Transcripts[name]
		require.True(t, ok, "missing transcript for %q", name)
	}
	require.True(t, s.HasTopic(s.Active), "active topic %q dangling", s.Active)
}

func TestAddTopicMakesItActive(t *testing.T) {
	s := DefaultState()

	require.True(t, s.AddTopic("Work"))
	require.Equal(t, []string{"General", "Work"}, s.Topics)
	require.Equal(t, "Work", s.Active)
	require.Empty(t, s.Transcripts["Work"])
	requireInSync(t, s)
}

func TestAddTopicIgnoresEmptyAndDuplicate(t *testing.T) {
	s := DefaultState()
	before := s.Clone()

	require.False(t, s.AddTopic(""))
	require.False(t, s.AddTopic("   "))
	require.False(t, s.AddTopic("General"))
	require.Equal(t, before, s)
}

func TestDeleteTopicResetsActive(t *testing.T) {
	s := DefaultState()
	s.AddTopic("Work")
	require.Equal(t, "Work", s.Active)

	require.True(t, s.DeleteTopic("Work"))
	require.Equal(t, DefaultTopic, s.Active)
	require.NotContains(t, s.Topics, "Work")
	_, ok := s.Transcripts["Work"]
	require.False(t, ok)
}

func TestDeleteDefaultTopicIsNoop(t *testing.T) {
	s := DefaultState()
	s.AddTopic("Work")
	require.NoError(t, s.Append(DefaultTopic, NewUserMessage("hi", nil, time.Now())))
	before := s.Clone()

	require.False(t, s.DeleteTopic(DefaultTopic))
	require.False(t, s.DeleteTopic("missing"))
	require.Equal(t, before, s)
}

func TestSetActiveUnknown(t *testing.T) {
	s := DefaultState()
	require.ErrorIs(t, s.SetActive("nope"), ErrUnknownTopic)
	require.Equal(t, DefaultTopic, s.Active)

	s.AddTopic("Work")
	require.NoError(t, s.SetActive(DefaultTopic))
	require.Equal(t, DefaultTopic, s.Active)
}

func TestTranscriptAppendClearGet(t *testing.T) {
	s := DefaultState()
	now := time.Now()

	require.ErrorIs(t, s.Append("missing", NewAssistantMessage("x", now)), ErrUnknownTopic)
	require.NoError(t, s.Append(DefaultTopic, NewUserMessage("Hi", nil, now), NewAssistantMessage("Hello!", now)))

	got := s.Transcript(DefaultTopic)
	require.Len(t, got, 2)
	require.Equal(t, RoleUser, got[0].Role)
	require.Equal(t, "Hello!", got[1].Content)

	got[0].Content = "mutated"
	require.Equal(t, "Hi", s.Transcripts[DefaultTopic][0].Content)

	require.Empty(t, s.Transcript("missing"))

	require.True(t, s.Clear(DefaultTopic))
	require.Empty(t, s.Transcript(DefaultTopic))
	require.True(t, s.HasTopic(DefaultTopic))
	require.False(t, s.Clear("missing"))
}

func TestRandomTopicOperationsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	names := []string{"General", "Work", "Home", "Ideas", ""}
	s := DefaultState()

	for i := 0; i < 500; i++ {
		name := names[rng.Intn(len(names))]
		switch rng.Intn(3) {
		case 0:
			s.AddTopic(name)
		case 1:
			s.DeleteTopic(name)
		default:
			_ = s.SetActive(name)
		}
		requireInSync(t, s)
	}
}

func TestNormalizeRepairsState(t *testing.T) {
	s := &SessionState{
		Topics: []string{"Work", "Work", ""},
		Transcripts: map[string]Transcript{
			"Orphan": {NewAssistantMessage("x", time.Now())},
		},
		Tone:   TonePreference{Current: "angry"},
		Active: "Gone",
	}

	s.Normalize()

	require.Equal(t, []string{"General", "Work"}, s.Topics)
	require.Equal(t, DefaultTone(), s.Tone)
	require.Equal(t, DefaultTopic, s.Active)
	requireInSync(t, s)
}

func TestDraftEmpty(t *testing.T) {
	require.True(t, Draft{Text: "  "}.Empty())
	require.False(t, Draft{Text: "hi"}.Empty())
	require.False(t, Draft{Image: &StagedImage{}}.Empty())
}
