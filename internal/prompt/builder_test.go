package prompt

import (
	"testing"
	"time"

	"github.com/ashureev/tonechat/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestBuildTextRequestIncludesHistoryAndTone(t *testing.T) {
	now := time.Now()
	history := domain.Transcript{
		domain.NewUserMessage("Hi", nil, now),
		domain.NewAssistantMessage("Hello!", now),
	}

	req := Build("  How are you?  ", nil, history, domain.ToneProfessional)

	text, ok := req.(domain.TextRequest)
	require.True(t, ok, "expected TextRequest, got %T", req)
	require.Equal(t,
		"Previous conversation:\nUser: Hi\nAssistant: Hello!\n\nPlease respond in a professional tone to the following message: How are you?",
		text.Prompt)
}

func TestBuildTextRequestEmptyHistory(t *testing.T) {
	req := Build("Hi", nil, nil, domain.ToneCasual)

	text := req.(domain.TextRequest)
	require.Equal(t, "Previous conversation:\n\n\nPlease respond in a casual tone to the following message: Hi", text.Prompt)
}

func TestBuildImageRequestSkipsHistory(t *testing.T) {
	img := &domain.Image{MIMEType: "image/png", Data: "aGVsbG8="}
	history := domain.Transcript{domain.NewUserMessage("earlier", nil, time.Now())}

	req := Build("what breed is this?", img, history, domain.ToneCasual)

	imgReq, ok := req.(domain.ImageRequest)
	require.True(t, ok, "expected ImageRequest, got %T", req)
	require.Equal(t, "what breed is this?", imgReq.Instruction)
	require.Equal(t, *img, imgReq.Image)
}

func TestBuildImageRequestDefaultInstruction(t *testing.T) {
	img := &domain.Image{MIMEType: "image/jpeg", Data: "AA=="}

	req := Build("   ", img, nil, domain.ToneFriendly)

	require.Equal(t, DefaultImageInstruction, req.(domain.ImageRequest).Instruction)
}

func TestScriptRoles(t *testing.T) {
	now := time.Now()
	got := Script(domain.Transcript{
		domain.NewAssistantMessage("a", now),
		domain.NewUserMessage("b", nil, now),
	})
	require.Equal(t, "Assistant: a\nUser: b", got)
}
